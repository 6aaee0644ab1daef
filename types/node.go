package types

// NodeConfig holds the operator-editable, persisted node settings.
type NodeConfig struct {
	NodeName          string  `json:"node"`
	RootTopic         string  `json:"topic"`
	Altitude          float64 `json:"altitude"`
	SensorPollSeconds uint32  `json:"sensor-poll-interval"`
	AuxRefreshSeconds uint32  `json:"aux-interval"`
	DisplayEnabled    bool    `json:"display-enabled"`
	HighlightedSensor string  `json:"show"` // reference only; may name an unknown id
}

// DefaultNodeConfig returns the boot defaults.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		NodeName:          "sensornode",
		RootTopic:         "sensors",
		SensorPollSeconds: 60,
		AuxRefreshSeconds: 900,
	}
}
