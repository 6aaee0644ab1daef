package types

// ------------------------
// Sensors
// ------------------------

// Measurand names the physical quantity a sensor reports.
type Measurand string

const (
	MeasurandTemperature Measurand = "temperature"
	MeasurandHumidity    Measurand = "humidity"
	MeasurandPressure    Measurand = "pressure"
	MeasurandBrightness  Measurand = "brightness"
)

// Unit returns the display suffix for m.
func (m Measurand) Unit() string {
	switch m {
	case MeasurandTemperature:
		return "°C"
	case MeasurandHumidity, MeasurandBrightness:
		return "%"
	case MeasurandPressure:
		return "hPa"
	default:
		return ""
	}
}

// NoValue is the value text of a sensor that has not been sampled yet.
const NoValue = "?"

// SensorRecord is one row of the sensor table.
// Topic is derived; only the registry writes it.
type SensorRecord struct {
	ID         string    `json:"id"`
	Kind       string    `json:"type"`
	Measurand  Measurand `json:"measurand"`
	Enabled    bool      `json:"enabled"`
	Location   string    `json:"location"`
	Topic      string    `json:"topic"`
	Correction float64   `json:"correction"`
	Value      string    `json:"value"`
}

// Present reports whether the slot holds a registered sensor.
func (r SensorRecord) Present() bool { return r.ID != "" }

// Reading is one published sample, addressed to a sensor topic.
type Reading struct {
	SensorID string
	Topic    string
	Line     string // line-protocol record
}
