package types

// Fixed table and field sizes. Every stored string is truncated to its limit on
// write so the protocol encoders can size their buffers from these constants alone.
const (
	MaxSensors = 10

	IDMaxLen        = 16 // 8-byte bus address in hex
	KindMaxLen      = 12
	MeasurandMaxLen = 12
	LocationMaxLen  = 32
	ValueMaxLen     = 10 // "-999999.99"
	NodeNameMaxLen  = 32
	RootTopicMaxLen = 32
	VersionMaxLen   = 16
	BuildMaxLen     = 24

	LogCapacity      = 32 // power of two
	LogMessageMaxLen = 64
)

// Numeric bounds applied before formatting.
const (
	ValueLimit      = 999999.99
	CorrectionLimit = 1000.0
	AltitudeMin     = -500.0
	AltitudeMax     = 9000.0

	MinPollSeconds = 1
	MaxPollSeconds = 86400
)
