package types

// Level is a diagnostic severity.
type Level uint8

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "?"
	}
}

// LogRecord is one slot of the diagnostic ring.
type LogRecord struct {
	Seq     uint32
	Hour    uint8
	Minute  uint8
	Second  uint8
	Level   Level
	Message string
}
