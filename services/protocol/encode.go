package protocol

import (
	"iter"
	"math"
	"strconv"
	"strings"

	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/mathx"
	"sensornode-go/x/strx"
)

// JSON fragments. The encoders write them and the capacity functions count
// them, so the two cannot drift apart.
const (
	cfgVersion  = `{"version":`
	cfgBuild    = `,"build":`
	cfgPoll     = `,"sensor-poll-interval":`
	cfgAux      = `,"aux-interval":`
	cfgNode     = `,"node":`
	cfgTopic    = `,"topic":`
	cfgAltitude = `,"altitude":`
	cfgDisplay  = `,"display-enabled":`
	cfgShow     = `,"show":`

	senEnabled    = `:{"enabled":`
	senLocation   = `,"location":`
	senType       = `,"type":`
	senMeasurand  = `,"measurand":`
	senValue      = `,"value":`
	senCorrection = `,"correction":`
	senHighlight  = `,"isHighlighted":`

	logNext  = `{"nextId":`
	logList  = `,"logs":[`
	logTime  = `{"time":"`
	logLevel = `","level":"`
	logMsg   = `","msg":`
	logEnd   = `]}`

	objEnd = `}`
)

// Widths of the variable parts.
const (
	escWidth    = 6 // worst case per input byte: \u00XX
	boolWidth   = len("false")
	uint32Width = len("4294967295")
	timeWidth   = len("00:00:00")
)

var (
	correctionWidth = max(len(fixed2(-types.CorrectionLimit)), len(fixed2(types.CorrectionLimit)))
	altitudeWidth   = max(len(fixed2(types.AltitudeMin)), len(fixed2(types.AltitudeMax)))
	levelWidth      = maxLevelWidth()
)

func strWidth(n int) int { return 2 + escWidth*n }

func maxLevelWidth() int {
	w := 0
	for l := 0; l <= math.MaxUint8; l++ {
		w = max(w, len(types.Level(l).String()))
	}
	return w
}

// ConfigCap is the largest possible config snapshot.
func ConfigCap() int {
	return len(cfgVersion) + strWidth(types.VersionMaxLen) +
		len(cfgBuild) + strWidth(types.BuildMaxLen) +
		len(cfgPoll) + uint32Width +
		len(cfgAux) + uint32Width +
		len(cfgNode) + strWidth(types.NodeNameMaxLen) +
		len(cfgTopic) + strWidth(types.RootTopicMaxLen) +
		len(cfgAltitude) + altitudeWidth +
		len(cfgDisplay) + boolWidth +
		len(cfgShow) + strWidth(types.IDMaxLen) +
		len(objEnd)
}

func sensorEntryCap() int {
	return strWidth(types.IDMaxLen) +
		len(senEnabled) + boolWidth +
		len(senLocation) + strWidth(types.LocationMaxLen) +
		len(senType) + strWidth(types.KindMaxLen) +
		len(senMeasurand) + strWidth(types.MeasurandMaxLen) +
		len(senValue) + strWidth(types.ValueMaxLen) +
		len(senCorrection) + correctionWidth +
		len(senHighlight) + boolWidth +
		len(objEnd)
}

// SensorsCap is the largest possible sensors snapshot: a full table with
// every field at its limit and every byte escaped.
func SensorsCap() int {
	return 2 + types.MaxSensors*sensorEntryCap() + (types.MaxSensors - 1)
}

func logEntryCap() int {
	return len(logTime) + timeWidth +
		len(logLevel) + levelWidth +
		len(logMsg) + strWidth(types.LogMessageMaxLen) +
		len(objEnd)
}

// LogsCap is the largest possible logs reply: a full ring.
func LogsCap() int {
	return len(logNext) + uint32Width + len(logList) +
		types.LogCapacity*logEntryCap() + (types.LogCapacity - 1) +
		len(logEnd)
}

// ConfigView is what the config snapshot shows.
type ConfigView struct {
	Version string
	Build   string
	Node    types.NodeConfig
}

// EncodeConfig writes the config snapshot into dst[:0]. dst must have at
// least ConfigCap() capacity.
func EncodeConfig(dst []byte, v ConfigView) ([]byte, error) {
	if cap(dst) < ConfigCap() {
		return dst[:0], errcode.BufferTooSmall
	}
	w := writer{buf: dst[:0]}
	w.raw(cfgVersion)
	w.str(v.Version, types.VersionMaxLen)
	w.raw(cfgBuild)
	w.str(v.Build, types.BuildMaxLen)
	w.raw(cfgPoll)
	w.u32(v.Node.SensorPollSeconds)
	w.raw(cfgAux)
	w.u32(v.Node.AuxRefreshSeconds)
	w.raw(cfgNode)
	w.str(v.Node.NodeName, types.NodeNameMaxLen)
	w.raw(cfgTopic)
	w.str(v.Node.RootTopic, types.RootTopicMaxLen)
	w.raw(cfgAltitude)
	w.fixed(v.Node.Altitude, types.AltitudeMin, types.AltitudeMax)
	w.raw(cfgDisplay)
	w.flag(v.Node.DisplayEnabled)
	w.raw(cfgShow)
	w.str(v.Node.HighlightedSensor, types.IDMaxLen)
	w.raw(objEnd)
	return w.done()
}

// EncodeSensors writes an id-keyed object of at most MaxSensors records into
// dst[:0]. dst must have at least SensorsCap() capacity.
func EncodeSensors(dst []byte, recs iter.Seq[types.SensorRecord], highlighted string) ([]byte, error) {
	if cap(dst) < SensorsCap() {
		return dst[:0], errcode.BufferTooSmall
	}
	w := writer{buf: dst[:0]}
	w.ch('{')
	n := 0
	for rec := range recs {
		if n == types.MaxSensors {
			break
		}
		if n > 0 {
			w.ch(',')
		}
		n++
		w.str(rec.ID, types.IDMaxLen)
		w.raw(senEnabled)
		w.flag(rec.Enabled)
		w.raw(senLocation)
		w.str(rec.Location, types.LocationMaxLen)
		w.raw(senType)
		w.str(rec.Kind, types.KindMaxLen)
		w.raw(senMeasurand)
		w.str(string(rec.Measurand), types.MeasurandMaxLen)
		w.raw(senValue)
		w.str(rec.Value, types.ValueMaxLen)
		w.raw(senCorrection)
		w.fixed(rec.Correction, -types.CorrectionLimit, types.CorrectionLimit)
		w.raw(senHighlight)
		w.flag(highlighted != "" && strings.EqualFold(rec.ID, highlighted))
		w.raw(objEnd)
	}
	w.ch('}')
	return w.done()
}

// EncodeLogs writes {nextId, logs} into dst[:0], keeping the newest
// LogCapacity records. dst must have at least LogsCap() capacity.
func EncodeLogs(dst []byte, next uint32, recs []types.LogRecord) ([]byte, error) {
	if cap(dst) < LogsCap() {
		return dst[:0], errcode.BufferTooSmall
	}
	if len(recs) > types.LogCapacity {
		recs = recs[len(recs)-types.LogCapacity:]
	}
	w := writer{buf: dst[:0]}
	w.raw(logNext)
	w.u32(next)
	w.raw(logList)
	for i, r := range recs {
		if i > 0 {
			w.ch(',')
		}
		w.raw(logTime)
		w.two(r.Hour)
		w.ch(':')
		w.two(r.Minute)
		w.ch(':')
		w.two(r.Second)
		w.raw(logLevel)
		w.raw(r.Level.String())
		w.raw(logMsg)
		w.str(r.Message, types.LogMessageMaxLen)
		w.raw(objEnd)
	}
	w.raw(logEnd)
	return w.done()
}

// writer appends into a fixed-capacity slice. A write that does not fit is
// dropped and marks the output short; it never reallocates.
type writer struct {
	buf   []byte
	short bool
}

func (w *writer) done() ([]byte, error) {
	if w.short {
		return w.buf, errcode.BufferTooSmall
	}
	return w.buf, nil
}

func (w *writer) fits(n int) bool {
	if w.short || len(w.buf)+n > cap(w.buf) {
		w.short = true
		return false
	}
	return true
}

func (w *writer) raw(s string) {
	if w.fits(len(s)) {
		w.buf = append(w.buf, s...)
	}
}

func (w *writer) ch(c byte) {
	if w.fits(1) {
		w.buf = append(w.buf, c)
	}
}

const hexDigits = "0123456789abcdef"

// str writes s as a JSON string after cutting it to limit bytes.
func (w *writer) str(s string, limit int) {
	s = strx.Truncate(strings.ToValidUTF8(s, "?"), limit)
	w.ch('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			w.ch('\\')
			w.ch(c)
		case c == '\n':
			w.raw(`\n`)
		case c == '\r':
			w.raw(`\r`)
		case c == '\t':
			w.raw(`\t`)
		case c < 0x20:
			w.raw(`\u00`)
			w.ch(hexDigits[c>>4])
			w.ch(hexDigits[c&0xf])
		default:
			w.ch(c)
		}
	}
	w.ch('"')
}

func (w *writer) u32(v uint32) {
	var tmp [uint32Width]byte
	w.raw(string(strconv.AppendUint(tmp[:0], uint64(v), 10)))
}

func (w *writer) fixed(v, lo, hi float64) {
	if math.IsNaN(v) {
		v = 0
	}
	w.raw(fixed2(mathx.Clamp(v, lo, hi)))
}

func (w *writer) flag(b bool) {
	if b {
		w.raw("true")
	} else {
		w.raw("false")
	}
}

// two writes the last two decimal digits of v.
func (w *writer) two(v uint8) {
	v %= 100
	w.ch('0' + v/10)
	w.ch('0' + v%10)
}

func fixed2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
