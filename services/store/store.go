// Package store persists node and per-sensor settings in a line-oriented
// key=value file.
//
//	node=<name>
//	topic=<root topic>
//	altitude=<metres>
//	interval.sensors=<seconds>
//	interval.aux=<seconds>
//	hasDisplay
//	show=<sensor id>
//	sensor-<id>=<location>
//	sensor.enabled-<id>=<0|1>
//	sensor.correction-<id>=<offset>
//
// Lines the store cannot apply are kept and written back on the next save.
package store

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"sensornode-go/errcode"
	"sensornode-go/services/registry"
	"sensornode-go/types"
	"sensornode-go/x/mathx"
	"sensornode-go/x/strx"
)

const (
	DefaultFile = "config.cfg"
	DefaultPage = "config.html"

	// MaxLineLen bounds one line of the config file. Longer lines are
	// skipped on load and so never written back.
	MaxLineLen = 512
)

// Keys. Per-sensor keys are prefixes followed by the sensor id.
const (
	keyNode       = "node="
	keyTopic      = "topic="
	keyAltitude   = "altitude="
	keyPoll       = "interval.sensors="
	keyAux        = "interval.aux="
	keyDisplay    = "hasDisplay"
	keyShow       = "show="
	keyEnabled    = "sensor.enabled-"
	keyCorrection = "sensor.correction-"
	keyLocation   = "sensor-"
)

// Store reads and writes the config file on a Volume.
type Store struct {
	vol   Volume
	name  string
	log   *slog.Logger
	carry []string // lines from the last load that were not applied
}

func New(vol Volume, name string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{vol: vol, name: strx.Coalesce(name, DefaultFile), log: log}
}

// Save writes cfg and every present sensor of reg, in registry order.
func (s *Store) Save(reg *registry.Registry, cfg types.NodeConfig) error {
	fs, err := s.vol.Mount()
	if err != nil {
		s.log.Error("mount failed", "op", "save", "err", err)
		return &errcode.E{C: errcode.OpenFailed, Op: "save", Msg: "mount", Err: err}
	}
	defer s.unmount()

	f, err := fs.Create(s.name)
	if err != nil {
		s.log.Error("config open for write failed", "file", s.name, "err", err)
		return &errcode.E{C: errcode.OpenFailed, Op: "save", Msg: s.name, Err: err}
	}
	w := bufio.NewWriter(f)
	written := encode(w, reg, cfg)
	for _, line := range s.carry {
		if _, dup := written[lineKey(line)]; dup {
			continue
		}
		w.WriteString(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		discard(f)
		s.log.Error("config write failed, previous file kept", "file", s.name, "err", err)
		return &errcode.E{C: errcode.Error, Op: "save", Msg: s.name, Err: err}
	}
	if err := f.Close(); err != nil {
		s.log.Error("config commit failed", "file", s.name, "err", err)
		return &errcode.E{C: errcode.Error, Op: "save", Msg: s.name, Err: err}
	}
	s.log.Info("config saved", "file", s.name, "sensors", reg.Len())
	return nil
}

// discard drops a partly written file. Writers without Abort are closed,
// which is all a plain io.WriteCloser allows.
func discard(f io.WriteCloser) {
	if a, ok := f.(Aborter); ok {
		_ = a.Abort()
		return
	}
	_ = f.Close()
}

// encode writes the known lines and returns the set of keys written.
func encode(w *bufio.Writer, reg *registry.Registry, cfg types.NodeConfig) map[string]struct{} {
	keys := make(map[string]struct{}, 8+3*reg.Len())
	put := func(key, val string) {
		keys[lineKey(key)] = struct{}{}
		w.WriteString(key)
		w.WriteString(val)
		w.WriteByte('\n')
	}
	put(keyNode, cfg.NodeName)
	put(keyTopic, cfg.RootTopic)
	put(keyAltitude, formatFloat(cfg.Altitude))
	put(keyPoll, strconv.FormatUint(uint64(cfg.SensorPollSeconds), 10))
	put(keyAux, strconv.FormatUint(uint64(cfg.AuxRefreshSeconds), 10))
	if cfg.DisplayEnabled {
		put(keyDisplay, "")
	}
	put(keyShow, cfg.HighlightedSensor)
	for rec := range reg.All() {
		put(keyLocation+rec.ID+"=", rec.Location)
		put(keyEnabled+rec.ID+"=", boolDigit(rec.Enabled))
		put(keyCorrection+rec.ID+"=", formatFloat(rec.Correction))
	}
	return keys
}

// Load merges the file into reg and cfg. An absent file is OpenFailed and
// logged at WARN; the caller keeps its defaults.
func (s *Store) Load(reg *registry.Registry, cfg *types.NodeConfig) error {
	fs, err := s.vol.Mount()
	if err != nil {
		s.log.Error("mount failed", "op", "load", "err", err)
		return &errcode.E{C: errcode.OpenFailed, Op: "load", Msg: "mount", Err: err}
	}
	defer s.unmount()

	f, err := fs.Open(s.name)
	if err != nil {
		s.log.Warn("config not found, using defaults", "file", s.name)
		return &errcode.E{C: errcode.OpenFailed, Op: "load", Msg: s.name, Err: err}
	}
	defer f.Close()

	var carry []string
	display := false
	applied := 0
	r := bufio.NewReaderSize(f, MaxLineLen)
	for {
		line, long, err := readLine(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			s.log.Error("config read failed", "file", s.name, "err", err)
			return errcode.Wrap(errcode.Error, "load", err)
		}
		if long {
			s.log.Warn("oversized config line skipped", "file", s.name, "max", MaxLineLen)
			continue
		}
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		if line == keyDisplay {
			display = true
			applied++
			continue
		}
		if s.apply(reg, cfg, line) {
			applied++
			continue
		}
		carry = append(carry, line)
	}
	s.carry = carry
	cfg.DisplayEnabled = display
	s.log.Info("config loaded", "file", s.name, "applied", applied, "kept", len(s.carry))
	return nil
}

// apply matches line against the known keys, most specific prefix first.
// It reports false for lines that should be carried over.
func (s *Store) apply(reg *registry.Registry, cfg *types.NodeConfig, line string) bool {
	switch {
	case strings.HasPrefix(line, keyEnabled):
		id, v, ok := splitSensor(line, keyEnabled)
		return ok && reg.SetEnabled(id, v == "1")

	case strings.HasPrefix(line, keyCorrection):
		id, v, ok := splitSensor(line, keyCorrection)
		if !ok {
			return false
		}
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.log.Debug("bad correction ignored", "id", id, "value", v)
			return false
		}
		return reg.SetCorrection(id, c)

	case strings.HasPrefix(line, keyLocation):
		id, v, ok := splitSensor(line, keyLocation)
		if !ok {
			return false
		}
		if !reg.SetLocation(id, v) {
			s.log.Debug("config for unknown sensor kept", "id", id)
			return false
		}
		return true

	case strings.HasPrefix(line, keyNode):
		cfg.NodeName = strx.Field(line[len(keyNode):], types.NodeNameMaxLen)
	case strings.HasPrefix(line, keyTopic):
		cfg.RootTopic = strx.Field(line[len(keyTopic):], types.RootTopicMaxLen)
		reg.SetRootTopic(cfg.RootTopic)
	case strings.HasPrefix(line, keyAltitude):
		a, err := strconv.ParseFloat(line[len(keyAltitude):], 64)
		if err != nil {
			return false
		}
		cfg.Altitude = mathx.Clamp(a, types.AltitudeMin, types.AltitudeMax)
	case strings.HasPrefix(line, keyPoll):
		n, ok := parseSeconds(line[len(keyPoll):])
		if !ok {
			return false
		}
		cfg.SensorPollSeconds = n
	case strings.HasPrefix(line, keyAux):
		n, ok := parseSeconds(line[len(keyAux):])
		if !ok {
			return false
		}
		cfg.AuxRefreshSeconds = n
	case strings.HasPrefix(line, keyShow):
		cfg.HighlightedSensor = strx.Field(line[len(keyShow):], types.IDMaxLen)
	default:
		return false
	}
	return true
}

// LoadPage reads a static file (the configuration page) from the volume.
func (s *Store) LoadPage(name string) ([]byte, error) {
	fs, err := s.vol.Mount()
	if err != nil {
		return nil, &errcode.E{C: errcode.OpenFailed, Op: "page", Msg: "mount", Err: err}
	}
	defer s.unmount()

	f, err := fs.Open(name)
	if err != nil {
		s.log.Warn("page not found", "file", name)
		return nil, &errcode.E{C: errcode.OpenFailed, Op: "page", Msg: name, Err: err}
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Store) unmount() {
	if err := s.vol.Unmount(); err != nil {
		s.log.Warn("unmount failed", "err", err)
	}
}

// readLine returns the next line without its terminator. A line that does
// not fit in r's buffer is consumed and reported as long.
func readLine(r *bufio.Reader) (line string, long bool, err error) {
	b, more, err := r.ReadLine()
	if err != nil {
		return "", false, err
	}
	if !more {
		return string(b), false, nil
	}
	for more {
		if _, more, err = r.ReadLine(); err == io.EOF {
			break
		} else if err != nil {
			return "", true, err
		}
	}
	return "", true, nil
}

// splitSensor splits "<prefix><id>=<value>".
func splitSensor(line, prefix string) (id, val string, ok bool) {
	rest := line[len(prefix):]
	eq := strings.IndexByte(rest, '=')
	if eq <= 0 {
		return "", "", false
	}
	return rest[:eq], rest[eq+1:], true
}

// lineKey is everything up to and including the first '=', or the whole line
// for presence-only keys.
func lineKey(line string) string {
	if eq := strings.IndexByte(line, '='); eq >= 0 {
		return line[:eq+1]
	}
	return line
}

func parseSeconds(v string) (uint32, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return 0, false
	}
	return mathx.Clamp(uint32(n), types.MinPollSeconds, types.MaxPollSeconds), true
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
