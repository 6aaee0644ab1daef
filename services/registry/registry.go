// Package registry keeps the fixed-capacity sensor table.
//
// Records are handed out by value; all writes go through the Registry so the
// derived topic is recomputed whenever the root topic or a location changes.
package registry

import (
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/mathx"
	"sensornode-go/x/strx"
)

// Registry is the sensor table. It is not safe for concurrent use; the node
// run loop is its only user.
type Registry struct {
	recs [types.MaxSensors]types.SensorRecord
	n    int
	root string
	log  *slog.Logger
}

// New creates an empty table whose topics hang below rootTopic.
func New(rootTopic string, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		root: strx.Field(rootTopic, types.RootTopicMaxLen),
		log:  log,
	}
}

// Register appends a sensor. A full table or a duplicate id is rejected with
// a WARN and an error code; the table is unchanged.
func (r *Registry) Register(id, kind string, m types.Measurand) (types.SensorRecord, error) {
	id = strx.Field(id, types.IDMaxLen)
	if id == "" {
		r.log.Warn("sensor without id rejected", "kind", kind)
		return types.SensorRecord{}, errcode.InvalidParams
	}
	if _, ok := r.index(id); ok {
		r.log.Warn("sensor already registered", "id", id)
		return types.SensorRecord{}, errcode.DuplicateID
	}
	if r.n == len(r.recs) {
		r.log.Warn("sensor table full", "id", id, "capacity", len(r.recs))
		return types.SensorRecord{}, errcode.RegistryFull
	}
	rec := &r.recs[r.n]
	*rec = types.SensorRecord{
		ID:        id,
		Kind:      strx.Field(kind, types.KindMaxLen),
		Measurand: types.Measurand(strx.Field(string(m), types.MeasurandMaxLen)),
		Location:  id,
		Value:     types.NoValue,
	}
	rec.Topic = r.topicFor(rec.Location)
	r.n++
	r.log.Debug("sensor registered", "id", id, "type", rec.Kind, "measurand", rec.Measurand)
	return *rec, nil
}

// Find returns a copy of the record for id.
func (r *Registry) Find(id string) (types.SensorRecord, bool) {
	i, ok := r.index(id)
	if !ok {
		return types.SensorRecord{}, false
	}
	return r.recs[i], true
}

// Len returns the number of registered sensors.
func (r *Registry) Len() int { return r.n }

// RootTopic returns the current topic prefix.
func (r *Registry) RootTopic() string { return r.root }

// All yields present records in insertion order. The sequence can be ranged
// over any number of times.
func (r *Registry) All() iter.Seq[types.SensorRecord] {
	return func(yield func(types.SensorRecord) bool) {
		for i := 0; i < r.n; i++ {
			if !r.recs[i].Present() {
				continue
			}
			if !yield(r.recs[i]) {
				return
			}
		}
	}
}

// SetValue stores raw+correction as fixed two-decimal text.
func (r *Registry) SetValue(id string, raw float64) bool {
	rec, ok := r.ref(id)
	if !ok {
		return false
	}
	rec.Value = FormatValue(raw + rec.Correction)
	return true
}

// SetLocation renames a sensor and recomputes its topic.
func (r *Registry) SetLocation(id, location string) bool {
	rec, ok := r.ref(id)
	if !ok {
		return false
	}
	rec.Location = strx.Field(location, types.LocationMaxLen)
	rec.Topic = r.topicFor(rec.Location)
	return true
}

// SetEnabled toggles publishing for a sensor.
func (r *Registry) SetEnabled(id string, on bool) bool {
	rec, ok := r.ref(id)
	if !ok {
		return false
	}
	rec.Enabled = on
	return true
}

// SetCorrection sets the calibration offset, clamped to ±CorrectionLimit.
// It applies from the next sample on.
func (r *Registry) SetCorrection(id string, c float64) bool {
	rec, ok := r.ref(id)
	if !ok {
		return false
	}
	rec.Correction = ClampCorrection(c)
	return true
}

// SetRootTopic changes the prefix and recomputes every topic.
func (r *Registry) SetRootTopic(root string) {
	r.root = strx.Field(root, types.RootTopicMaxLen)
	for i := 0; i < r.n; i++ {
		r.recs[i].Topic = r.topicFor(r.recs[i].Location)
	}
}

// RecomputeTopic rebuilds one topic from the current root and location.
func (r *Registry) RecomputeTopic(id string) bool {
	rec, ok := r.ref(id)
	if !ok {
		return false
	}
	rec.Topic = r.topicFor(rec.Location)
	return true
}

func (r *Registry) index(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i := 0; i < r.n; i++ {
		if r.recs[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (r *Registry) ref(id string) (*types.SensorRecord, bool) {
	i, ok := r.index(id)
	if !ok {
		return nil, false
	}
	return &r.recs[i], true
}

func (r *Registry) topicFor(location string) string {
	return Topic(r.root, location)
}

// Topic derives a publish topic: root + "/" + location with dots as levels.
func Topic(root, location string) string {
	return root + "/" + strings.ReplaceAll(location, ".", "/")
}

// FormatValue renders a sample with two decimals, clamped to the value field width.
func FormatValue(v float64) string {
	v = mathx.Clamp(v, -types.ValueLimit, types.ValueLimit)
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// ClampCorrection bounds a calibration offset.
func ClampCorrection(c float64) float64 {
	return mathx.Clamp(c, -types.CorrectionLimit, types.CorrectionLimit)
}
