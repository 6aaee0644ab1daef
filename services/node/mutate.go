package node

import (
	"strconv"

	"sensornode-go/services/protocol"
	"sensornode-go/services/registry"
	"sensornode-go/types"
	"sensornode-go/x/mathx"
	"sensornode-go/x/strx"
	"sensornode-go/x/timex"
)

// Form field names. Per-sensor fields are the prefix plus the sensor id.
const (
	fieldNode     = "node"
	fieldTopic    = "topic"
	fieldAltitude = "altitude"
	fieldPoll     = "interval"
	fieldAux      = "aux-interval"
	fieldDisplay  = "display"
	fieldShow     = "show"

	fieldLocation   = "loc-"
	fieldEnabled    = "en-"
	fieldCorrection = "corr-"
)

// Mutate applies a configuration form. Fields that are missing or do not
// parse leave their setting alone; checkboxes are the exception and read as
// false when absent. The store is written only when something differs from
// the state before the call, and a poll is triggered when a value that feeds
// computed readings changed.
func (n *Node) Mutate(f protocol.Form) (changed, resample bool) {
	cfg := n.cfg

	if v, ok := f.Text(fieldNode); ok {
		cfg.NodeName = strx.Field(v, types.NodeNameMaxLen)
	}
	if v, ok := f.Text(fieldTopic); ok {
		cfg.RootTopic = strx.Field(v, types.RootTopicMaxLen)
	}
	if v, ok := f.Text(fieldAltitude); ok {
		if a, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Altitude = mathx.Clamp(a, types.AltitudeMin, types.AltitudeMax)
		}
	}
	if v, ok := f.Text(fieldPoll); ok {
		if s, ok := parseSeconds(v); ok {
			cfg.SensorPollSeconds = s
		}
	}
	if v, ok := f.Text(fieldAux); ok {
		if s, ok := parseSeconds(v); ok {
			cfg.AuxRefreshSeconds = s
		}
	}
	cfg.DisplayEnabled = f.Checked(fieldDisplay)
	if v, ok := f.Get(fieldShow); ok {
		cfg.HighlightedSensor = strx.Field(v, types.IDMaxLen)
	}

	if cfg != n.cfg {
		changed = true
		if cfg.Altitude != n.cfg.Altitude {
			resample = true
		}
		retarget := cfg.RootTopic != n.cfg.RootTopic
		if retarget {
			n.reg.SetRootTopic(cfg.RootTopic)
		}
		if cfg.SensorPollSeconds != n.cfg.SensorPollSeconds {
			n.sched.SetInterval(TaskPoll, timex.Seconds(cfg.SensorPollSeconds))
		}
		if cfg.AuxRefreshSeconds != n.cfg.AuxRefreshSeconds {
			n.sched.SetInterval(TaskAux, timex.Seconds(cfg.AuxRefreshSeconds))
		}
		n.cfg = cfg
		if retarget {
			n.announceRoot()
		}
	}

	for rec := range n.reg.All() {
		if v, ok := f.Text(fieldLocation + rec.ID); ok {
			if loc := strx.Field(v, types.LocationMaxLen); loc != rec.Location {
				n.reg.SetLocation(rec.ID, loc)
				changed = true
			}
		}
		if on := f.Checked(fieldEnabled + rec.ID); on != rec.Enabled {
			n.reg.SetEnabled(rec.ID, on)
			changed = true
		}
		if v, ok := f.Text(fieldCorrection + rec.ID); ok {
			c, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			if c = registry.ClampCorrection(c); c != rec.Correction {
				n.reg.SetCorrection(rec.ID, c)
				changed, resample = true, true
			}
		}
	}

	if !changed {
		n.log.Debug("config unchanged")
		return false, false
	}
	n.log.Info("config updated", "resample", resample)
	if n.store != nil {
		n.m.RecordSave(n.store.Save(n.reg, n.cfg))
	}
	if resample {
		n.sched.Trigger(TaskPoll)
	}
	if n.cfg.DisplayEnabled {
		n.render()
	}
	return changed, resample
}

func parseSeconds(v string) (uint32, bool) {
	s, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, false
	}
	return mathx.Clamp(uint32(s), types.MinPollSeconds, types.MaxPollSeconds), true
}
