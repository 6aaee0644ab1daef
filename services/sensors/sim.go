package sensors

import (
	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/strx"
)

func init() { RegisterBuilder("sim", BuilderFunc(buildSim)) }

// Sim is a synthetic channel: base, base+step, ... base+9*step, repeating.
type Sim struct {
	Device
	Base float64
	Step float64
	n    int
}

func buildSim(p Params, _ Env) (Driver, error) {
	if p.ID == "" {
		return nil, errcode.InvalidParams
	}
	m := p.Measurand
	if m == "" {
		m = types.MeasurandTemperature
	}
	return &Sim{
		Device: Device{ID: p.ID, Kind: strx.Coalesce(p.Kind, "SIM"), Measurand: m},
		Base:   p.Base,
		Step:   p.Step,
	}, nil
}

func (s *Sim) Probe() ([]Device, error) { return []Device{s.Device}, nil }

func (s *Sim) Read(id string) (float64, error) {
	if id != s.ID {
		return 0, errcode.UnknownSensor
	}
	v := s.Base + s.Step*float64(s.n%10)
	s.n++
	return v, nil
}
