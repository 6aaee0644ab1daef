package sensors

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"sensornode-go/types"
	"sensornode-go/x/mathx"
	"sensornode-go/x/strx"
)

// ADC is one analog input scaled to the full 16-bit range.
type ADC interface {
	Get() (uint16, error)
}

func init() { RegisterBuilder("analog", BuilderFunc(buildAnalog)) }

// analog reports an ADC channel as a percentage of full scale.
type analog struct {
	id   string
	kind string
	m    types.Measurand
	adc  ADC
}

func buildAnalog(p Params, env Env) (Driver, error) {
	if env.ADC == nil {
		return nil, fmt.Errorf("analog: no ADC available")
	}
	adc, err := env.ADC(p.Channel)
	if err != nil {
		return nil, err
	}
	m := p.Measurand
	if m == "" {
		m = types.MeasurandBrightness
	}
	return &analog{
		id:   strx.Coalesce(p.ID, "A"+strconv.Itoa(p.Channel)),
		kind: strx.Coalesce(p.Kind, "ADC"),
		m:    m,
		adc:  adc,
	}, nil
}

func (a *analog) Probe() ([]Device, error) {
	if _, err := a.adc.Get(); err != nil {
		return nil, err
	}
	return []Device{{ID: a.id, Kind: a.kind, Measurand: a.m}}, nil
}

func (a *analog) Read(string) (float64, error) {
	raw, err := a.adc.Get()
	if err != nil {
		return 0, err
	}
	// 0.1 % resolution
	return float64(mathx.Scale[uint16](raw, 0, 0xFFFF, 0, 1000)) / 10, nil
}

// SysfsADC reads an IIO channel such as
// /sys/bus/iio/devices/iio:device0/in_voltage0_raw.
type SysfsADC struct {
	Path string
	Bits int // converter resolution, default 12
}

func (s SysfsADC) Get() (uint16, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0, err
	}
	bits := s.Bits
	if bits <= 0 || bits > 16 {
		bits = 12
	}
	v = mathx.Clamp(v, 0, uint64(1)<<bits-1)
	return uint16(v << (16 - bits)), nil
}
