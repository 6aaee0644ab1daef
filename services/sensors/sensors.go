// Package sensors enumerates the node's sensors and reads them by id.
//
// Drivers are built from boot-file entries by named builders, the same way
// the HAL picks a builder per device type. Each driver reports the ids it
// serves; the Bus routes reads to the owning driver.
package sensors

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sensornode-go/errcode"
	"sensornode-go/types"
	"sensornode-go/x/timex"

	"tinygo.org/x/drivers"
)

// Device is one readable channel.
type Device struct {
	ID        string
	Kind      string
	Measurand types.Measurand
}

// Driver serves one or more channels.
type Driver interface {
	Probe() ([]Device, error)
	Read(id string) (float64, error)
}

// Params is one boot-file sensor entry.
type Params struct {
	Driver    string          `yaml:"driver"`
	ID        string          `yaml:"id"`
	Bus       int             `yaml:"bus"`
	Addr      uint16          `yaml:"addr"`
	Channel   int             `yaml:"channel"`
	Kind      string          `yaml:"kind"`
	Measurand types.Measurand `yaml:"measurand"`
	Base      float64         `yaml:"base"`
	Step      float64         `yaml:"step"`
}

// Env provides the hardware a builder may claim.
type Env struct {
	I2C   func(bus int) (drivers.I2C, error)
	ADC   func(channel int) (ADC, error)
	Clock timex.Clock
}

func (e Env) i2c(bus int) (drivers.I2C, error) {
	if e.I2C == nil {
		return nil, errcode.InvalidParams
	}
	return e.I2C(bus)
}

// -----------------------------------------------------------------------------
// Builders
// -----------------------------------------------------------------------------

type Builder interface {
	Build(p Params, env Env) (Driver, error)
}

type BuilderFunc func(p Params, env Env) (Driver, error)

func (f BuilderFunc) Build(p Params, env Env) (Driver, error) { return f(p, env) }

var (
	buildersMu sync.RWMutex
	builders   = map[string]Builder{}
)

// RegisterBuilder makes a driver available by name. Registering a name twice
// panics.
func RegisterBuilder(name string, b Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if _, dup := builders[name]; dup {
		panic("sensors: duplicate builder " + name)
	}
	builders[name] = b
}

func lookupBuilder(name string) (Builder, bool) {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	b, ok := builders[name]
	return b, ok
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

// Bus aggregates drivers. It is used from the node loop only.
type Bus struct {
	drivers []Driver
	owner   map[string]Driver
	log     *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{owner: map[string]Driver{}, log: log}
}

// Add attaches a driver directly.
func (b *Bus) Add(d Driver) { b.drivers = append(b.drivers, d) }

// Build constructs a driver per entry. Entries that fail are logged and
// skipped; the number built is returned.
func (b *Bus) Build(entries []Params, env Env) int {
	n := 0
	for _, p := range entries {
		bld, ok := lookupBuilder(p.Driver)
		if !ok {
			b.log.Warn("unknown sensor driver", "driver", p.Driver)
			continue
		}
		d, err := bld.Build(p, env)
		if err != nil {
			b.log.Warn("sensor driver build failed", "driver", p.Driver, "err", err)
			continue
		}
		b.Add(d)
		n++
	}
	return n
}

// Enumerate probes every driver and returns the channels found, in driver
// order. An id claimed twice keeps its first owner.
func (b *Bus) Enumerate() []Device {
	var out []Device
	for _, d := range b.drivers {
		devs, err := d.Probe()
		if err != nil {
			b.log.Warn("sensor probe failed", "err", err)
			continue
		}
		for _, dev := range devs {
			if _, dup := b.owner[dev.ID]; dup {
				b.log.Warn("sensor id claimed twice", "id", dev.ID)
				continue
			}
			b.owner[dev.ID] = d
			out = append(out, dev)
		}
	}
	b.log.Info("sensors enumerated", "count", len(out))
	return out
}

// Read samples one channel.
func (b *Bus) Read(id string) (float64, error) {
	d, ok := b.owner[id]
	if !ok {
		return 0, &errcode.E{C: errcode.UnknownSensor, Op: "read", Msg: id}
	}
	v, err := d.Read(id)
	if err != nil {
		return 0, &errcode.E{C: errcode.ReadFailed, Op: "read", Msg: id, Err: err}
	}
	return v, nil
}

// -----------------------------------------------------------------------------
// Multi-channel chips
// -----------------------------------------------------------------------------

// channel is one quantity of a chip; its id is the bus address in hex plus
// the suffix letter ("70T").
type channel struct {
	suffix byte
	m      types.Measurand
}

var (
	chTemperature = channel{'T', types.MeasurandTemperature}
	chHumidity    = channel{'H', types.MeasurandHumidity}
	chPressure    = channel{'P', types.MeasurandPressure}
)

// maxAge lets the channels of one chip share a single bus transaction per poll.
const maxAge = 500 * time.Millisecond

// chip serves several channels from one sample call.
type chip struct {
	kind   string
	addr   uint16
	chans  []channel
	probe  func() error
	sample func() ([]float64, error) // one value per channel, in order
	clock  timex.Clock

	at   time.Time
	last []float64
}

func chipID(addr uint16, suffix byte) string { return fmt.Sprintf("%02X%c", addr, suffix) }

func (c *chip) Probe() ([]Device, error) {
	if err := c.probe(); err != nil {
		return nil, fmt.Errorf("%s at 0x%02x: %w", c.kind, c.addr, err)
	}
	out := make([]Device, len(c.chans))
	for i, ch := range c.chans {
		out[i] = Device{ID: chipID(c.addr, ch.suffix), Kind: c.kind, Measurand: ch.m}
	}
	return out, nil
}

func (c *chip) Read(id string) (float64, error) {
	idx := -1
	for i, ch := range c.chans {
		if chipID(c.addr, ch.suffix) == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, errcode.UnknownSensor
	}
	now := c.clock.Or()()
	if c.last == nil || now.Sub(c.at) >= maxAge {
		vals, err := c.sample()
		if err != nil {
			c.last = nil
			return 0, err
		}
		c.last, c.at = vals, now
	}
	return c.last[idx], nil
}
