package sensors

import (
	"sensornode-go/drivers/aht20"
)

func init() { RegisterBuilder("aht20", BuilderFunc(buildAHT20)) }

func buildAHT20(p Params, env Env) (Driver, error) {
	bus, err := env.i2c(p.Bus)
	if err != nil {
		return nil, err
	}
	addr := p.Addr
	if addr == 0 {
		addr = aht20.Address
	}
	dev := aht20.New(bus)
	dev.Address = addr
	return &chip{
		kind:  "AHT20",
		addr:  addr,
		chans: []channel{chTemperature, chHumidity},
		clock: env.Clock,
		probe: func() error {
			if _, err := dev.Status(); err != nil {
				return err
			}
			dev.Configure(aht20.Config{Address: addr})
			return nil
		},
		sample: func() ([]float64, error) {
			var s aht20.Sample
			if err := dev.Read(&s); err != nil {
				return nil, err
			}
			return []float64{s.Celsius(), s.RelHumidity()}, nil
		},
	}, nil
}
