package sensors

import (
	"sensornode-go/x/mathx"

	"tinygo.org/x/drivers/shtc3"
)

const shtc3Address = 0x70

func init() { RegisterBuilder("shtc3", BuilderFunc(buildSHTC3)) }

func buildSHTC3(p Params, env Env) (Driver, error) {
	bus, err := env.i2c(p.Bus)
	if err != nil {
		return nil, err
	}
	dev := shtc3.New(bus)
	return &chip{
		kind:  "SHTC3",
		addr:  shtc3Address,
		chans: []channel{chTemperature, chHumidity},
		clock: env.Clock,
		probe: func() error { return dev.WakeUp() },
		sample: func() ([]float64, error) {
			// Wake, read, sleep.
			_ = dev.WakeUp()
			defer func() { _ = dev.Sleep() }()

			tmc, rhx100, err := dev.ReadTemperatureHumidity()
			if err != nil {
				return nil, err
			}
			rhx100 = mathx.Clamp(rhx100, 0, 10000)
			return []float64{float64(tmc) / 1000, float64(rhx100) / 100}, nil
		},
	}, nil
}
