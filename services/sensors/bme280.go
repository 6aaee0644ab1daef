package sensors

import (
	"errors"

	"tinygo.org/x/drivers/bme280"
)

var errNotConnected = errors.New("device not responding")

func init() { RegisterBuilder("bme280", BuilderFunc(buildBME280)) }

func buildBME280(p Params, env Env) (Driver, error) {
	bus, err := env.i2c(p.Bus)
	if err != nil {
		return nil, err
	}
	dev := bme280.New(bus)
	if p.Addr != 0 {
		dev.Address = p.Addr
	}
	return &chip{
		kind:  "BME280",
		addr:  dev.Address,
		chans: []channel{chTemperature, chHumidity, chPressure},
		clock: env.Clock,
		probe: func() error {
			if !dev.Connected() {
				return errNotConnected
			}
			dev.Configure()
			return nil
		},
		sample: func() ([]float64, error) {
			tmc, err := dev.ReadTemperature()
			if err != nil {
				return nil, err
			}
			hx100, err := dev.ReadHumidity()
			if err != nil {
				return nil, err
			}
			mpa, err := dev.ReadPressure()
			if err != nil {
				return nil, err
			}
			// milli-°C, hundredths of %RH, milli-pascal to hPa
			return []float64{float64(tmc) / 1000, float64(hx100) / 100, float64(mpa) / 100000}, nil
		},
	}, nil
}
