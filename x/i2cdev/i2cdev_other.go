//go:build !linux

package i2cdev

import (
	"runtime"

	"sensornode-go/errcode"
)

type Bus struct{}

// Open always fails off Linux; use sim sensors there.
func Open(n int) (*Bus, error) {
	return nil, &errcode.E{C: errcode.OpenFailed, Op: "i2c", Msg: DevicePath(n) + " on " + runtime.GOOS}
}

func (*Bus) Tx(uint16, []byte, []byte) error { return errcode.NotConnected }

func (*Bus) Close() error { return nil }
