// Package i2cdev drives I2C buses through the Linux /dev/i2c-N character
// devices, in the shape tinygo drivers expect.
package i2cdev

import (
	"fmt"
	"sync"

	"tinygo.org/x/drivers"
)

// DevicePath returns the character device of bus n.
func DevicePath(n int) string { return fmt.Sprintf("/dev/i2c-%d", n) }

// Buses opens each bus once and hands the same handle to every driver on it.
type Buses struct {
	Open func(n int) (drivers.I2C, error) // defaults to the platform opener

	mu   sync.Mutex
	open map[int]drivers.I2C
}

func (b *Buses) Get(n int) (drivers.I2C, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bus, ok := b.open[n]; ok {
		return bus, nil
	}
	opener := b.Open
	if opener == nil {
		opener = func(n int) (drivers.I2C, error) { return Open(n) }
	}
	bus, err := opener(n)
	if err != nil {
		return nil, err
	}
	if b.open == nil {
		b.open = map[int]drivers.I2C{}
	}
	b.open[n] = bus
	return bus, nil
}

// Close releases every bus that can be closed.
func (b *Buses) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for n, bus := range b.open {
		if c, ok := bus.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		delete(b.open, n)
	}
}
