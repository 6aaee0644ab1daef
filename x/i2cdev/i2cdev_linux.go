//go:build linux

package i2cdev

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"sensornode-go/errcode"
)

// ioctl request selecting the target address of following reads and writes.
const i2cSlave = 0x0703

// Bus is one opened adapter. Tx holds a lock across the address switch and
// the transfer, so drivers sharing the bus cannot interleave.
type Bus struct {
	mu   sync.Mutex
	f    *os.File
	addr uint16
	set  bool
}

func Open(n int) (*Bus, error) {
	f, err := os.OpenFile(DevicePath(n), os.O_RDWR, 0)
	if err != nil {
		return nil, &errcode.E{C: errcode.OpenFailed, Op: "i2c", Msg: DevicePath(n), Err: err}
	}
	return &Bus{f: f}, nil
}

// Tx writes w then reads into r. Either may be empty.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.set || b.addr != addr {
		if err := unix.IoctlSetInt(int(b.f.Fd()), i2cSlave, int(addr)); err != nil {
			return errcode.Wrap(errcode.Error, "i2c", err)
		}
		b.addr, b.set = addr, true
	}
	if len(w) > 0 {
		if _, err := b.f.Write(w); err != nil {
			return errcode.Wrap(errcode.ReadFailed, "i2c", err)
		}
	}
	if len(r) > 0 {
		if _, err := b.f.Read(r); err != nil {
			return errcode.Wrap(errcode.ReadFailed, "i2c", err)
		}
	}
	return nil
}

func (b *Bus) Close() error { return b.f.Close() }
