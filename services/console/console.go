// Package console mirrors the diagnostic log onto a serial port.
package console

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"go.bug.st/serial"

	"sensornode-go/errcode"
)

const DefaultBaud = 115200

var errClosed = errors.New("console closed")

// open is replaced in tests.
var open = func(name string, mode *serial.Mode) (io.WriteCloser, error) {
	return serial.Open(name, mode)
}

// Mode is 8N1 at baud.
func Mode(baud int) *serial.Mode {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Console is an io.Writer safe for concurrent use. Line feeds go out as
// CR LF so a plain terminal emulator shows one record per line.
type Console struct {
	mu   sync.Mutex
	port io.WriteCloser
	name string
}

func Open(name string, baud int) (*Console, error) {
	p, err := open(name, Mode(baud))
	if err != nil {
		return nil, &errcode.E{C: errcode.OpenFailed, Op: "console", Msg: name, Err: err}
	}
	return &Console{port: p, name: name}, nil
}

func (c *Console) Name() string { return c.name }

func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return 0, errClosed
	}
	if _, err := c.port.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.port == nil {
		return nil
	}
	err := c.port.Close()
	c.port = nil
	return err
}

// Ports lists the serial ports present, for the log line that follows a
// failed Open.
func Ports() []string {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil
	}
	return ports
}
