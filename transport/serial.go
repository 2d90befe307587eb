package transport

import (
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the factory RS-232 setting of VISCA cameras.
const DefaultBaudRate = 9600

// Serial reaches a camera over its RS-232/RS-422 VISCA port.
type Serial struct {
	Device   string
	BaudRate int
}

func (s Serial) String() string {
	return "serial://" + s.Device
}

func (s Serial) Dial(ctx context.Context) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	baud := s.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", s.Device, err)
	}
	return port, nil
}
