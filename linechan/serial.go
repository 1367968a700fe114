package linechan

import (
	"errors"
	"fmt"

	"go.bug.st/serial"
)

// DefaultSerialMode is the line setting used by OpenSerial when mode is nil.
var DefaultSerialMode = serial.Mode{
	BaudRate: 115200,
	DataBits: 8,
	Parity:   serial.NoParity,
	StopBits: serial.OneStopBit,
}

// serialPort clears DTR before closing the port.
type serialPort struct {
	serial.Port
}

func (p *serialPort) Close() error {
	// ignore DTR errors, the port is going away anyway
	_ = p.SetDTR(false)

	if err := p.Port.Close(); err != nil {
		return fmt.Errorf("linechan: close serial port: %w", err)
	}

	return nil
}

// OpenSerial opens a channel over a serial port. Frames and responses share the device,
// one direction each. DTR is raised once the port is open and cleared on Close.
func OpenSerial(portName string, mode *serial.Mode, opts ...Option) (*Stream, error) {
	if portName == "" {
		return nil, errors.New("linechan: serial port name must not be empty")
	}
	if mode == nil {
		m := DefaultSerialMode
		mode = &m
	}

	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("linechan: open serial port %q at %d baud: %w", portName, mode.BaudRate, err)
	}

	if err := p.SetDTR(true); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("linechan: set DTR on %q: %w", portName, err)
	}

	port := &serialPort{Port: p}

	return NewStream(port, port, append([]Option{WithName(portName)}, opts...)...)
}

// SerialPorts lists the serial ports found on the system.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("linechan: list serial ports: %w", err)
	}

	return ports, nil
}
