// Package esclink drives the thruster firmware over its serial
// control link. It is the host-facing motor abstraction: fractional
// throttles in, telemetry reports out.
package esclink

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/tarm/serial"

	"github.com/manafishrov/firmware/dshot"
	"github.com/manafishrov/firmware/hostlink"
)

// Pins usable for motor outputs on the target board.
const (
	MinPin = 2
	MaxPin = 28
)

// Baud is the control link rate.
const Baud = 115200

// Open opens the control link serial device. With an empty name,
// the usual device nodes are probed.
func Open(dev string) (io.ReadWriteCloser, error) {
	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyACM0", "/dev/ttyACM1", "/dev/ttyUSB0")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("esclink: no device specified")
	}
	var firstErr error
	for _, dev := range devices {
		c := &serial.Config{Name: dev, Baud: Baud}
		s, err := serial.OpenPort(c)
		if err == nil {
			return s, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// Link speaks the hostlink protocol over an open port.
type Link struct {
	port    io.ReadWriter
	motors  int
	dec     hostlink.Decoder
	scratch [64]byte
	rbuf    []byte
	wbuf    []byte
}

func New(port io.ReadWriter) *Link {
	return &Link{port: port}
}

func validatePins(pins []int) error {
	if len(pins) == 0 {
		return errors.New("esclink: empty pin list")
	}
	if len(pins) > hostlink.MaxMotors {
		return fmt.Errorf("esclink: %d motors exceed the link maximum of %d", len(pins), hostlink.MaxMotors)
	}
	for _, p := range pins {
		if p < MinPin || p > MaxPin {
			return fmt.Errorf("esclink: pin %d outside GPIO %d…%d", p, MinPin, MaxPin)
		}
	}
	return nil
}

// Initialize binds the link to a motor set and latches every
// throttle at zero.
func (l *Link) Initialize(pins []int) error {
	if err := validatePins(pins); err != nil {
		return err
	}
	l.motors = len(pins)
	return l.sendRaw(make([]uint16, l.motors))
}

// Finalize returns every motor to zero throttle.
func (l *Link) Finalize(pins []int) error {
	if l.motors == 0 {
		return errors.New("esclink: not initialized")
	}
	return l.sendRaw(make([]uint16, l.motors))
}

// SendThrottles transmits one fractional throttle in [0, 1] per
// motor, mapped onto the DShot throttle range.
func (l *Link) SendThrottles(throttles []float64) error {
	if len(throttles) != l.motors {
		return fmt.Errorf("esclink: %d throttles for %d motors", len(throttles), l.motors)
	}
	raw := make([]uint16, len(throttles))
	for i, t := range throttles {
		if t < 0 || t > 1 {
			return fmt.Errorf("esclink: throttle %g outside [0, 1]", t)
		}
		raw[i] = dshot.MinThrottle + uint16(t*(dshot.MaxThrottle-dshot.MinThrottle)+0.5)
	}
	return l.sendRaw(raw)
}

func (l *Link) sendRaw(raw []uint16) error {
	l.wbuf = hostlink.AppendThrottles(l.wbuf[:0], raw)
	if _, err := l.port.Write(l.wbuf); err != nil {
		return fmt.Errorf("esclink: %w", err)
	}
	return nil
}

// Set3DMode switches the ESCs between normal and bidirectional
// mode and sets the spin direction. The firmware replays the
// corresponding command bursts to every motor.
func (l *Link) Set3DMode(mode3D, reversed bool) error {
	l.wbuf = hostlink.AppendMotorConfig(l.wbuf[:0], mode3D, reversed)
	if _, err := l.port.Write(l.wbuf); err != nil {
		return fmt.Errorf("esclink: %w", err)
	}
	return nil
}

// ReadTelemetry blocks until the firmware delivers the next
// telemetry report.
func (l *Link) ReadTelemetry() (hostlink.Telemetry, error) {
	for {
		for len(l.rbuf) > 0 {
			b := l.rbuf[0]
			l.rbuf = l.rbuf[1:]
			p, ok := l.dec.Feed(b)
			if ok && p.Type == hostlink.TypeTelemetry {
				return hostlink.ParseTelemetry(p)
			}
		}
		n, err := l.port.Read(l.scratch[:])
		if n == 0 && err != nil {
			return hostlink.Telemetry{}, fmt.Errorf("esclink: %w", err)
		}
		l.rbuf = l.scratch[:n]
	}
}
