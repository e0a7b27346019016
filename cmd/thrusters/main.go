//go:build tinygo && rp

// Command thrusters is the vehicle's thruster firmware. It arms
// the ESCs with a neutral signal, then follows throttle vectors
// from the serial control link, forwarding ESC telemetry back up.
// A stalled link forces every thruster to zero.
package main

import (
	"device/rp"
	"machine"
	"time"

	"github.com/manafishrov/firmware/driver/dshotpio"
	"github.com/manafishrov/firmware/dshot"
	"github.com/manafishrov/firmware/hostlink"
)

const (
	motor0PinBase = 6
	motor1PinBase = 18
	numMotors0    = 4
	numMotors1    = 4
	numMotors     = numMotors0 + numMotors1

	// Wire speed in kb/s.
	dshotSpeed = 300

	linkBaud = 115200

	armingDuration = 10 * time.Second
	// A link this quiet means the host is gone.
	linkTimeout = 200 * time.Millisecond
)

var uart = machine.UART0

func main() {
	uart.Configure(machine.UARTConfig{
		BaudRate: linkBaud,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})

	front := &dshot.Controller{
		Hardware: &dshotpio.SM{Pio: rp.PIO0, SM: 0},
		Speed:    dshotSpeed,
		BasePin:  motor0PinBase,
		Channels: numMotors0,
	}
	rear := &dshot.Controller{
		Hardware: &dshotpio.SM{Pio: rp.PIO0, SM: 1},
		Speed:    dshotSpeed,
		BasePin:  motor1PinBase,
		Channels: numMotors1,
	}
	ctrls := []*dshot.Controller{front, rear}
	for _, c := range ctrls {
		if err := c.Configure(); err != nil {
			fatal(err)
		}
	}
	front.RegisterTelemetry(reportTelemetry(0))
	rear.RegisterTelemetry(reportTelemetry(numMotors0))

	// Hold the neutral signal until the ESCs have armed.
	armUntil := time.Now().Add(armingDuration)
	for time.Now().Before(armUntil) {
		for _, c := range ctrls {
			for i := 0; i < c.Channels; i++ {
				c.SetThrottle(i, 0)
			}
		}
		loopAll(ctrls)
	}

	var (
		dec       hostlink.Decoder
		throttles [numMotors]uint16
		rx        = make([]uint16, 0, hostlink.MaxMotors)
	)
	lastPacket := time.Now()
	for {
		for uart.Buffered() > 0 {
			b, err := uart.ReadByte()
			if err != nil {
				break
			}
			p, ok := dec.Feed(b)
			if !ok {
				continue
			}
			switch p.Type {
			case hostlink.TypeThrottles:
				vals, err := hostlink.ParseThrottles(p, rx)
				if err == nil && len(vals) == numMotors {
					copy(throttles[:], vals)
					lastPacket = time.Now()
				}
			case hostlink.TypeMotorConfig:
				mode3D, reversed, err := hostlink.ParseMotorConfig(p)
				if err == nil {
					applyMotorConfig(ctrls, mode3D, reversed)
					lastPacket = time.Now()
				}
			}
		}
		if time.Since(lastPacket) > linkTimeout {
			for i := range throttles {
				throttles[i] = 0
			}
		}
		for i := 0; i < numMotors0; i++ {
			front.SetThrottle(i, throttles[i])
		}
		for i := 0; i < numMotors1; i++ {
			rear.SetThrottle(i, throttles[numMotors0+i])
		}
		loopAll(ctrls)
	}
}

// loopAll starts every controller before completing any, so their
// wire transfers overlap.
func loopAll(ctrls []*dshot.Controller) {
	for _, c := range ctrls {
		c.LoopStart()
	}
	for _, c := range ctrls {
		c.LoopComplete()
	}
}

// reportTelemetry forwards decoded ESC telemetry up the link,
// numbering motors across both controllers.
func reportTelemetry(motorBase int) dshot.TelemetryFunc {
	var buf []byte
	return func(channel int, kind dshot.TelemetryKind, value int) {
		buf = hostlink.AppendTelemetry(buf[:0], hostlink.Telemetry{
			Motor: uint8(motorBase + channel),
			Kind:  kind,
			Value: int32(value),
		})
		uart.Write(buf)
	}
}

// applyMotorConfig replays the 3D mode, spin direction and save
// settings command bursts to every motor. Each command must stay
// latched for a full burst on every channel before the next one.
func applyMotorConfig(ctrls []*dshot.Controller, mode3D, reversed bool) {
	mode := uint16(dshot.Cmd3DModeOff)
	if mode3D {
		mode = dshot.Cmd3DModeOn
	}
	dir := uint16(dshot.CmdSpinDirectionNormal)
	if reversed {
		dir = dshot.CmdSpinDirectionReversed
	}
	for _, cmd := range []uint16{mode, dir, dshot.CmdSaveSettings} {
		for _, c := range ctrls {
			for i := 0; i < c.Channels; i++ {
				c.SendCommand(i, cmd)
			}
		}
		for i := 0; i < 12*dshot.MaxChannels; i++ {
			loopAll(ctrls)
		}
	}
}

func fatal(err error) {
	for {
		println("thrusters:", err.Error())
		time.Sleep(time.Second)
	}
}
