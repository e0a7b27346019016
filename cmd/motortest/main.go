//go:build tinygo && rp

// Command motortest exercises every thruster through ramp cycles:
// all motors forward, all motors reverse, then each motor
// individually in both directions. Throttle values assume ESCs in
// 3D mode, where the upper half of the range spins forward and the
// lower half reverse.
package main

import (
	"device/rp"
	"time"

	"github.com/manafishrov/firmware/driver/dshotpio"
	"github.com/manafishrov/firmware/dshot"
)

const (
	motor0PinBase = 18
	motor1PinBase = 6
	numMotors0    = 4
	numMotors1    = 4
	numMotors     = numMotors0 + numMotors1

	dshotSpeed = 300

	// 3D mode throttle bands.
	throttleNeutral  = 0
	minForward       = 1048
	maxForward       = 2047
	minReverse       = 48
	maxReverse       = 1047
	halfForwardRange = (maxForward - minForward) / 2
	halfReverseRange = (maxReverse - minReverse) / 2

	armingDuration = 10 * time.Second
	rampDuration   = 6 * time.Second
	pauseDuration  = 500 * time.Millisecond
)

type phase uint8

const (
	rampUp phase = iota
	rampDown
	pause
)

func main() {
	time.Sleep(4 * time.Second)
	println("thruster ramp test: pins 18-21 and 6-9")
	println("power on the ESCs now, arming with neutral signal")

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
		c.RegisterTelemetry(func(channel int, kind dshot.TelemetryKind, value int) {
			println("ch", channel, "kind", int(kind), "value", value)
		})
	}

	setMotor := func(motor int, throttle uint16) {
		if motor < numMotors0 {
			front.SetThrottle(motor, throttle)
		} else {
			rear.SetThrottle(motor-numMotors0, throttle)
		}
	}
	loopAll := func() {
		for _, c := range ctrls {
			c.LoopStart()
		}
		for _, c := range ctrls {
			c.LoopComplete()
		}
	}

	// Arm.
	armUntil := time.Now().Add(armingDuration)
	for time.Now().Before(armUntil) {
		for m := 0; m < numMotors; m++ {
			setMotor(m, throttleNeutral)
		}
		loopAll()
	}
	println("arming complete")

	// Each cycle ramps up to half throttle, back down, then
	// pauses. Motor -1 drives every motor at once.
	runCycle := func(motor int, reverse bool) {
		for _, ph := range []phase{rampUp, rampDown, pause} {
			dur := rampDuration
			if ph == pause {
				dur = pauseDuration
			}
			start := time.Now()
			for {
				elapsed := time.Since(start)
				if elapsed >= dur {
					break
				}
				throttle := uint16(throttleNeutral)
				if ph != pause {
					progress := int(elapsed * 1000 / dur)
					if ph == rampDown {
						progress = 1000 - progress
					}
					if reverse {
						throttle = minReverse + uint16(halfReverseRange*progress/1000)
					} else {
						throttle = minForward + uint16(halfForwardRange*progress/1000)
					}
				}
				for m := 0; m < numMotors; m++ {
					if motor < 0 || m == motor {
						setMotor(m, throttle)
					} else {
						setMotor(m, throttleNeutral)
					}
				}
				loopAll()
			}
		}
	}

	println("all motors forward")
	runCycle(-1, false)
	println("all motors reverse")
	runCycle(-1, true)
	for m := 0; m < numMotors; m++ {
		println("motor", m, "forward")
		runCycle(m, false)
		println("motor", m, "reverse")
		runCycle(m, true)
	}

	println("test complete, idling at neutral")
	for {
		for m := 0; m < numMotors; m++ {
			setMotor(m, throttleNeutral)
		}
		loopAll()
	}
}

func fatal(err error) {
	for {
		println("motortest:", err.Error())
		time.Sleep(time.Second)
	}
}
