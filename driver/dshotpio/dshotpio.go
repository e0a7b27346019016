//go:build tinygo && rp

// Package dshotpio backs the dshot driver with a PIO state
// machine of the rp2040.
package dshotpio

import (
	"device/rp"
	"errors"
	"machine"
	"sync"
	"time"

	"github.com/manafishrov/firmware/driver/pio"
)

// SM implements the dshot hardware seam on one PIO state machine.
type SM struct {
	Pio *rp.PIO0_Type
	SM  uint8
}

// The wire program is shared by every state machine of a block and
// uploaded on first use only.
var programs struct {
	sync.Mutex
	loaded [2]struct {
		ok     bool
		offset uint8
	}
}

func (s *SM) LoadProgram() (uint8, error) {
	programs.Lock()
	defer programs.Unlock()
	slot := &programs.loaded[pio.Index(s.Pio)]
	if slot.ok {
		return slot.offset, nil
	}
	if len(dshotInstructions) > pio.InstructionMemSize {
		return 0, errors.New("dshotpio: program does not fit")
	}
	// Load at the top of instruction memory.
	off := uint8(pio.InstructionMemSize - len(dshotInstructions))
	pio.Program(s.Pio, off, dshotInstructions)
	slot.ok = true
	slot.offset = off
	return off, nil
}

func (s *SM) Configure(pin uint8, offset uint8, div uint32) {
	p := machine.Pin(pin)
	// The line idles high; pull up so the released pin does not
	// float during the telemetry turnaround.
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	pio.ConfigurePins(s.Pio, s.SM, p, 1)
	conf := dshotProgramDefaultConfig(offset)
	conf.OutBase = pin
	conf.OutCount = 1
	conf.OutShiftLeft = true
	conf.SetBase = pin
	conf.SetCount = 1
	conf.InBase = pin
	conf.InShiftLeft = true
	conf.JumpPin = pin
	conf.ClkDiv = div
	pio.Configure(s.Pio, s.SM, conf.Build())
	pio.ClearFIFOs(s.Pio, s.SM)
	pio.Restart(s.Pio, 0b1<<s.SM)
}

func (s *SM) Start() {
	pio.Enable(s.Pio, 0b1<<s.SM)
}

func (s *SM) Stop() {
	pio.Disable(s.Pio, 0b1<<s.SM)
}

func (s *SM) TxEmpty() bool {
	return pio.IsTxEmpty(s.Pio, s.SM)
}

func (s *SM) TxPush(w uint32) {
	pio.Tx(s.Pio, s.SM).Set(w)
}

func (s *SM) RxPop() uint32 {
	return pio.RxGetBlocking(s.Pio, s.SM)
}

func (s *SM) ClockHz() uint32 {
	return machine.CPUFrequency()
}

func (s *SM) Now() time.Time {
	return time.Now()
}
