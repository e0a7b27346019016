// Package hostlink implements the framed packet protocol spoken
// on the serial link between the thruster firmware and the host:
// a sync byte, a type, a length, the payload and a CRC-8.
package hostlink

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/manafishrov/firmware/dshot"
)

const syncByte = 0xa5

// Type identifies a packet's payload.
type Type uint8

const (
	// TypeThrottles carries one 16-bit throttle value per motor,
	// host to device.
	TypeThrottles Type = 0x01
	// TypeMotorConfig carries the 3D mode and spin direction
	// flags, host to device.
	TypeMotorConfig Type = 0x02
	// TypeTelemetry carries one decoded ESC telemetry value,
	// device to host.
	TypeTelemetry Type = 0x03
)

// MaxMotors is the largest throttle vector the link carries.
const MaxMotors = 8

const maxPayload = 2 * MaxMotors

// MotorConfig payload flags.
const (
	flag3D       = 0b01
	flagReversed = 0b10
)

// Telemetry is one ESC telemetry report.
type Telemetry struct {
	Motor uint8
	Kind  dshot.TelemetryKind
	Value int32
}

// Packet is a decoded link frame. The payload aliases the
// decoder's buffer and is only valid until the next Feed.
type Packet struct {
	Type    Type
	Payload []byte
}

// crc8 implements the polynomial 0x07 checksum over the type,
// length and payload bytes.
func crc8(crc byte, data []byte) byte {
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func appendPacket(dst []byte, typ Type, payload []byte) []byte {
	if len(payload) > maxPayload {
		panic("hostlink: payload too large")
	}
	start := len(dst)
	dst = append(dst, syncByte, byte(typ), byte(len(payload)))
	dst = append(dst, payload...)
	return append(dst, crc8(0, dst[start+1:]))
}

// AppendThrottles appends a throttle vector packet to dst.
func AppendThrottles(dst []byte, throttles []uint16) []byte {
	var payload [maxPayload]byte
	if len(throttles) > MaxMotors {
		panic("hostlink: too many motors")
	}
	for i, t := range throttles {
		binary.LittleEndian.PutUint16(payload[2*i:], t)
	}
	return appendPacket(dst, TypeThrottles, payload[:2*len(throttles)])
}

// AppendMotorConfig appends a 3D mode and spin direction packet
// to dst.
func AppendMotorConfig(dst []byte, mode3D, reversed bool) []byte {
	var flags byte
	if mode3D {
		flags |= flag3D
	}
	if reversed {
		flags |= flagReversed
	}
	return appendPacket(dst, TypeMotorConfig, []byte{flags})
}

// AppendTelemetry appends a telemetry report packet to dst.
func AppendTelemetry(dst []byte, t Telemetry) []byte {
	var payload [6]byte
	payload[0] = t.Motor
	payload[1] = byte(t.Kind)
	binary.LittleEndian.PutUint32(payload[2:], uint32(t.Value))
	return appendPacket(dst, TypeTelemetry, payload[:])
}

// ParseThrottles decodes a throttle vector payload.
func ParseThrottles(p Packet, throttles []uint16) ([]uint16, error) {
	if p.Type != TypeThrottles {
		return nil, fmt.Errorf("hostlink: packet type %#02x is not a throttle vector", byte(p.Type))
	}
	if len(p.Payload)%2 != 0 {
		return nil, errors.New("hostlink: odd throttle payload")
	}
	throttles = throttles[:0]
	for i := 0; i < len(p.Payload); i += 2 {
		throttles = append(throttles, binary.LittleEndian.Uint16(p.Payload[i:]))
	}
	return throttles, nil
}

// ParseMotorConfig decodes a motor config payload.
func ParseMotorConfig(p Packet) (mode3D, reversed bool, err error) {
	if p.Type != TypeMotorConfig || len(p.Payload) != 1 {
		return false, false, errors.New("hostlink: malformed motor config")
	}
	flags := p.Payload[0]
	return flags&flag3D != 0, flags&flagReversed != 0, nil
}

// ParseTelemetry decodes a telemetry report payload.
func ParseTelemetry(p Packet) (Telemetry, error) {
	if p.Type != TypeTelemetry || len(p.Payload) != 6 {
		return Telemetry{}, errors.New("hostlink: malformed telemetry report")
	}
	return Telemetry{
		Motor: p.Payload[0],
		Kind:  dshot.TelemetryKind(p.Payload[1]),
		Value: int32(binary.LittleEndian.Uint32(p.Payload[2:])),
	}, nil
}

// Decoder reassembles packets from a byte stream, resynchronizing
// on the sync byte after corruption. The zero value is ready for
// use.
type Decoder struct {
	buf  [3 + maxPayload + 1]byte
	n    int
	need int
}

// Feed consumes one stream byte. It returns the completed packet
// and true when the byte finishes a valid frame.
func (d *Decoder) Feed(b byte) (Packet, bool) {
	if d.n == 0 && b != syncByte {
		return Packet{}, false
	}
	d.buf[d.n] = b
	d.n++
	switch d.n {
	case 1, 2:
		return Packet{}, false
	case 3:
		if int(b) > maxPayload {
			// Length out of range; drop and hunt for the next
			// sync byte.
			d.n = 0
			return Packet{}, false
		}
		d.need = 3 + int(b) + 1
		return Packet{}, false
	}
	if d.n < d.need {
		return Packet{}, false
	}
	d.n = 0
	if crc8(0, d.buf[1:d.need-1]) != d.buf[d.need-1] {
		return Packet{}, false
	}
	return Packet{
		Type:    Type(d.buf[1]),
		Payload: d.buf[3 : d.need-1],
	}, true
}
