package dshot

// Forward frame layout, MSB first on the wire:
// 11-bit value, telemetry request bit, 4-bit CRC.
func encodeFrame(value uint16, telemetryRequest bool) uint16 {
	frame := value << 1
	if telemetryRequest {
		frame |= 1
	}
	crc := ^(frame ^ frame>>4 ^ frame>>8) & 0x0f
	return frame<<4 | crc
}

type decodeStatus uint8

const (
	decodeOK decodeStatus = iota
	// decodeEmpty is an all-zero capture; the receive window
	// expired without the ESC driving the line.
	decodeEmpty
	decodeBadGCR
	decodeBadCRC
)

// gcrNibble maps a 5-bit GCR quintet to its 4-bit nibble. The
// reverse channel uses GCR to bound run lengths; quintets outside
// the 16-entry image are line errors.
func gcrNibble(q uint32) (uint16, bool) {
	switch q {
	case 0x19:
		return 0x0, true
	case 0x1b:
		return 0x1, true
	case 0x12:
		return 0x2, true
	case 0x13:
		return 0x3, true
	case 0x1d:
		return 0x4, true
	case 0x15:
		return 0x5, true
	case 0x16:
		return 0x6, true
	case 0x17:
		return 0x7, true
	case 0x1a:
		return 0x8, true
	case 0x09:
		return 0x9, true
	case 0x0a:
		return 0xa, true
	case 0x0b:
		return 0xb, true
	case 0x1e:
		return 0xc, true
	case 0x0d:
		return 0xd, true
	case 0x0e:
		return 0xe, true
	case 0x0f:
		return 0xf, true
	}
	return 0, false
}

// decodeGCR decodes a raw 20-bit reverse capture into the 16-bit
// extended telemetry frame. The line encoding toggles on every 1,
// so XOR with a one-bit shift recovers the GCR stream before the
// quintet lookup and CRC check.
func decodeGCR(raw uint32) (uint16, decodeStatus) {
	if raw == 0 {
		return 0, decodeEmpty
	}
	gcr := (raw ^ raw>>1) & 0xfffff
	var frame uint16
	for shift := 15; shift >= 0; shift -= 5 {
		nib, ok := gcrNibble(gcr >> shift & 0x1f)
		if !ok {
			return 0, decodeBadGCR
		}
		frame = frame<<4 | nib
	}
	crc := ^(frame>>12 ^ frame>>8 ^ frame>>4) & 0x0f
	if crc != frame&0x0f {
		return 0, decodeBadCRC
	}
	return frame, decodeOK
}

// TelemetryKind identifies an extended telemetry value.
type TelemetryKind uint8

const (
	ERPM TelemetryKind = iota
	Voltage
	Current
	Temperature
)

func (k TelemetryKind) String() string {
	switch k {
	case ERPM:
		return "erpm"
	case Voltage:
		return "voltage"
	case Current:
		return "current"
	case Temperature:
		return "temperature"
	}
	return "unknown"
}

// classify splits an extended telemetry frame into its kind and
// scaled value. Frames with a reserved type tag return ok == false.
func classify(frame uint16) (kind TelemetryKind, value int, ok bool) {
	e := int(frame >> 13 & 0x7)
	m := int(frame >> 4 & 0x1ff)
	switch frame >> 12 & 0xf {
	case 0x2:
		return Temperature, m, true
	case 0x4:
		// Quarter-volt resolution.
		return Voltage, m / 4, true
	case 0x6:
		return Current, m, true
	case 0x8, 0xa, 0xc, 0xe:
		return 0, 0, false
	}
	// Anything else is an eRPM period, mantissa shifted by the
	// 3-bit exponent. 0xff80 is the stopped sentinel.
	period := m << e
	if period == 0xff80 || period == 0 {
		return ERPM, 0, true
	}
	return ERPM, 60_000_000 / period, true
}
