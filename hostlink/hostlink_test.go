package hostlink

import (
	"testing"

	"github.com/manafishrov/firmware/dshot"
)

func feedAll(t *testing.T, d *Decoder, stream []byte) []Packet {
	t.Helper()
	var pkts []Packet
	for _, b := range stream {
		if p, ok := d.Feed(b); ok {
			payload := append([]byte(nil), p.Payload...)
			pkts = append(pkts, Packet{Type: p.Type, Payload: payload})
		}
	}
	return pkts
}

func TestThrottlesRoundTrip(t *testing.T) {
	want := []uint16{0, 48, 1047, 2047}
	stream := AppendThrottles(nil, want)
	var d Decoder
	pkts := feedAll(t, &d, stream)
	if len(pkts) != 1 {
		t.Fatalf("decoded %d packets, want 1", len(pkts))
	}
	got, err := ParseThrottles(pkts[0], nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d throttles, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("throttle %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMotorConfigRoundTrip(t *testing.T) {
	for _, tc := range []struct{ mode3D, reversed bool }{
		{false, false}, {true, false}, {false, true}, {true, true},
	} {
		stream := AppendMotorConfig(nil, tc.mode3D, tc.reversed)
		var d Decoder
		pkts := feedAll(t, &d, stream)
		if len(pkts) != 1 {
			t.Fatalf("decoded %d packets, want 1", len(pkts))
		}
		mode3D, reversed, err := ParseMotorConfig(pkts[0])
		if err != nil {
			t.Fatal(err)
		}
		if mode3D != tc.mode3D || reversed != tc.reversed {
			t.Errorf("got (%v, %v), want (%v, %v)", mode3D, reversed, tc.mode3D, tc.reversed)
		}
	}
}

func TestTelemetryRoundTrip(t *testing.T) {
	want := Telemetry{Motor: 3, Kind: dshot.ERPM, Value: 9375}
	stream := AppendTelemetry(nil, want)
	var d Decoder
	pkts := feedAll(t, &d, stream)
	if len(pkts) != 1 {
		t.Fatalf("decoded %d packets, want 1", len(pkts))
	}
	got, err := ParseTelemetry(pkts[0])
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecoderRejectsCorruption(t *testing.T) {
	stream := AppendThrottles(nil, []uint16{100, 200})
	for bit := 0; bit < len(stream)*8; bit++ {
		corrupt := append([]byte(nil), stream...)
		corrupt[bit/8] ^= 1 << (bit % 8)
		var d Decoder
		for _, p := range feedAll(t, &d, corrupt) {
			// A flipped sync byte may legally expose a shorter
			// valid-looking frame only if the checksum still
			// holds, which a single bit flip cannot arrange.
			t.Errorf("bit flip %d decoded packet %+v", bit, p)
		}
	}
}

func TestDecoderResync(t *testing.T) {
	var stream []byte
	stream = append(stream, 0x00, 0xff, 0x13)
	stream = AppendTelemetry(stream, Telemetry{Motor: 1, Kind: dshot.Voltage, Value: 24})
	stream = append(stream, 0x42)
	stream = AppendThrottles(stream, []uint16{500})
	var d Decoder
	pkts := feedAll(t, &d, stream)
	if len(pkts) != 2 {
		t.Fatalf("decoded %d packets, want 2", len(pkts))
	}
	if pkts[0].Type != TypeTelemetry || pkts[1].Type != TypeThrottles {
		t.Errorf("packet types = %#02x, %#02x", byte(pkts[0].Type), byte(pkts[1].Type))
	}
}

func TestDecoderBackToBackFrames(t *testing.T) {
	// Back-to-back frames with no gap.
	var stream []byte
	for i := 0; i < 5; i++ {
		stream = AppendTelemetry(stream, Telemetry{Motor: uint8(i), Kind: dshot.Temperature, Value: int32(40 + i)})
	}
	var d Decoder
	pkts := feedAll(t, &d, stream)
	if len(pkts) != 5 {
		t.Fatalf("decoded %d packets, want 5", len(pkts))
	}
	for i, p := range pkts {
		tel, err := ParseTelemetry(p)
		if err != nil {
			t.Fatal(err)
		}
		if tel.Motor != uint8(i) || tel.Value != int32(40+i) {
			t.Errorf("packet %d = %+v", i, tel)
		}
	}
}
