package esclink

import (
	"bytes"
	"testing"

	"github.com/manafishrov/firmware/dshot"
	"github.com/manafishrov/firmware/hostlink"
)

// fakePort collects writes and serves scripted reads.
type fakePort struct {
	wr bytes.Buffer
	rd bytes.Reader
}

func (p *fakePort) Write(b []byte) (int, error) { return p.wr.Write(b) }
func (p *fakePort) Read(b []byte) (int, error)  { return p.rd.Read(b) }

func decodeAll(t *testing.T, stream []byte) []hostlink.Packet {
	t.Helper()
	var d hostlink.Decoder
	var pkts []hostlink.Packet
	for _, b := range stream {
		if p, ok := d.Feed(b); ok {
			payload := append([]byte(nil), p.Payload...)
			pkts = append(pkts, hostlink.Packet{Type: p.Type, Payload: payload})
		}
	}
	return pkts
}

func TestInitializeValidatesPins(t *testing.T) {
	l := New(&fakePort{})
	for _, pins := range [][]int{
		{},
		{1},
		{29},
		{6, 7, 8, 9, 18, 19, 20, 21, 22},
	} {
		if err := l.Initialize(pins); err == nil {
			t.Errorf("Initialize(%v) accepted invalid pins", pins)
		}
	}
}

func TestInitializeZeroesThrottles(t *testing.T) {
	port := &fakePort{}
	l := New(port)
	if err := l.Initialize([]int{6, 7, 8, 9}); err != nil {
		t.Fatal(err)
	}
	pkts := decodeAll(t, port.wr.Bytes())
	if len(pkts) != 1 {
		t.Fatalf("wrote %d packets, want 1", len(pkts))
	}
	throttles, err := hostlink.ParseThrottles(pkts[0], nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(throttles) != 4 {
		t.Fatalf("wrote %d throttles, want 4", len(throttles))
	}
	for i, v := range throttles {
		if v != 0 {
			t.Errorf("throttle %d = %d, want 0", i, v)
		}
	}
}

func TestSendThrottlesMapsRange(t *testing.T) {
	port := &fakePort{}
	l := New(port)
	if err := l.Initialize([]int{6, 7, 8}); err != nil {
		t.Fatal(err)
	}
	port.wr.Reset()
	if err := l.SendThrottles([]float64{0, 0.5, 1}); err != nil {
		t.Fatal(err)
	}
	pkts := decodeAll(t, port.wr.Bytes())
	throttles, err := hostlink.ParseThrottles(pkts[0], nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint16{dshot.MinThrottle, 1048, dshot.MaxThrottle}
	for i := range want {
		if throttles[i] != want[i] {
			t.Errorf("throttle %d = %d, want %d", i, throttles[i], want[i])
		}
	}
}

func TestSendThrottlesRejectsBadInput(t *testing.T) {
	l := New(&fakePort{})
	if err := l.Initialize([]int{6, 7}); err != nil {
		t.Fatal(err)
	}
	if err := l.SendThrottles([]float64{0.5}); err == nil {
		t.Error("accepted wrong throttle count")
	}
	if err := l.SendThrottles([]float64{0.5, 1.5}); err == nil {
		t.Error("accepted throttle above 1")
	}
	if err := l.SendThrottles([]float64{0.5, -0.1}); err == nil {
		t.Error("accepted negative throttle")
	}
}

func TestSet3DMode(t *testing.T) {
	port := &fakePort{}
	l := New(port)
	if err := l.Set3DMode(true, false); err != nil {
		t.Fatal(err)
	}
	pkts := decodeAll(t, port.wr.Bytes())
	mode3D, reversed, err := hostlink.ParseMotorConfig(pkts[0])
	if err != nil {
		t.Fatal(err)
	}
	if !mode3D || reversed {
		t.Errorf("got (%v, %v), want (true, false)", mode3D, reversed)
	}
}

func TestReadTelemetry(t *testing.T) {
	var stream []byte
	stream = hostlink.AppendTelemetry(stream, hostlink.Telemetry{Motor: 2, Kind: dshot.Voltage, Value: 24})
	stream = hostlink.AppendTelemetry(stream, hostlink.Telemetry{Motor: 0, Kind: dshot.ERPM, Value: 9375})
	port := &fakePort{}
	port.rd.Reset(stream)
	l := New(port)
	first, err := l.ReadTelemetry()
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.ReadTelemetry()
	if err != nil {
		t.Fatal(err)
	}
	if first.Motor != 2 || first.Kind != dshot.Voltage || first.Value != 24 {
		t.Errorf("first report = %+v", first)
	}
	if second.Motor != 0 || second.Kind != dshot.ERPM || second.Value != 9375 {
		t.Errorf("second report = %+v", second)
	}
}
