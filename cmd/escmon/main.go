// Command escmon is the bench monitor for the thruster firmware.
// It holds the control link alive, optionally drives a throttle
// ramp, and fans ESC telemetry out to WebSocket clients and a
// CBOR capture file. A host GPIO can switch the thruster power
// rail around the session.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/gorilla/websocket"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/manafishrov/firmware/esclink"
)

// record is one telemetry report as published to clients and the
// capture file.
type record struct {
	Stamp int64  `json:"stamp" cbor:"stamp"`
	Motor uint8  `json:"motor" cbor:"motor"`
	Kind  string `json:"kind" cbor:"kind"`
	Value int32  `json:"value" cbor:"value"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "escmon: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	log.SetFlags(log.Flags() &^ (log.Ldate | log.Ltime))
	configPath := flag.String("config", "", "YAML config file")
	port := flag.String("port", "", "serial device (overrides config)")
	listen := flag.String("listen", "", "WebSocket listen address (overrides config)")
	capture := flag.String("capture", "", "CBOR capture file (overrides config)")
	ramp := flag.Bool("ramp", false, "drive the bench ramp profile")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *capture != "" {
		cfg.Capture = *capture
	}
	if *ramp {
		cfg.Ramp.Enabled = true
	}

	var power gpio.PinOut
	if cfg.PowerPin != "" {
		if _, err := host.Init(); err != nil {
			return err
		}
		pin := gpioreg.ByName(cfg.PowerPin)
		if pin == nil {
			return fmt.Errorf("no such power pin %q", cfg.PowerPin)
		}
		power = pin
		log.Printf("powering thruster rail via %s", cfg.PowerPin)
		if err := power.Out(gpio.High); err != nil {
			return err
		}
		defer power.Out(gpio.Low)
	}

	dev, err := esclink.Open(cfg.Port)
	if err != nil {
		return err
	}
	defer dev.Close()
	link := esclink.New(dev)
	if err := link.Initialize(cfg.Pins); err != nil {
		return err
	}
	defer link.Finalize(cfg.Pins)

	var capw *cbor.Encoder
	if cfg.Capture != "" {
		f, err := os.Create(cfg.Capture)
		if err != nil {
			return err
		}
		defer f.Close()
		capw = cbor.NewEncoder(f)
	}

	b := newBroadcaster()
	if cfg.Listen != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", b.handleWS)
		go func() {
			log.Printf("dashboard on ws://%s/ws", cfg.Listen)
			if err := http.ListenAndServe(cfg.Listen, mux); err != nil {
				log.Printf("dashboard: %v", err)
			}
		}()
	}

	// Telemetry fan-out.
	go func() {
		for {
			tel, err := link.ReadTelemetry()
			if err != nil {
				log.Printf("telemetry: %v", err)
				return
			}
			rec := record{
				Stamp: time.Now().UnixMilli(),
				Motor: tel.Motor,
				Kind:  tel.Kind.String(),
				Value: tel.Value,
			}
			b.publish(rec)
			if capw != nil {
				if err := capw.Encode(rec); err != nil {
					log.Printf("capture: %v", err)
					capw = nil
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)

	// The firmware zeroes its throttles when the link goes quiet,
	// so keep a steady stream of vectors flowing.
	const tick = 20 * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	throttles := make([]float64, len(cfg.Pins))
	start := time.Now()
	for {
		select {
		case <-quit:
			return nil
		case <-ticker.C:
			level := 0.0
			if cfg.Ramp.Enabled {
				level = rampLevel(cfg.Ramp, time.Since(start))
			}
			for i := range throttles {
				throttles[i] = level
			}
			if err := link.SendThrottles(throttles); err != nil {
				return err
			}
		}
	}
}

// rampLevel follows the bench profile: up to the peak, back down,
// then a pause, repeating.
func rampLevel(cfg RampConfig, elapsed time.Duration) float64 {
	ramp := time.Duration(cfg.DurationS) * time.Second
	pause := time.Duration(cfg.PauseMs) * time.Millisecond
	cycle := 2*ramp + pause
	t := elapsed % cycle
	switch {
	case t < ramp:
		return cfg.Peak * float64(t) / float64(ramp)
	case t < 2*ramp:
		return cfg.Peak * float64(2*ramp-t) / float64(ramp)
	default:
		return 0
	}
}

// broadcaster fans records out to WebSocket clients.
type broadcaster struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func newBroadcaster() *broadcaster {
	return &broadcaster{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (b *broadcaster) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()
	// Drain and discard client messages to notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.drop(conn)
				return
			}
		}
	}()
}

func (b *broadcaster) drop(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[conn]; ok {
		delete(b.clients, conn)
		conn.Close()
	}
}

func (b *broadcaster) publish(rec record) {
	msg, err := json.Marshal(rec)
	if err != nil {
		return
	}
	b.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(b.clients))
	for c := range b.clients {
		conns = append(conns, c)
	}
	b.mu.Unlock()
	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			b.drop(c)
		}
	}
}
