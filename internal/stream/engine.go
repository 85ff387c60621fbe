// Package stream implements the streaming-engine adapters: long-running
// worker goroutines that move samples over a TCP data socket the way a
// flow-graph pipeline would, one engine per mode.
package stream

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
)

var errAlreadyRunning = errors.New("engine already running")

// Engine is the shared core of the receiver, sender, and spectrum engines.
// It owns the listener socket the flow-graph side connects to, the unified
// sample counter, and the worker lifecycle.
type Engine struct {
	mu  sync.Mutex
	log zerolog.Logger
	bus *events.Bus

	sampleRate float64
	frequency  float64
	gain       float64
	bandwidth  float64

	usrpIP string
	device string
	port   int

	currentIndex int64
	errs         []string

	running bool
	ln      net.Listener
	stop    chan struct{}
	done    chan struct{}
}

func newEngine(sampleRate, frequency, gain, bandwidth float64, bus *events.Bus, log zerolog.Logger) Engine {
	if bus == nil {
		bus = events.NewBus()
	}
	return Engine{
		log:        log,
		bus:        bus,
		sampleRate: sampleRate,
		frequency:  frequency,
		gain:       gain,
		bandwidth:  bandwidth,
	}
}

// Bus exposes the engine event stream. Started and stopped are
// self-reported: the worker publishes them itself.
func (e *Engine) Bus() *events.Bus { return e.bus }

// ---------- RF parameters ----------

func (e *Engine) SampleRate() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sampleRate
}

func (e *Engine) SetSampleRate(v float64) {
	e.mu.Lock()
	e.sampleRate = v
	e.mu.Unlock()
}

func (e *Engine) Frequency() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frequency
}

func (e *Engine) SetFrequency(v float64) {
	e.mu.Lock()
	e.frequency = v
	e.mu.Unlock()
}

func (e *Engine) Gain() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gain
}

func (e *Engine) SetGain(v float64) {
	e.mu.Lock()
	e.gain = v
	e.mu.Unlock()
}

func (e *Engine) Bandwidth() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bandwidth
}

func (e *Engine) SetBandwidth(v float64) {
	e.mu.Lock()
	e.bandwidth = v
	e.mu.Unlock()
}

// USRPIP is the device address handed to the flow graph.
func (e *Engine) USRPIP() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usrpIP
}

func (e *Engine) SetUSRPIP(ip string) {
	e.mu.Lock()
	e.usrpIP = ip
	e.mu.Unlock()
}

// DeviceName is the hardware identifier handed to the flow graph.
func (e *Engine) DeviceName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device
}

func (e *Engine) SetDeviceName(name string) {
	e.mu.Lock()
	e.device = name
	e.mu.Unlock()
}

// Port returns the data socket port. After a start with port 0 it reflects
// the actually bound port.
func (e *Engine) Port() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.port
}

func (e *Engine) SetPort(p int) {
	e.mu.Lock()
	e.port = p
	e.mu.Unlock()
}

// ---------- Counters ----------

// CurrentIndex is the unified sample counter of the engine.
func (e *Engine) CurrentIndex() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentIndex
}

func (e *Engine) SetCurrentIndex(v int64) {
	e.mu.Lock()
	e.currentIndex = v
	e.mu.Unlock()
}

func (e *Engine) advanceIndex(n int64) {
	e.mu.Lock()
	old := e.currentIndex
	e.currentIndex += n
	now := e.currentIndex
	e.mu.Unlock()
	e.bus.Publish(events.Event{Kind: events.IndexChanged, Old: old, New: now})
}

// ---------- Errors ----------

func (e *Engine) queueError(msg string) {
	e.mu.Lock()
	e.errs = append(e.errs, msg)
	e.mu.Unlock()
	e.log.Warn().Str("error", msg).Msg("engine error")
}

// ReadErrors drains the engine error log and returns it as one string.
func (e *Engine) ReadErrors() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := strings.Join(e.errs, "\n")
	e.errs = e.errs[:0]
	return out
}

// ---------- Lifecycle ----------

// launch binds the data socket and runs work on a fresh goroutine. The
// worker self-reports started/stopped on the bus; done is closed only after
// the worker has fully unwound, which is what Done exposes.
func (e *Engine) launch(work func(stop <-chan struct{}, ln net.Listener)) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errAlreadyRunning
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", e.port))
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("bind data socket: %w", err)
	}
	e.port = ln.Addr().(*net.TCPAddr).Port
	e.ln = ln
	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	stop, done := e.stop, e.done
	e.mu.Unlock()

	go func() {
		e.bus.Publish(events.Event{Kind: events.Started})
		work(stop, ln)
		e.mu.Lock()
		e.running = false
		if e.ln == ln {
			e.ln = nil
		}
		e.mu.Unlock()
		ln.Close()
		e.bus.Publish(events.Event{Kind: events.Stopped})
		close(done)
	}()
	return nil
}

// Done returns a channel closed once the current worker has fully unwound.
// For an engine that never started it is already closed.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.done
}

// Terminate force-stops the worker without waiting for it.
func (e *Engine) Terminate() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	stop := e.stop
	ln := e.ln
	e.ln = nil
	e.mu.Unlock()

	close(stop)
	if ln != nil {
		ln.Close()
	}
}

// Stop terminates the worker, recording the reason. The worker's own exit
// path publishes the stopped event.
func (e *Engine) Stop(reason string) {
	e.log.Debug().Str("reason", reason).Msg("engine stop requested")
	e.Terminate()
}

// CloseSocket shuts the data socket down without touching the worker state
// machine. The facade uses it during send-mode cleanup.
func (e *Engine) CloseSocket() {
	e.mu.Lock()
	ln := e.ln
	e.ln = nil
	e.mu.Unlock()
	if ln != nil {
		ln.Close()
	}
}

// acceptOne waits for a single flow-graph connection, honoring stop.
func acceptOne(stop <-chan struct{}, ln net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := ln.Accept()
		ch <- result{conn, err}
	}()
	select {
	case <-stop:
		ln.Close()
		r := <-ch
		if r.conn != nil {
			r.conn.Close()
		}
		return nil, errors.New("stopped before connection")
	case r := <-ch:
		return r.conn, r.err
	}
}
