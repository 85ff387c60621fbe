package stream

import (
	"fmt"
	"io"
	"math"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
	"github.com/rjboer/vsdr/internal/iq"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func dialEngine(t *testing.T, e *Engine) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", e.Port()))
	if err != nil {
		t.Fatalf("dial engine: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReceiverIngestsSamples(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	r := NewReceiver(2e6, 433.92e6, 20, 1e6, false, bus, testLogger())
	if err := r.Start(); err != nil {
		t.Fatalf("start receiver: %v", err)
	}

	// Self-reported started event.
	select {
	case ev := <-ch:
		if ev.Kind != events.Started {
			t.Fatalf("expected started first, got %v", ev.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no started event")
	}

	conn := dialEngine(t, &r.Engine)
	samples := []complex64{1, 2i, 3 + 3i, -4}
	if _, err := conn.Write(iq.Encode(samples)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	waitFor(t, "captured samples", func() bool { return len(r.Data()) == len(samples) })
	if got := r.CurrentIndex(); got != int64(len(samples)) {
		t.Fatalf("expected index %d, got %d", len(samples), got)
	}

	r.Stop("test finished")
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not unwind")
	}
	if errs := r.ReadErrors(); errs != "" {
		t.Fatalf("unexpected errors: %q", errs)
	}
}

func TestReceiverRingBufferMode(t *testing.T) {
	r := NewReceiver(2e6, 433.92e6, 20, 1e6, true, nil, testLogger())
	if err := r.Start(); err != nil {
		t.Fatalf("start receiver: %v", err)
	}
	conn := dialEngine(t, &r.Engine)
	if _, err := conn.Write(iq.Encode(make([]complex64, 128))); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	waitFor(t, "ring content", func() bool { return len(r.Data()) == 128 })
	r.Stop("done")
	<-r.Done()
}

func TestSenderStreamsBufferWithRepeats(t *testing.T) {
	s := NewSender(2e6, 433.92e6, 20, 1e6, nil, testLogger())
	samples := []complex64{1, 2, 3}
	s.SetData(samples)
	s.SetSamplesPerTransmission(len(samples))
	s.SetMaxRepeats(2)

	if err := s.Start(); err != nil {
		t.Fatalf("start sender: %v", err)
	}

	conn := dialEngine(t, &s.Engine)
	data, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got, err := iq.Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2*len(samples) {
		t.Fatalf("expected %d wire samples, got %d", 2*len(samples), len(got))
	}

	waitFor(t, "sending finished", s.SendingFinished)
	if got := s.CurrentIndex(); got != int64(2*len(samples)) {
		t.Fatalf("expected unified index %d, got %d", 2*len(samples), got)
	}
	<-s.Done()
}

func TestSenderWithoutBufferFails(t *testing.T) {
	s := NewSender(2e6, 433.92e6, 20, 1e6, nil, testLogger())
	if err := s.Start(); err == nil {
		t.Fatal("expected error without send buffer")
	}
}

func TestSenderNeedsRestartWhenConsumerDrops(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	s := NewSender(2e6, 433.92e6, 20, 1e6, bus, testLogger())
	s.SetData(make([]complex64, 4096))
	s.SetMaxRepeats(0) // repeat forever so the drop happens mid-send

	if err := s.Start(); err != nil {
		t.Fatalf("start sender: %v", err)
	}
	defer func() {
		s.Stop("test cleanup")
		<-s.Done()
	}()

	conn := dialEngine(t, &s.Engine)
	buf := make([]byte, 1024)
	if _, err := conn.Read(buf); err != nil {
		t.Fatalf("initial read: %v", err)
	}
	conn.Close()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == events.SenderNeedsRestart {
				return
			}
		case <-deadline:
			t.Fatal("sender-needs-restart never fired")
		}
	}
}

func TestSpectrumProducesAscendingFrequencies(t *testing.T) {
	const rate = 4096.0
	s := NewSpectrum(rate, 100e6, 20, 1e6, nil, testLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("start spectrum: %v", err)
	}

	// One full FFT frame of a 5 Hz tone.
	samples := make([]complex64, spectrumFFTSize)
	for i := range samples {
		phase := 2 * math.Pi * 5 * float64(i) / rate
		samples[i] = complex64(complex(math.Cos(phase), math.Sin(phase)))
	}
	conn := dialEngine(t, &s.Engine)
	if _, err := conn.Write(iq.Encode(samples)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	waitFor(t, "spectrum frame", func() bool { return len(s.X()) == spectrumFFTSize })
	s.Stop("done")
	<-s.Done()

	x, y := s.X(), s.Y()
	for i := 1; i < len(x); i++ {
		if x[i] < x[i-1] {
			t.Fatalf("frequency axis not ascending at %d", i)
		}
	}
	peak := 0
	for i := range y {
		if y[i] > y[peak] {
			peak = i
		}
	}
	// The axis is baseband offsets at full bin resolution, so the 5 Hz
	// tone lands exactly on its bin.
	if got := float64(x[peak]); math.Abs(got-5) > 0.5 {
		t.Fatalf("peak at %v Hz, expected 5 Hz", got)
	}
}

func TestReadErrorsIsDestructive(t *testing.T) {
	r := NewReceiver(2e6, 433.92e6, 20, 1e6, false, nil, testLogger())
	r.queueError("flow graph died")
	if got := r.ReadErrors(); got != "flow graph died" {
		t.Fatalf("unexpected errors: %q", got)
	}
	if got := r.ReadErrors(); got != "" {
		t.Fatalf("second read must be empty, got %q", got)
	}
}

func TestTerminateThenRestart(t *testing.T) {
	r := NewReceiver(2e6, 433.92e6, 20, 1e6, false, nil, testLogger())
	if err := r.Start(); err != nil {
		t.Fatalf("first start: %v", err)
	}
	r.Terminate()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not unwind after terminate")
	}
	r.SetPort(0) // rebind fresh
	if err := r.Start(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	r.Stop("cleanup")
	<-r.Done()
}

func TestDoneForNeverStartedEngine(t *testing.T) {
	r := NewReceiver(2e6, 433.92e6, 20, 1e6, false, nil, testLogger())
	select {
	case <-r.Done():
	case <-time.After(time.Second):
		t.Fatal("Done must be closed for a never-started engine")
	}
}
