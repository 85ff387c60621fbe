package netsdr

import (
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
	"github.com/rjboer/vsdr/internal/iq"
)

func testPlugin(raw bool) *Plugin {
	p := NewPlugin(raw, events.NewBus(), zerolog.Nop())
	p.SetServerPort(0) // ephemeral port for tests
	return p
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

func TestServerIngestsRawSamples(t *testing.T) {
	p := testPlugin(true)
	if err := p.StartTCPServer(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer p.StopTCPServer()

	conn, err := net.Dial("tcp", p.ServerAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	samples := []complex64{1 + 2i, -3 - 4i, 0.5i}
	if _, err := conn.Write(iq.Encode(samples)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	waitFor(t, "samples", func() bool { return len(p.ReceiveBuffer()) == len(samples) })

	got := p.ReceiveBuffer()
	for i := range samples {
		if got[i] != samples[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], samples[i])
		}
	}
	if p.CurrentReceiveIndex() != int64(len(samples)) {
		t.Fatalf("expected receive index %d, got %d", len(samples), p.CurrentReceiveIndex())
	}
}

func TestServerIngestsBitsInDecodedMode(t *testing.T) {
	p := testPlugin(false)
	if err := p.StartTCPServer(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer p.StopTCPServer()

	conn, err := net.Dial("tcp", p.ServerAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if _, err := conn.Write([]byte("0101\n1100\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.Close()

	waitFor(t, "bits", func() bool { return len(p.ReceivedBits()) == 8 })

	want := []byte{0, 1, 0, 1, 1, 1, 0, 0}
	got := p.ReceivedBits()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bit %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSendLoopStreamsBufferWithRepeats(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	p := testPlugin(true)
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	p.SetClientIP("127.0.0.1")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	p.SetClientPort(port)

	samples := []complex64{1, 2i, 3 + 3i}
	p.SetSamplesToSend(samples)
	p.SetSendingRepeats(2)

	if err := p.StartRawSendingThread(); err != nil {
		t.Fatalf("start sending: %v", err)
	}

	waitFor(t, "sending finished", p.SendingFinished)
	p.StopSending()

	select {
	case data := <-received:
		got, derr := iq.Decode(data)
		if derr != nil {
			t.Fatalf("decode wire data: %v", derr)
		}
		if len(got) != 2*len(samples) {
			t.Fatalf("expected %d samples over the wire, got %d", 2*len(samples), len(got))
		}
		for i := range got {
			if got[i] != samples[i%len(samples)] {
				t.Errorf("wire sample %d: got %v, want %v", i, got[i], samples[i%len(samples)])
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no data arrived at the sink")
	}

	if p.CurrentSendingRepeat() != 2 {
		t.Fatalf("expected 2 completed repeats, got %d", p.CurrentSendingRepeat())
	}
}

func TestSendWithoutBufferFails(t *testing.T) {
	p := testPlugin(true)
	if err := p.StartRawSendingThread(); err == nil {
		t.Fatal("expected error without a send buffer")
	}
}

func TestSenderNeedsRestartOnDeadEndpoint(t *testing.T) {
	p := testPlugin(true)
	p.SetClientIP("127.0.0.1")
	p.SetClientPort(1) // nothing listens here
	p.SetSamplesToSend([]complex64{1, 2, 3})
	p.SetSendingRepeats(1)

	ch, cancel := p.Bus().Subscribe()
	defer cancel()

	if err := p.StartRawSendingThread(); err != nil {
		t.Fatalf("start sending: %v", err)
	}
	defer p.StopSending()

	deadline := time.After(30 * time.Second)
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

func TestFreeDataReleasesBuffers(t *testing.T) {
	p := testPlugin(true)
	p.SetSamplesToSend([]complex64{1, 2})
	p.appendSamples([]complex64{3})
	p.appendBits([]byte{'1'})
	p.FreeData()
	if p.SamplesToSend() != nil || p.ReceiveBuffer() != nil || p.ReceivedBits() != nil {
		t.Fatal("buffers not released")
	}
}

func TestSendingFinishedTracksSentCounter(t *testing.T) {
	p := testPlugin(true)

	// Nothing to send counts as finished: sent equals buffer length.
	if !p.SendingFinished() {
		t.Fatal("empty buffer must report finished")
	}

	p.SetSamplesToSend(make([]complex64, 4))
	if p.SendingFinished() {
		t.Fatal("fresh buffer must not report finished")
	}
	p.SetCurrentSentSample(4)
	if !p.SendingFinished() {
		t.Fatal("fully sent buffer must report finished")
	}
}

func TestStopServerTwiceIsSafe(t *testing.T) {
	p := testPlugin(true)
	if err := p.StartTCPServer(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	p.StopTCPServer()
	p.StopTCPServer()
}
