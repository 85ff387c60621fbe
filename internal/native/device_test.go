package native

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

// endpointTransport resolves its endpoint from the device accessors during
// Open, the way the rtl_tcp transport does.
type endpointTransport struct {
	Transport
	dev  *Device
	addr string
}

func (t *endpointTransport) Open() error {
	t.addr = fmt.Sprintf("%s:%d", t.dev.DeviceIP(), t.dev.Port())
	return t.Transport.Open()
}

func TestInitSendParametersResetsCounters(t *testing.T) {
	dev := NewHackRF(1e6, 433.92e6, 20, 2e6, false, nil, testLogger())
	dev.SetCurrentSentSample(42)
	dev.SetCurrentSendingRepeat(3)

	buf := make([]complex64, 100)
	dev.InitSendParameters(buf, 2)

	if got := dev.CurrentSentSample(); got != 0 {
		t.Fatalf("expected sent-sample counter reset, got %d", got)
	}
	if got := dev.CurrentSendingRepeat(); got != 0 {
		t.Fatalf("expected repeat counter reset, got %d", got)
	}
	if got := len(dev.SamplesToSend()); got != 100 {
		t.Fatalf("expected 100 samples, got %d", got)
	}
	if dev.SendingFinished() {
		t.Fatal("sending must not be finished right after init")
	}
	if got := dev.SendingRepeats(); got != 2 {
		t.Fatalf("expected 2 repeats, got %d", got)
	}
}

func TestTxModeRunsToCompletion(t *testing.T) {
	dev := NewHackRF(1e6, 433.92e6, 20, 2e6, false, nil, testLogger())
	dev.InitSendParameters(make([]complex64, 256), 3)

	if err := dev.StartTxMode(false); err != nil {
		t.Fatalf("start tx: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !dev.SendingFinished() {
		if time.Now().After(deadline) {
			t.Fatal("sending never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := dev.CurrentSendingRepeat(); got != 3 {
		t.Fatalf("expected 3 completed repeats, got %d", got)
	}
	if errs := dev.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected driver errors: %v", errs)
	}
}

func TestTxModeWithoutBufferFails(t *testing.T) {
	dev := NewHackRF(1e6, 433.92e6, 20, 2e6, false, nil, testLogger())
	if err := dev.StartTxMode(false); err == nil {
		t.Fatal("expected error when no send buffer is configured")
	}
}

func TestTxOnReceiveOnlyDeviceQueuesError(t *testing.T) {
	dev := NewRTLSDR(433.92e6, 20, 2e6, 0, false, nil, testLogger())
	dev.InitSendParameters(make([]complex64, 64), 1)

	if err := dev.StartTxMode(false); err != nil {
		t.Fatalf("start tx trigger itself should succeed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(dev.Errors()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expected a queued transmit error")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRxModeFillsBufferAndReportsIndex(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	dev := NewRTLSDR(433.92e6, 20, 2e6, 0, false, bus, testLogger())
	if err := dev.StartRxMode(); err != nil {
		t.Fatalf("start rx: %v", err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != events.IndexChanged {
			t.Fatalf("expected index-changed, got %v", ev.Kind)
		}
		if ev.New <= ev.Old {
			t.Fatalf("index must grow: old=%d new=%d", ev.Old, ev.New)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no index-changed event")
	}

	if err := dev.StopRxMode("test over"); err != nil {
		t.Fatalf("stop rx: %v", err)
	}
	if got := dev.CurrentRecvIndex(); got == 0 {
		t.Fatal("expected received samples")
	}
	if got := len(dev.ReceiveBuffer()); got == 0 {
		t.Fatal("expected non-empty receive buffer")
	}
}

func TestRxRingBufferMode(t *testing.T) {
	dev := NewRTLSDR(433.92e6, 20, 2e6, 0, true, nil, testLogger())
	if err := dev.StartRxMode(); err != nil {
		t.Fatalf("start rx: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if err := dev.StopRxMode("done"); err != nil {
		t.Fatalf("stop rx: %v", err)
	}

	buf := dev.ReceiveBuffer()
	if len(buf) == 0 {
		t.Fatal("ring snapshot empty")
	}
	if len(buf) > ringCapacity {
		t.Fatalf("ring exceeded capacity: %d", len(buf))
	}
}

func TestErrorQueueAccessors(t *testing.T) {
	dev := NewHackRF(1e6, 433.92e6, 20, 2e6, false, nil, testLogger())
	dev.QueueError("usb timeout")
	dev.QueueError("usb stall")

	errs := dev.Errors()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(errs))
	}
	dev.ClearErrors()
	if len(dev.Errors()) != 0 {
		t.Fatal("expected empty queue after clear")
	}
}

func TestBandwidthAdjustability(t *testing.T) {
	hack := NewHackRF(1e6, 433.92e6, 20, 2e6, false, nil, testLogger())
	if !hack.BandwidthIsAdjustable() {
		t.Fatal("hackrf bandwidth must be adjustable")
	}
	hack.SetBandwidth(2e6)
	if got := hack.Bandwidth(); got != 2e6 {
		t.Fatalf("expected 2e6, got %v", got)
	}

	rtl := NewRTLSDR(433.92e6, 20, 2e6, 0, false, nil, testLogger())
	if rtl.BandwidthIsAdjustable() {
		t.Fatal("rtl-sdr bandwidth must not be adjustable")
	}
	rtl.SetBandwidth(2e6)
	if got := rtl.Bandwidth(); got != 0 {
		t.Fatalf("bandwidth write must be ignored, got %v", got)
	}
}

func TestFreeBuffers(t *testing.T) {
	dev := NewHackRF(1e6, 433.92e6, 20, 2e6, false, nil, testLogger())
	dev.InitSendParameters(make([]complex64, 16), 1)
	dev.SetReceiveBuffer(make([]complex64, 8))
	dev.FreeBuffers()
	if dev.SamplesToSend() != nil {
		t.Fatal("send buffer not released")
	}
	if len(dev.ReceiveBuffer()) != 0 {
		t.Fatal("receive buffer not released")
	}
}

func TestStartRxModeWithEndpointResolvingTransport(t *testing.T) {
	tr := &endpointTransport{Transport: newSynthTransport(false, 5e3)}
	dev := newDevice(tr, 433.92e6, 20, 2e6, false, nil, testLogger())
	tr.dev = dev
	dev.SetDeviceIP("192.168.2.1")
	dev.SetPort(1234)

	started := make(chan error, 1)
	go func() { started <- dev.StartRxMode() }()
	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("start rx: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("start rx blocked while the transport read device state")
	}

	if tr.addr != "192.168.2.1:1234" {
		t.Fatalf("transport saw endpoint %q", tr.addr)
	}
	if err := dev.StopRxMode("test over"); err != nil {
		t.Fatalf("stop rx: %v", err)
	}
}

func TestStartTxModeWithEndpointResolvingTransport(t *testing.T) {
	tr := &endpointTransport{Transport: newSynthTransport(true, 5e3)}
	dev := newDevice(tr, 433.92e6, 20, 2e6, false, nil, testLogger())
	tr.dev = dev
	dev.InitSendParameters(make([]complex64, 64), 1)

	started := make(chan error, 1)
	go func() { started <- dev.StartTxMode(false) }()
	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("start tx: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("start tx blocked while the transport read device state")
	}
	if err := dev.StopTxMode("test over"); err != nil {
		t.Fatalf("stop tx: %v", err)
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	dev := NewHackRF(1e6, 433.92e6, 20, 2e6, false, nil, testLogger())
	if err := dev.StopRxMode("never started"); err != nil {
		t.Fatalf("stop rx: %v", err)
	}
	if err := dev.StopTxMode("never started"); err != nil {
		t.Fatalf("stop tx: %v", err)
	}
}
