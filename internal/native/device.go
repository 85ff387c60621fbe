// Package native wraps direct hardware drivers (HackRF, RTL-SDR, rtl_tcp)
// behind one device core with buffers, counters, and an error queue.
package native

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
	"github.com/rjboer/vsdr/internal/ringbuf"
)

const rxChunkSize = 1024
const txChunkSize = 1024

var (
	errAlreadyRunning = errors.New("mode already running")
	errNoSendBuffer   = errors.New("no samples to send configured")
)

// Device is the shared core of every native driver. Concrete drivers embed
// it and supply the transport.
type Device struct {
	mu        sync.Mutex
	log       zerolog.Logger
	bus       *events.Bus
	transport Transport

	frequency           float64
	gain                float64
	sampleRate          float64
	bandwidth           float64
	bandwidthAdjustable bool

	deviceIP string
	port     int

	isRingBuffer  bool
	ring          *ringbuf.Ring
	receiveBuffer []complex64

	samplesToSend    []complex64
	totalSendSamples int64 // derived: len(samplesToSend) * repeats, 0 when endless
	sendingRepeats   int   // 0 means repeat endlessly

	currentRecvIndex     int64
	currentSentSample    int64
	currentSendingRepeat int64
	sendingFinished      bool

	errs []string

	rxRunning bool
	txRunning bool
	rxStop    chan struct{}
	txStop    chan struct{}
	rxDone    chan struct{}
	txDone    chan struct{}
}

// ringCapacity bounds the overwrite buffer used for continuous capture.
const ringCapacity = 1 << 16

func newDevice(transport Transport, frequency, gain, sampleRate float64, ringBuffer bool, bus *events.Bus, log zerolog.Logger) *Device {
	d := &Device{
		log:          log,
		bus:          bus,
		transport:    transport,
		frequency:    frequency,
		gain:         gain,
		sampleRate:   sampleRate,
		isRingBuffer: ringBuffer,
	}
	if ringBuffer {
		d.ring = ringbuf.New(ringCapacity)
	}
	if d.bus == nil {
		d.bus = events.NewBus()
	}
	return d
}

// Bus exposes the device event stream (index changes).
func (d *Device) Bus() *events.Bus { return d.bus }

// ---------- RF parameters ----------

func (d *Device) Frequency() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frequency
}

func (d *Device) SetFrequency(v float64) {
	d.mu.Lock()
	d.frequency = v
	d.mu.Unlock()
	d.applyConfig()
}

func (d *Device) Gain() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gain
}

func (d *Device) SetGain(v float64) {
	d.mu.Lock()
	d.gain = v
	d.mu.Unlock()
	d.applyConfig()
}

func (d *Device) SampleRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

func (d *Device) SetSampleRate(v float64) {
	d.mu.Lock()
	d.sampleRate = v
	d.mu.Unlock()
	d.applyConfig()
}

func (d *Device) Bandwidth() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bandwidth
}

func (d *Device) SetBandwidth(v float64) {
	d.mu.Lock()
	adjustable := d.bandwidthAdjustable
	if adjustable {
		d.bandwidth = v
	}
	d.mu.Unlock()
	if !adjustable {
		d.log.Debug().Float64("bandwidth", v).Msg("bandwidth not adjustable on this device, ignoring")
	}
}

func (d *Device) BandwidthIsAdjustable() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bandwidthAdjustable
}

func (d *Device) DeviceIP() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceIP
}

func (d *Device) SetDeviceIP(ip string) {
	d.mu.Lock()
	d.deviceIP = ip
	d.mu.Unlock()
}

func (d *Device) Port() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port
}

func (d *Device) SetPort(p int) {
	d.mu.Lock()
	d.port = p
	d.mu.Unlock()
}

func (d *Device) applyConfig() {
	d.mu.Lock()
	freq, rate, gain := d.frequency, d.sampleRate, d.gain
	tr := d.transport
	d.mu.Unlock()
	if err := tr.ApplyConfig(freq, rate, gain); err != nil {
		d.queueError(fmt.Sprintf("apply device config: %v", err))
	}
}

// ---------- Buffers and counters ----------

// InitSendParameters installs the send buffer and recomputes the derived
// transmission state. Counters restart from zero.
func (d *Device) InitSendParameters(samples []complex64, repeats int) {
	d.mu.Lock()
	d.samplesToSend = samples
	d.sendingRepeats = repeats
	d.currentSentSample = 0
	d.currentSendingRepeat = 0
	d.sendingFinished = false
	if repeats > 0 {
		d.totalSendSamples = int64(len(samples)) * int64(repeats)
	} else {
		d.totalSendSamples = 0
	}
	d.mu.Unlock()
}

func (d *Device) SamplesToSend() []complex64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.samplesToSend
}

// ReceiveBuffer returns the captured samples. In ring-buffer mode this is a
// snapshot in arrival order.
func (d *Device) ReceiveBuffer() []complex64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.isRingBuffer && d.ring != nil {
		return d.ring.Snapshot()
	}
	return d.receiveBuffer
}

// SetReceiveBuffer replaces the capture buffer (receive-mode data writes).
func (d *Device) SetReceiveBuffer(samples []complex64) {
	d.mu.Lock()
	if d.isRingBuffer && d.ring != nil {
		d.ring.Reset()
		d.ring.Push(samples)
	} else {
		d.receiveBuffer = samples
	}
	d.currentRecvIndex = int64(len(samples))
	d.mu.Unlock()
}

// FreeBuffers releases both sample buffers.
func (d *Device) FreeBuffers() {
	d.mu.Lock()
	d.samplesToSend = nil
	d.receiveBuffer = nil
	if d.ring != nil {
		d.ring.Reset()
	}
	d.mu.Unlock()
}

func (d *Device) SendingRepeats() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendingRepeats
}

func (d *Device) SetSendingRepeats(v int) {
	d.mu.Lock()
	d.sendingRepeats = v
	if v > 0 {
		d.totalSendSamples = int64(len(d.samplesToSend)) * int64(v)
	} else {
		d.totalSendSamples = 0
	}
	d.mu.Unlock()
}

func (d *Device) CurrentRecvIndex() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentRecvIndex
}

func (d *Device) SetCurrentRecvIndex(v int64) {
	d.mu.Lock()
	d.currentRecvIndex = v
	d.mu.Unlock()
}

func (d *Device) CurrentSentSample() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentSentSample
}

func (d *Device) SetCurrentSentSample(v int64) {
	d.mu.Lock()
	d.currentSentSample = v
	d.mu.Unlock()
}

func (d *Device) CurrentSendingRepeat() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentSendingRepeat
}

func (d *Device) SetCurrentSendingRepeat(v int64) {
	d.mu.Lock()
	d.currentSendingRepeat = v
	d.mu.Unlock()
}

func (d *Device) SendingFinished() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sendingFinished
}

// ---------- Error queue ----------

func (d *Device) queueError(msg string) {
	d.mu.Lock()
	d.errs = append(d.errs, msg)
	d.mu.Unlock()
	d.log.Warn().Str("error", msg).Msg("driver error queued")
}

// QueueError records a driver-reported error for later ReadErrors drain.
func (d *Device) QueueError(msg string) { d.queueError(msg) }

// Errors returns the queued error strings without clearing them.
func (d *Device) Errors() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.errs))
	copy(out, d.errs)
	return out
}

// ClearErrors empties the error queue.
func (d *Device) ClearErrors() {
	d.mu.Lock()
	d.errs = d.errs[:0]
	d.mu.Unlock()
}

// ---------- Lifecycle ----------

// StartRxMode opens the transport and begins capturing on a worker
// goroutine. It is a trigger, not a blocking join.
func (d *Device) StartRxMode() error {
	d.mu.Lock()
	if d.rxRunning {
		d.mu.Unlock()
		return fmt.Errorf("start rx: %w", errAlreadyRunning)
	}
	d.rxRunning = true
	d.rxStop = make(chan struct{})
	d.rxDone = make(chan struct{})
	stop, done := d.rxStop, d.rxDone
	d.mu.Unlock()

	// Open without holding the lock: transports read device state
	// (address, port) through the accessors during connect.
	if err := d.transport.Open(); err != nil {
		d.mu.Lock()
		d.rxRunning = false
		d.mu.Unlock()
		return fmt.Errorf("open transport: %w", err)
	}

	d.applyConfig()
	go d.rxLoop(stop, done)
	return nil
}

func (d *Device) rxLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	chunk := make([]complex64, rxChunkSize)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := d.transport.ReadSamples(chunk)
		if err != nil {
			// A read unblocked by StopRxMode closing the transport is
			// not a driver error.
			if !stopRequested(stop) {
				d.queueError(fmt.Sprintf("read samples: %v", err))
			}
			d.mu.Lock()
			d.rxRunning = false
			d.mu.Unlock()
			_ = d.transport.Close()
			return
		}

		d.mu.Lock()
		old := d.currentRecvIndex
		if d.isRingBuffer && d.ring != nil {
			d.ring.Push(chunk[:n])
		} else {
			d.receiveBuffer = append(d.receiveBuffer, chunk[:n]...)
		}
		d.currentRecvIndex += int64(n)
		now := d.currentRecvIndex
		rate := d.sampleRate
		d.mu.Unlock()

		d.bus.Publish(events.Event{Kind: events.IndexChanged, Old: old, New: now})

		if rate > 0 {
			time.Sleep(time.Duration(float64(n) / rate * float64(time.Second)))
		}
	}
}

// StopRxMode stops the capture worker and closes the transport. The close
// happens before the join so a worker parked in a blocking read unblocks.
func (d *Device) StopRxMode(reason string) error {
	d.mu.Lock()
	if !d.rxRunning {
		d.mu.Unlock()
		return nil
	}
	d.rxRunning = false
	stop, done := d.rxStop, d.rxDone
	d.mu.Unlock()

	d.log.Debug().Str("reason", reason).Msg("stopping rx mode")
	close(stop)
	err := d.transport.Close()
	<-done
	return err
}

// StartTxMode begins streaming the send buffer. With resume the counters
// keep their values, otherwise transmission restarts from the beginning.
func (d *Device) StartTxMode(resume bool) error {
	d.mu.Lock()
	if d.txRunning {
		d.mu.Unlock()
		return fmt.Errorf("start tx: %w", errAlreadyRunning)
	}
	if len(d.samplesToSend) == 0 {
		d.mu.Unlock()
		return errNoSendBuffer
	}
	if !resume {
		d.currentSentSample = 0
		d.currentSendingRepeat = 0
		d.sendingFinished = false
	}
	d.txRunning = true
	d.txStop = make(chan struct{})
	d.txDone = make(chan struct{})
	stop, done := d.txStop, d.txDone
	d.mu.Unlock()

	// Open without holding the lock, see StartRxMode.
	if err := d.transport.Open(); err != nil {
		d.mu.Lock()
		d.txRunning = false
		d.mu.Unlock()
		return fmt.Errorf("open transport: %w", err)
	}

	d.applyConfig()
	go d.txLoop(stop, done)
	return nil
}

func (d *Device) txLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		default:
		}

		d.mu.Lock()
		buf := d.samplesToSend
		pos := d.currentSentSample
		repeats := d.sendingRepeats
		repeat := d.currentSendingRepeat
		d.mu.Unlock()

		if len(buf) == 0 {
			return
		}

		if pos >= int64(len(buf)) {
			repeat++
			if repeats > 0 && repeat >= int64(repeats) {
				d.mu.Lock()
				d.currentSendingRepeat = repeat
				d.sendingFinished = true
				d.txRunning = false
				d.mu.Unlock()
				_ = d.transport.Close()
				return
			}
			pos = 0
			d.mu.Lock()
			d.currentSendingRepeat = repeat
			d.currentSentSample = 0
			d.mu.Unlock()
		}

		end := pos + txChunkSize
		if end > int64(len(buf)) {
			end = int64(len(buf))
		}

		n, err := d.transport.WriteSamples(buf[pos:end])
		if err != nil {
			if !stopRequested(stop) {
				d.queueError(fmt.Sprintf("write samples: %v", err))
			}
			d.mu.Lock()
			d.txRunning = false
			d.mu.Unlock()
			_ = d.transport.Close()
			return
		}

		d.mu.Lock()
		old := d.currentSentSample
		d.currentSentSample = pos + int64(n)
		now := d.currentSentSample
		rate := d.sampleRate
		d.mu.Unlock()

		d.bus.Publish(events.Event{Kind: events.IndexChanged, Old: old, New: now})

		if rate > 0 {
			time.Sleep(time.Duration(float64(n) / rate * float64(time.Second)))
		}
	}
}

// StopTxMode stops the transmit worker and closes the transport. Like
// StopRxMode, the close precedes the join to unblock a parked write.
func (d *Device) StopTxMode(reason string) error {
	d.mu.Lock()
	if !d.txRunning {
		d.mu.Unlock()
		return nil
	}
	d.txRunning = false
	stop, done := d.txStop, d.txDone
	d.mu.Unlock()

	d.log.Debug().Str("reason", reason).Msg("stopping tx mode")
	close(stop)
	err := d.transport.Close()
	<-done
	return err
}

// stopRequested reports whether the worker stop channel is closed.
func stopRequested(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
