package stream

import (
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
	"github.com/rjboer/vsdr/internal/iq"
	"github.com/rjboer/vsdr/internal/ringbuf"
)

// receiveRingCapacity bounds the overwrite buffer for continuous capture.
const receiveRingCapacity = 1 << 16

// ReceiverEngine ingests the sample stream the flow graph pushes into the
// data socket and stores it in the capture buffer.
type ReceiverEngine struct {
	Engine

	isRingBuffer bool
	ring         *ringbuf.Ring
	data         []complex64
}

func NewReceiver(sampleRate, frequency, gain, bandwidth float64, isRingBuffer bool, bus *events.Bus, log zerolog.Logger) *ReceiverEngine {
	r := &ReceiverEngine{
		Engine:       newEngine(sampleRate, frequency, gain, bandwidth, bus, log),
		isRingBuffer: isRingBuffer,
	}
	if isRingBuffer {
		r.ring = ringbuf.New(receiveRingCapacity)
	}
	return r
}

// Data returns the captured samples, oldest first.
func (r *ReceiverEngine) Data() []complex64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRingBuffer && r.ring != nil {
		return r.ring.Snapshot()
	}
	return r.data
}

// SetData replaces the capture buffer.
func (r *ReceiverEngine) SetData(samples []complex64) {
	r.mu.Lock()
	if r.isRingBuffer && r.ring != nil {
		r.ring.Reset()
		r.ring.Push(samples)
	} else {
		r.data = samples
	}
	r.mu.Unlock()
}

// FreeData releases the capture buffer.
func (r *ReceiverEngine) FreeData() {
	r.mu.Lock()
	r.data = nil
	if r.ring != nil {
		r.ring.Reset()
	}
	r.mu.Unlock()
}

// Start launches the receive worker. It accepts one flow-graph connection
// and appends decoded samples until stopped or the stream ends.
func (r *ReceiverEngine) Start() error {
	return r.launch(func(stop <-chan struct{}, ln net.Listener) {
		conn, err := acceptOne(stop, ln)
		if err != nil {
			return
		}
		defer conn.Close()
		r.readStream(stop, conn, func(samples []complex64) {
			r.mu.Lock()
			if r.isRingBuffer && r.ring != nil {
				r.ring.Push(samples)
			} else {
				r.data = append(r.data, samples...)
			}
			r.mu.Unlock()
			r.advanceIndex(int64(len(samples)))
		})
	})
}

// readStream decodes complete IQ frames from conn, feeding each batch to
// sink, until stop or EOF.
func (e *Engine) readStream(stop <-chan struct{}, conn net.Conn, sink func([]complex64)) {
	buf := make([]byte, 8192)
	var pending []byte
	for {
		select {
		case <-stop:
			return
		default:
		}
		n, err := conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			complete := len(pending) / iq.BytesPerSample * iq.BytesPerSample
			if complete > 0 {
				samples, derr := iq.Decode(pending[:complete])
				if derr == nil {
					sink(samples)
				}
				pending = pending[complete:]
			}
		}
		if err != nil {
			if err != io.EOF && !isClosing(stop) {
				e.queueError(fmt.Sprintf("data socket read: %v", err))
			}
			return
		}
	}
}

func isClosing(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return true
	default:
		return false
	}
}
