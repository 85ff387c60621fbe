package stream

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
	"github.com/rjboer/vsdr/internal/iq"
)

const sendChunkSamples = 1024

// IterationFinished is the terminal sentinel for the repeat counter: the
// sender sets it once every repeat has gone out.
const IterationFinished = -1

// SenderEngine streams the send buffer into the flow-graph connection,
// repeating it up to MaxRepeats times.
type SenderEngine struct {
	Engine

	data                   []complex64
	samplesPerTransmission int
	maxRepeats             int
	currentIteration       int64
}

func NewSender(sampleRate, frequency, gain, bandwidth float64, bus *events.Bus, log zerolog.Logger) *SenderEngine {
	return &SenderEngine{
		Engine:     newEngine(sampleRate, frequency, gain, bandwidth, bus, log),
		maxRepeats: 1,
	}
}

// Data returns the send buffer.
func (s *SenderEngine) Data() []complex64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// SetData installs the send buffer.
func (s *SenderEngine) SetData(samples []complex64) {
	s.mu.Lock()
	s.data = samples
	s.mu.Unlock()
}

// FreeData releases the send buffer.
func (s *SenderEngine) FreeData() {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
}

func (s *SenderEngine) SamplesPerTransmission() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samplesPerTransmission
}

func (s *SenderEngine) SetSamplesPerTransmission(n int) {
	s.mu.Lock()
	s.samplesPerTransmission = n
	s.mu.Unlock()
}

// MaxRepeats is the configured number of transmissions (0 repeats forever).
func (s *SenderEngine) MaxRepeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxRepeats
}

func (s *SenderEngine) SetMaxRepeats(n int) {
	s.mu.Lock()
	s.maxRepeats = n
	s.mu.Unlock()
}

// CurrentIteration is the running repeat counter; IterationFinished once
// sending completed.
func (s *SenderEngine) CurrentIteration() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIteration
}

func (s *SenderEngine) SetCurrentIteration(v int64) {
	s.mu.Lock()
	s.currentIteration = v
	s.mu.Unlock()
}

// SendingFinished reports whether the repeat counter reached its terminal
// sentinel.
func (s *SenderEngine) SendingFinished() bool {
	return s.CurrentIteration() == IterationFinished
}

// Start launches the send worker: accept one flow-graph connection, then
// write the buffer MaxRepeats times. A broken connection mid-send raises
// sender-needs-restart.
func (s *SenderEngine) Start() error {
	s.mu.Lock()
	if len(s.data) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no send buffer configured")
	}
	if s.currentIteration == IterationFinished {
		s.currentIteration = 0
	}
	s.mu.Unlock()

	return s.launch(func(stop <-chan struct{}, ln net.Listener) {
		conn, err := acceptOne(stop, ln)
		if err != nil {
			return
		}
		defer conn.Close()
		s.sendAll(stop, conn)
	})
}

func (s *SenderEngine) sendAll(stop <-chan struct{}, conn net.Conn) {
	for {
		s.mu.Lock()
		buf := s.data
		repeats := s.maxRepeats
		iteration := s.currentIteration
		s.mu.Unlock()

		if len(buf) == 0 || iteration == IterationFinished {
			return
		}
		if repeats > 0 && iteration >= int64(repeats) {
			s.SetCurrentIteration(IterationFinished)
			return
		}

		for pos := 0; pos < len(buf); pos += sendChunkSamples {
			select {
			case <-stop:
				return
			default:
			}
			end := pos + sendChunkSamples
			if end > len(buf) {
				end = len(buf)
			}
			if _, err := conn.Write(iq.Encode(buf[pos:end])); err != nil {
				if !isClosing(stop) {
					s.queueError(fmt.Sprintf("data socket write: %v", err))
					s.bus.Publish(events.Event{Kind: events.SenderNeedsRestart})
				}
				return
			}
			s.advanceIndex(int64(end - pos))
		}

		s.SetCurrentIteration(iteration + 1)
	}
}
