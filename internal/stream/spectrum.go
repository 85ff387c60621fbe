package stream

import (
	"net"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/dsp"
	"github.com/rjboer/vsdr/internal/events"
)

// spectrumFFTSize is the number of samples per spectrum frame.
const spectrumFFTSize = 4096

// SpectrumEngine computes a live magnitude spectrum from the incoming
// sample stream. X/Y hold the latest frame: baseband frequency offsets in
// ascending order and their magnitudes. Offsets keep full bin resolution;
// float32 cannot carry an absolute frequency axis (8 Hz spacing at 100 MHz).
type SpectrumEngine struct {
	Engine

	window []complex64
	x      []float32
	y      []float32
}

func NewSpectrum(sampleRate, frequency, gain, bandwidth float64, bus *events.Bus, log zerolog.Logger) *SpectrumEngine {
	return &SpectrumEngine{
		Engine: newEngine(sampleRate, frequency, gain, bandwidth, bus, log),
	}
}

// X returns the frequency axis of the latest frame.
func (s *SpectrumEngine) X() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x
}

// Y returns the magnitudes of the latest frame.
func (s *SpectrumEngine) Y() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.y
}

// FreeData drops the accumulation window and the latest frame.
func (s *SpectrumEngine) FreeData() {
	s.mu.Lock()
	s.window = nil
	s.x = nil
	s.y = nil
	s.mu.Unlock()
}

// Start launches the spectrum worker: samples accumulate into fixed-size
// frames, each frame is transformed and published as the latest X/Y pair.
func (s *SpectrumEngine) Start() error {
	return s.launch(func(stop <-chan struct{}, ln net.Listener) {
		conn, err := acceptOne(stop, ln)
		if err != nil {
			return
		}
		defer conn.Close()
		s.readStream(stop, conn, s.consume)
	})
}

func (s *SpectrumEngine) consume(samples []complex64) {
	s.mu.Lock()
	s.window = append(s.window, samples...)
	var frame []complex64
	if len(s.window) >= spectrumFFTSize {
		frame = s.window[:spectrumFFTSize]
		s.window = s.window[spectrumFFTSize:]
	}
	rate := s.sampleRate
	s.mu.Unlock()

	s.advanceIndex(int64(len(samples)))
	if frame == nil {
		return
	}

	x, y := dsp.WindowedSpectrum(frame, rate)
	s.mu.Lock()
	s.x = x
	s.y = y
	s.mu.Unlock()
}
