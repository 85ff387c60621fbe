package native

import (
	"errors"
	"math"
	"math/rand"
	"sync"
)

// Transport abstracts the sample path of a native driver. Concrete drivers
// either talk to hardware libraries or, for rtl_tcp, to a TCP daemon.
type Transport interface {
	Open() error
	// ReadSamples fills out with received IQ samples and returns the count.
	ReadSamples(out []complex64) (int, error)
	// WriteSamples transmits the samples and returns the count written.
	WriteSamples(in []complex64) (int, error)
	// ApplyConfig pushes frequency, sample rate, and gain to the device.
	ApplyConfig(frequency, sampleRate, gain float64) error
	Close() error
}

// ErrTransmitUnsupported is returned by receive-only hardware.
var ErrTransmitUnsupported = errors.New("device cannot transmit")

// synthTransport synthesizes a tone with noise, standing in for the real
// driver I/O path. The tone offset makes spectrum output recognizable.
type synthTransport struct {
	mu         sync.Mutex
	canTx      bool
	toneOffset float64
	sampleRate float64
	phase      float64
	open       bool
}

func newSynthTransport(canTx bool, toneOffset float64) *synthTransport {
	return &synthTransport{canTx: canTx, toneOffset: toneOffset, sampleRate: 2e6}
}

func (s *synthTransport) Open() error {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	return nil
}

func (s *synthTransport) Close() error {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	return nil
}

func (s *synthTransport) ApplyConfig(_, sampleRate, _ float64) error {
	s.mu.Lock()
	if sampleRate > 0 {
		s.sampleRate = sampleRate
	}
	s.mu.Unlock()
	return nil
}

func (s *synthTransport) ReadSamples(out []complex64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, errors.New("transport not open")
	}
	step := 2 * math.Pi * s.toneOffset / s.sampleRate
	for i := range out {
		s.phase += step
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
		noiseI := rand.NormFloat64() * 1e-4
		noiseQ := rand.NormFloat64() * 1e-4
		out[i] = complex64(complex(math.Cos(s.phase)+noiseI, math.Sin(s.phase)+noiseQ))
	}
	return len(out), nil
}

func (s *synthTransport) WriteSamples(in []complex64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, errors.New("transport not open")
	}
	if !s.canTx {
		return 0, ErrTransmitUnsupported
	}
	return len(in), nil
}
