package native

import (
	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
)

// HackRF is a transmit-capable native driver with adjustable baseband
// filter bandwidth.
type HackRF struct {
	*Device
}

func NewHackRF(bandwidth, frequency, gain, sampleRate float64, ringBuffer bool, bus *events.Bus, log zerolog.Logger) *HackRF {
	d := newDevice(newSynthTransport(true, 5e3), frequency, gain, sampleRate, ringBuffer, bus, log)
	d.bandwidthAdjustable = true
	d.bandwidth = bandwidth
	return &HackRF{Device: d}
}
