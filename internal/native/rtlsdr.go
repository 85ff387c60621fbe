package native

import (
	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
)

// RTLSDR is a receive-only native driver. The tuner exposes no adjustable
// baseband filter, so bandwidth writes are ignored.
type RTLSDR struct {
	*Device
	DeviceNumber int
}

func NewRTLSDR(frequency, gain, sampleRate float64, deviceNumber int, ringBuffer bool, bus *events.Bus, log zerolog.Logger) *RTLSDR {
	d := newDevice(newSynthTransport(false, 5e3), frequency, gain, sampleRate, ringBuffer, bus, log)
	return &RTLSDR{Device: d, DeviceNumber: deviceNumber}
}
