// Package device is the public facade over the supported SDR backends: a
// flow-graph style streaming engine, direct native drivers, and a
// network-socket virtual device. Callers construct a VirtualDevice with a
// device name and mode, then drive it exclusively through the uniform
// property surface and lifecycle verbs; the facade routes every call to the
// single adapter it owns.
package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
	"github.com/rjboer/vsdr/internal/native"
	"github.com/rjboer/vsdr/internal/netsdr"
	"github.com/rjboer/vsdr/internal/registry"
	"github.com/rjboer/vsdr/internal/stream"
)

// Backend identifies the technology family driving a device. It is resolved
// once at construction and immutable afterwards.
type Backend int

const (
	BackendNone Backend = iota
	BackendStreaming
	BackendNative
	BackendNetwork
)

func (b Backend) String() string {
	switch b {
	case BackendStreaming:
		return "streaming"
	case BackendNative:
		return "native"
	case BackendNetwork:
		return "network"
	default:
		return "none"
	}
}

// Mode declares the role of a device instance for its lifetime.
type Mode int

const (
	ModeReceive Mode = iota
	ModeSend
	ModeSpectrum
)

func (m Mode) String() string {
	switch m {
	case ModeSend:
		return "send"
	case ModeSpectrum:
		return "spectrum"
	default:
		return "receive"
	}
}

var (
	// ErrUnsupportedBackend rejects an operation the resolved backend does
	// not carry.
	ErrUnsupportedBackend = errors.New("operation not supported on this backend")
	// ErrUnsupportedMode rejects an operation outside its valid mode.
	ErrUnsupportedMode = errors.New("operation not supported in this mode")
	// ErrDeadDevice marks misuse of a facade that resolved to no backend.
	ErrDeadDevice = errors.New("device has no backend")
	// ErrNotImplemented marks a known device or operation without an
	// implementation.
	ErrNotImplemented = errors.New("not implemented")
	// ErrUnknownDevice rejects a native device name outside the known set.
	ErrUnknownDevice = errors.New("unknown device")
)

// Config carries the construction parameters of a VirtualDevice.
type Config struct {
	Name string
	Mode Mode

	Bandwidth  float64
	Frequency  float64
	Gain       float64
	SampleRate float64

	// SamplesToSend pre-loads the send buffer (send mode).
	SamplesToSend []complex64
	// SendingRepeats is the transmission repeat count (0 repeats forever).
	SendingRepeats int

	// DeviceIP is the device address: USRP address for streaming, rtl_tcp
	// host for RTL-TCP, peer host for the network virtual device.
	DeviceIP string
	// Port is the data socket port (streaming) or control port (rtl_tcp).
	Port int

	// RingBuffer selects overwrite capture semantics. Forced on in
	// spectrum mode.
	RingBuffer bool
	// RawMode selects sample ingest over bit ingest (network backend).
	RawMode bool

	// Registry resolves the device name to a backend. Nil means the
	// default table of known native devices.
	Registry *registry.Handler

	Log zerolog.Logger
}

// VirtualDevice unifies the backends behind one property surface. Exactly
// one adapter field is populated, matching the resolved backend; BackendNone
// facades own nothing and reject every operation beyond the no-op verbs.
//
// The facade is not thread-safe: callers serialize Start/Stop themselves.
type VirtualDevice struct {
	name    string
	mode    Mode
	backend Backend
	log     zerolog.Logger

	bus           *events.Bus
	cancelForward func()

	recvEngine *stream.ReceiverEngine
	sendEngine *stream.SenderEngine
	specEngine *stream.SpectrumEngine

	native  *native.Device
	network *netsdr.Plugin
}

// New resolves the backend for cfg.Name and constructs the matching adapter.
// An unregistered name does not fail: it yields a dead facade that rejects
// further use. Unknown or unbuilt native hardware names do fail.
func New(cfg Config) (*VirtualDevice, error) {
	reg := cfg.Registry
	if reg == nil {
		reg = registry.Default(cfg.Log)
	}

	d := &VirtualDevice{
		name: cfg.Name,
		mode: cfg.Mode,
		log:  cfg.Log,
		bus:  events.NewBus(),
	}

	d.backend = resolve(cfg.Name, reg)
	if d.backend == BackendNone {
		d.log.Warn().Str("device", cfg.Name).Msg("device not registered, facade is dead")
		return d, nil
	}

	// Spectrum display needs continuous overwrite capture.
	ringBuffer := cfg.RingBuffer
	if cfg.Mode == ModeSpectrum {
		ringBuffer = true
	}

	adapterBus := events.NewBus()
	var err error
	switch d.backend {
	case BackendStreaming:
		err = d.buildStreaming(cfg, ringBuffer, adapterBus)
	case BackendNative:
		err = d.buildNative(cfg, ringBuffer, adapterBus)
	case BackendNetwork:
		d.buildNetwork(cfg, adapterBus)
	}
	if err != nil {
		return nil, err
	}

	// Re-emit adapter events on the facade bus, one for one.
	src, cancel := adapterBus.Subscribe()
	d.bus.Forward(src)
	d.cancelForward = cancel
	return d, nil
}

// resolve maps a device name to its backend. The reserved network device
// name wins over the registry; an unregistered name resolves to none.
func resolve(name string, reg *registry.Handler) Backend {
	if strings.EqualFold(name, registry.NetworkSDRName) {
		return BackendNetwork
	}
	kind, ok := reg.SelectedBackend(name)
	if !ok {
		return BackendNone
	}
	switch kind {
	case registry.KindStreaming:
		return BackendStreaming
	case registry.KindNetwork:
		return BackendNetwork
	default:
		return BackendNative
	}
}

func (d *VirtualDevice) buildStreaming(cfg Config, ringBuffer bool, bus *events.Bus) error {
	switch cfg.Mode {
	case ModeReceive:
		d.recvEngine = stream.NewReceiver(cfg.SampleRate, cfg.Frequency, cfg.Gain, cfg.Bandwidth, ringBuffer, bus, d.log)
	case ModeSend:
		s := stream.NewSender(cfg.SampleRate, cfg.Frequency, cfg.Gain, cfg.Bandwidth, bus, d.log)
		s.SetData(cfg.SamplesToSend)
		s.SetSamplesPerTransmission(len(cfg.SamplesToSend))
		s.SetMaxRepeats(cfg.SendingRepeats)
		d.sendEngine = s
	case ModeSpectrum:
		d.specEngine = stream.NewSpectrum(cfg.SampleRate, cfg.Frequency, cfg.Gain, cfg.Bandwidth, bus, d.log)
	}
	eng := d.engine()
	eng.SetDeviceName(cfg.Name)
	eng.SetUSRPIP(cfg.DeviceIP)
	eng.SetPort(cfg.Port)
	return nil
}

func (d *VirtualDevice) buildNative(cfg Config, ringBuffer bool, bus *events.Bus) error {
	switch registry.Normalize(cfg.Name) {
	case "hackrf":
		d.native = native.NewHackRF(cfg.Bandwidth, cfg.Frequency, cfg.Gain, cfg.SampleRate, ringBuffer, bus, d.log).Device
	case "rtlsdr":
		d.native = native.NewRTLSDR(cfg.Frequency, cfg.Gain, cfg.SampleRate, 0, ringBuffer, bus, d.log).Device
	case "rtltcp":
		rtl := native.NewRTLSDRTCP(cfg.Frequency, cfg.Gain, cfg.SampleRate, 0, ringBuffer, bus, d.log)
		if cfg.DeviceIP != "" {
			rtl.SetDeviceIP(cfg.DeviceIP)
		}
		if cfg.Port != 0 {
			rtl.SetPort(cfg.Port)
		}
		d.native = rtl.Device
	default:
		if registry.IsKnownNativeDevice(cfg.Name) {
			return fmt.Errorf("native driver for %q: %w", cfg.Name, ErrNotImplemented)
		}
		return fmt.Errorf("%q: %w", cfg.Name, ErrUnknownDevice)
	}
	if cfg.Mode == ModeSend {
		d.native.InitSendParameters(cfg.SamplesToSend, cfg.SendingRepeats)
	}
	return nil
}

func (d *VirtualDevice) buildNetwork(cfg Config, bus *events.Bus) {
	p := netsdr.NewPlugin(cfg.RawMode, bus, d.log)
	if cfg.DeviceIP != "" {
		p.SetClientIP(cfg.DeviceIP)
	}
	if cfg.Mode == ModeSend {
		p.SetSamplesToSend(cfg.SamplesToSend)
		p.SetSendingRepeats(cfg.SendingRepeats)
	}
	d.network = p
}

// Name is the device name the facade was constructed with.
func (d *VirtualDevice) Name() string { return d.name }

// Mode is the declared role of the device.
func (d *VirtualDevice) Mode() Mode { return d.mode }

// Backend is the resolved backend kind.
func (d *VirtualDevice) Backend() Backend { return d.backend }

// Bus is the facade notification stream: started, stopped, index changes,
// and sender-needs-restart, re-emitted from the owned adapter.
func (d *VirtualDevice) Bus() *events.Bus { return d.bus }

// engine returns the active streaming engine core, nil for other backends.
func (d *VirtualDevice) engine() *stream.Engine {
	switch {
	case d.recvEngine != nil:
		return &d.recvEngine.Engine
	case d.sendEngine != nil:
		return &d.sendEngine.Engine
	case d.specEngine != nil:
		return &d.specEngine.Engine
	default:
		return nil
	}
}

func (d *VirtualDevice) backendErr() error {
	if d.backend == BackendNone {
		return fmt.Errorf("%q: %w", d.name, ErrDeadDevice)
	}
	return fmt.Errorf("%s backend: %w", d.backend, ErrUnsupportedBackend)
}
