package device

import (
	"fmt"

	"github.com/rjboer/vsdr/internal/dsp"
)

// The property surface is a pure forwarding layer: every getter/setter maps
// the uniform name onto the backend- and mode-specific adapter field.
// Unsupported combinations return a named error, never a default value.

func (d *VirtualDevice) Bandwidth() (float64, error) {
	switch d.backend {
	case BackendStreaming:
		return d.engine().Bandwidth(), nil
	case BackendNative:
		return d.native.Bandwidth(), nil
	default:
		return 0, fmt.Errorf("bandwidth: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SetBandwidth(v float64) error {
	switch d.backend {
	case BackendStreaming:
		d.engine().SetBandwidth(v)
		return nil
	case BackendNative:
		d.native.SetBandwidth(v)
		return nil
	default:
		return fmt.Errorf("bandwidth: %w", d.backendErr())
	}
}

// BandwidthIsAdjustable reports whether SetBandwidth has an effect. Only
// native drivers restrict it, per hardware; the streaming engine and the
// network virtual device always claim adjustability.
func (d *VirtualDevice) BandwidthIsAdjustable() (bool, error) {
	switch d.backend {
	case BackendStreaming, BackendNetwork:
		return true, nil
	case BackendNative:
		return d.native.BandwidthIsAdjustable(), nil
	default:
		return false, fmt.Errorf("bandwidth adjustability: %w", d.backendErr())
	}
}

func (d *VirtualDevice) Frequency() (float64, error) {
	switch d.backend {
	case BackendStreaming:
		return d.engine().Frequency(), nil
	case BackendNative:
		return d.native.Frequency(), nil
	default:
		return 0, fmt.Errorf("frequency: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SetFrequency(v float64) error {
	switch d.backend {
	case BackendStreaming:
		d.engine().SetFrequency(v)
		return nil
	case BackendNative:
		d.native.SetFrequency(v)
		return nil
	default:
		return fmt.Errorf("frequency: %w", d.backendErr())
	}
}

func (d *VirtualDevice) Gain() (float64, error) {
	switch d.backend {
	case BackendStreaming:
		return d.engine().Gain(), nil
	case BackendNative:
		return d.native.Gain(), nil
	default:
		return 0, fmt.Errorf("gain: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SetGain(v float64) error {
	switch d.backend {
	case BackendStreaming:
		d.engine().SetGain(v)
		return nil
	case BackendNative:
		d.native.SetGain(v)
		return nil
	default:
		return fmt.Errorf("gain: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SampleRate() (float64, error) {
	switch d.backend {
	case BackendStreaming:
		return d.engine().SampleRate(), nil
	case BackendNative:
		return d.native.SampleRate(), nil
	default:
		return 0, fmt.Errorf("sample rate: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SetSampleRate(v float64) error {
	switch d.backend {
	case BackendStreaming:
		d.engine().SetSampleRate(v)
		return nil
	case BackendNative:
		d.native.SetSampleRate(v)
		return nil
	default:
		return fmt.Errorf("sample rate: %w", d.backendErr())
	}
}

// IP is the device address: USRP address for streaming, rtl_tcp host for
// native. The network virtual device takes its peer host through SetIP but
// does not expose it back; reads fail there.
func (d *VirtualDevice) IP() (string, error) {
	switch d.backend {
	case BackendStreaming:
		return d.engine().USRPIP(), nil
	case BackendNative:
		return d.native.DeviceIP(), nil
	default:
		return "", fmt.Errorf("ip: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SetIP(ip string) error {
	switch d.backend {
	case BackendStreaming:
		d.engine().SetUSRPIP(ip)
		return nil
	case BackendNative:
		d.native.SetDeviceIP(ip)
		return nil
	case BackendNetwork:
		d.network.SetClientIP(ip)
		return nil
	default:
		return fmt.Errorf("ip: %w", d.backendErr())
	}
}

// Port is the streaming data socket port; the property is exclusive to the
// streaming backend.
func (d *VirtualDevice) Port() (int, error) {
	if d.backend != BackendStreaming {
		return 0, fmt.Errorf("port: %w", d.backendErr())
	}
	return d.engine().Port(), nil
}

func (d *VirtualDevice) SetPort(p int) error {
	if d.backend != BackendStreaming {
		return fmt.Errorf("port: %w", d.backendErr())
	}
	d.engine().SetPort(p)
	return nil
}

// Data is the active sample buffer: the capture buffer in receive and
// spectrum-less modes, the send buffer in send mode. For a network device in
// decoded-bit mode use ReceivedBits instead.
func (d *VirtualDevice) Data() ([]complex64, error) {
	switch d.backend {
	case BackendStreaming:
		switch {
		case d.recvEngine != nil:
			return d.recvEngine.Data(), nil
		case d.sendEngine != nil:
			return d.sendEngine.Data(), nil
		default:
			return nil, fmt.Errorf("data in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
	case BackendNative:
		if d.mode == ModeSend {
			return d.native.SamplesToSend(), nil
		}
		return d.native.ReceiveBuffer(), nil
	case BackendNetwork:
		if d.mode == ModeSend {
			return nil, fmt.Errorf("data on sending network device: %w", ErrNotImplemented)
		}
		if !d.network.RawMode() {
			return nil, fmt.Errorf("network device decodes bits, use ReceivedBits: %w", ErrUnsupportedMode)
		}
		return d.network.ReceiveBuffer(), nil
	default:
		return nil, fmt.Errorf("data: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SetData(samples []complex64) error {
	switch d.backend {
	case BackendStreaming:
		switch {
		case d.recvEngine != nil:
			d.recvEngine.SetData(samples)
		case d.sendEngine != nil:
			d.sendEngine.SetData(samples)
			d.sendEngine.SetSamplesPerTransmission(len(samples))
		default:
			return fmt.Errorf("data in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
		return nil
	case BackendNative:
		if d.mode == ModeSend {
			d.native.InitSendParameters(samples, d.native.SendingRepeats())
		} else {
			d.native.SetReceiveBuffer(samples)
		}
		return nil
	default:
		return fmt.Errorf("data: %w", d.backendErr())
	}
}

// ReceivedBits is the decoded bit buffer of a network device in bit mode.
func (d *VirtualDevice) ReceivedBits() ([]byte, error) {
	if d.backend != BackendNetwork {
		return nil, fmt.Errorf("received bits: %w", d.backendErr())
	}
	if d.network.RawMode() {
		return nil, fmt.Errorf("network device ingests raw samples, use Data: %w", ErrUnsupportedMode)
	}
	return d.network.ReceivedBits(), nil
}

func (d *VirtualDevice) SamplesToSend() ([]complex64, error) {
	switch d.backend {
	case BackendStreaming:
		if d.sendEngine == nil {
			return nil, fmt.Errorf("samples to send in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
		return d.sendEngine.Data(), nil
	case BackendNative:
		return d.native.SamplesToSend(), nil
	case BackendNetwork:
		return d.network.SamplesToSend(), nil
	default:
		return nil, fmt.Errorf("samples to send: %w", d.backendErr())
	}
}

// SetSamplesToSend installs the send buffer. On the native backend it
// re-runs send parameter initialization with the current repeat count, the
// driver derives its transmission state from the buffer.
func (d *VirtualDevice) SetSamplesToSend(samples []complex64) error {
	switch d.backend {
	case BackendStreaming:
		if d.sendEngine == nil {
			return fmt.Errorf("samples to send in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
		d.sendEngine.SetData(samples)
		d.sendEngine.SetSamplesPerTransmission(len(samples))
		return nil
	case BackendNative:
		d.native.InitSendParameters(samples, d.native.SendingRepeats())
		return nil
	case BackendNetwork:
		d.network.SetSamplesToSend(samples)
		return nil
	default:
		return fmt.Errorf("samples to send: %w", d.backendErr())
	}
}

func (d *VirtualDevice) NumSendingRepeats() (int, error) {
	switch d.backend {
	case BackendStreaming:
		if d.sendEngine == nil {
			return 0, fmt.Errorf("sending repeats in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
		return d.sendEngine.MaxRepeats(), nil
	case BackendNative:
		return d.native.SendingRepeats(), nil
	case BackendNetwork:
		return d.network.SendingRepeats(), nil
	default:
		return 0, fmt.Errorf("sending repeats: %w", d.backendErr())
	}
}

// SetNumSendingRepeats updates the repeat count. On the streaming backend a
// changed value also resets the iteration counter; assigning the same value
// leaves it untouched.
func (d *VirtualDevice) SetNumSendingRepeats(n int) error {
	switch d.backend {
	case BackendStreaming:
		if d.sendEngine == nil {
			return fmt.Errorf("sending repeats in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
		if d.sendEngine.MaxRepeats() != n {
			d.sendEngine.SetMaxRepeats(n)
			d.sendEngine.SetCurrentIteration(0)
		}
		return nil
	case BackendNative:
		d.native.SetSendingRepeats(n)
		return nil
	case BackendNetwork:
		d.network.SetSendingRepeats(n)
		return nil
	default:
		return fmt.Errorf("sending repeats: %w", d.backendErr())
	}
}

// CurrentIndex is the progress counter: the streaming engine keeps one
// unified counter, native and network devices count sent samples in send
// mode and received samples otherwise.
func (d *VirtualDevice) CurrentIndex() (int64, error) {
	switch d.backend {
	case BackendStreaming:
		return d.engine().CurrentIndex(), nil
	case BackendNative:
		if d.mode == ModeSend {
			return d.native.CurrentSentSample(), nil
		}
		return d.native.CurrentRecvIndex(), nil
	case BackendNetwork:
		if d.mode == ModeSend {
			return d.network.CurrentSentSample(), nil
		}
		return d.network.CurrentReceiveIndex(), nil
	default:
		return 0, fmt.Errorf("current index: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SetCurrentIndex(v int64) error {
	switch d.backend {
	case BackendStreaming:
		d.engine().SetCurrentIndex(v)
		return nil
	case BackendNative:
		if d.mode == ModeSend {
			d.native.SetCurrentSentSample(v)
		} else {
			d.native.SetCurrentRecvIndex(v)
		}
		return nil
	case BackendNetwork:
		if d.mode == ModeSend {
			d.network.SetCurrentSentSample(v)
		} else {
			d.network.SetCurrentReceiveIndex(v)
		}
		return nil
	default:
		return fmt.Errorf("current index: %w", d.backendErr())
	}
}

// CurrentIteration is the repeat counter of a sending device.
func (d *VirtualDevice) CurrentIteration() (int64, error) {
	switch d.backend {
	case BackendStreaming:
		if d.sendEngine == nil {
			return 0, fmt.Errorf("current iteration in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
		return d.sendEngine.CurrentIteration(), nil
	case BackendNative:
		return d.native.CurrentSendingRepeat(), nil
	case BackendNetwork:
		return d.network.CurrentSendingRepeat(), nil
	default:
		return 0, fmt.Errorf("current iteration: %w", d.backendErr())
	}
}

func (d *VirtualDevice) SetCurrentIteration(v int64) error {
	switch d.backend {
	case BackendStreaming:
		if d.sendEngine == nil {
			return fmt.Errorf("current iteration in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
		d.sendEngine.SetCurrentIteration(v)
		return nil
	case BackendNative:
		d.native.SetCurrentSendingRepeat(v)
		return nil
	case BackendNetwork:
		d.network.SetCurrentSendingRepeat(v)
		return nil
	default:
		return fmt.Errorf("current iteration: %w", d.backendErr())
	}
}

// SendingFinished reports whether the send buffer went out completely: the
// streaming sender signals it through its terminal iteration sentinel, the
// native driver reports it directly, the network device compares sent
// samples against the buffer length.
func (d *VirtualDevice) SendingFinished() (bool, error) {
	switch d.backend {
	case BackendStreaming:
		if d.sendEngine == nil {
			return false, fmt.Errorf("sending finished in %s mode: %w", d.mode, ErrUnsupportedMode)
		}
		return d.sendEngine.SendingFinished(), nil
	case BackendNative:
		return d.native.SendingFinished(), nil
	case BackendNetwork:
		return d.network.SendingFinished(), nil
	default:
		return false, fmt.Errorf("sending finished: %w", d.backendErr())
	}
}

// SetServerPort configures the receive server port (network backend only).
func (d *VirtualDevice) SetServerPort(port int) error {
	if d.backend != BackendNetwork {
		return fmt.Errorf("server port: %w", d.backendErr())
	}
	d.network.SetServerPort(port)
	return nil
}

// SetClientPort configures the send endpoint port (network backend only).
func (d *VirtualDevice) SetClientPort(port int) error {
	if d.backend != BackendNetwork {
		return fmt.Errorf("client port: %w", d.backendErr())
	}
	d.network.SetClientPort(port)
	return nil
}

// Spectrum returns the latest frequency/magnitude pair, frequencies as
// baseband offsets from the center frequency in ascending order. The
// streaming spectrum engine produces it directly; on the native backend the
// facade transforms the capture buffer itself.
func (d *VirtualDevice) Spectrum() ([]float32, []float32, error) {
	if d.mode != ModeSpectrum {
		return nil, nil, fmt.Errorf("spectrum in %s mode: %w", d.mode, ErrUnsupportedMode)
	}
	switch d.backend {
	case BackendStreaming:
		return d.specEngine.X(), d.specEngine.Y(), nil
	case BackendNative:
		x, y := dsp.Spectrum(d.native.ReceiveBuffer(), d.native.SampleRate())
		return x, y, nil
	default:
		return nil, nil, fmt.Errorf("spectrum: %w", d.backendErr())
	}
}
