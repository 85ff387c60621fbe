package native

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
)

// rtl_tcp command opcodes.
const (
	rtlCmdSetFrequency  = 0x01
	rtlCmdSetSampleRate = 0x02
	rtlCmdSetGainMode   = 0x03
	rtlCmdSetTunerGain  = 0x04
)

const rtlDefaultPort = 1234

// RTLSDRTCP drives an rtl_tcp daemon over TCP. Receive-only, like the local
// RTL-SDR driver.
type RTLSDRTCP struct {
	*Device
	DeviceNumber int
}

func NewRTLSDRTCP(frequency, gain, sampleRate float64, deviceNumber int, ringBuffer bool, bus *events.Bus, log zerolog.Logger) *RTLSDRTCP {
	tr := &rtlTCPTransport{log: log}
	d := newDevice(tr, frequency, gain, sampleRate, ringBuffer, bus, log)
	d.port = rtlDefaultPort
	tr.device = d
	return &RTLSDRTCP{Device: d, DeviceNumber: deviceNumber}
}

// rtlTCPTransport implements Transport against the rtl_tcp wire protocol:
// a 12-byte "RTL0" banner on connect, 5-byte big-endian command frames, and
// a stream of unsigned 8-bit interleaved I/Q data.
type rtlTCPTransport struct {
	mu     sync.Mutex
	log    zerolog.Logger
	device *Device
	conn   net.Conn
	raw    []byte
}

func (t *rtlTCPTransport) addr() string {
	ip := t.device.DeviceIP()
	if ip == "" {
		ip = "127.0.0.1"
	}
	port := t.device.Port()
	if port == 0 {
		port = rtlDefaultPort
	}
	return net.JoinHostPort(ip, fmt.Sprint(port))
}

func (t *rtlTCPTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}

	addr := t.addr()
	dial := func() error {
		c, err := net.DialTimeout("tcp", addr, 3*time.Second)
		if err != nil {
			return err
		}
		t.conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(dial, policy); err != nil {
		return fmt.Errorf("dial rtl_tcp %s: %w", addr, err)
	}
	t.log.Debug().Str("addr", addr).Msg("connected to rtl_tcp")

	// Consume the dongle info banner: "RTL0" + tuner type + gain count.
	banner := make([]byte, 12)
	_ = t.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(t.conn, banner); err != nil {
		t.conn.Close()
		t.conn = nil
		return fmt.Errorf("read rtl_tcp banner: %w", err)
	}
	if string(banner[:4]) != "RTL0" {
		t.conn.Close()
		t.conn = nil
		return fmt.Errorf("unexpected rtl_tcp banner %q", banner[:4])
	}
	_ = t.conn.SetReadDeadline(time.Time{})
	return nil
}

func (t *rtlTCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *rtlTCPTransport) command(op byte, param uint32) error {
	var frame [5]byte
	frame[0] = op
	binary.BigEndian.PutUint32(frame[1:], param)
	_, err := t.conn.Write(frame[:])
	return err
}

func (t *rtlTCPTransport) ApplyConfig(frequency, sampleRate, gain float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("rtl_tcp not connected")
	}
	if err := t.command(rtlCmdSetFrequency, uint32(frequency)); err != nil {
		return fmt.Errorf("set frequency: %w", err)
	}
	if err := t.command(rtlCmdSetSampleRate, uint32(sampleRate)); err != nil {
		return fmt.Errorf("set sample rate: %w", err)
	}
	// Manual gain mode, then the tenth-of-dB tuner gain value.
	if err := t.command(rtlCmdSetGainMode, 1); err != nil {
		return fmt.Errorf("set gain mode: %w", err)
	}
	if err := t.command(rtlCmdSetTunerGain, uint32(gain*10)); err != nil {
		return fmt.Errorf("set tuner gain: %w", err)
	}
	return nil
}

func (t *rtlTCPTransport) ReadSamples(out []complex64) (int, error) {
	t.mu.Lock()
	conn := t.conn
	if cap(t.raw) < 2*len(out) {
		t.raw = make([]byte, 2*len(out))
	}
	raw := t.raw[:2*len(out)]
	t.mu.Unlock()

	if conn == nil {
		return 0, fmt.Errorf("rtl_tcp not connected")
	}
	n, err := io.ReadFull(conn, raw)
	samples := n / 2
	for i := 0; i < samples; i++ {
		re := (float32(raw[2*i]) - 127.5) / 127.5
		im := (float32(raw[2*i+1]) - 127.5) / 127.5
		out[i] = complex(re, im)
	}
	if err != nil && samples == 0 {
		return 0, fmt.Errorf("read rtl_tcp stream: %w", err)
	}
	return samples, nil
}

func (t *rtlTCPTransport) WriteSamples(_ []complex64) (int, error) {
	return 0, ErrTransmitUnsupported
}
