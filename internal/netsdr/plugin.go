// Package netsdr implements the socket-based virtual device: a TCP server
// that ingests samples or bits in receive mode, and a client that streams
// the send buffer in send mode.
package netsdr

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/rjboer/vsdr/internal/events"
)

// DefaultServerPort and DefaultClientPort match the conventional virtual
// device ports.
const (
	DefaultServerPort = 2222
	DefaultClientPort = 2223
)

// Plugin is the network virtual device adapter. In raw mode the receive
// path stores complex64 samples; otherwise it stores decoded bits.
type Plugin struct {
	mu  sync.Mutex
	log zerolog.Logger
	bus *events.Bus

	rawMode    bool
	clientIP   string
	serverPort int
	clientPort int

	receiveBuffer       []complex64
	receivedBits        []byte
	currentReceiveIndex int64

	samplesToSend        []complex64
	sendingRepeats       int
	currentSentSample    int64
	currentSendingRepeat int64

	server *server
	sender *sender
}

func NewPlugin(rawMode bool, bus *events.Bus, log zerolog.Logger) *Plugin {
	if bus == nil {
		bus = events.NewBus()
	}
	return &Plugin{
		log:        log,
		bus:        bus,
		rawMode:    rawMode,
		clientIP:   "127.0.0.1",
		serverPort: DefaultServerPort,
		clientPort: DefaultClientPort,
	}
}

// Bus exposes the adapter event stream.
func (p *Plugin) Bus() *events.Bus { return p.bus }

func (p *Plugin) RawMode() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rawMode
}

func (p *Plugin) ClientIP() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientIP
}

func (p *Plugin) SetClientIP(ip string) {
	p.mu.Lock()
	p.clientIP = ip
	p.mu.Unlock()
}

func (p *Plugin) ServerPort() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serverPort
}

func (p *Plugin) SetServerPort(port int) {
	p.mu.Lock()
	p.serverPort = port
	p.mu.Unlock()
}

func (p *Plugin) ClientPort() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clientPort
}

func (p *Plugin) SetClientPort(port int) {
	p.mu.Lock()
	p.clientPort = port
	p.mu.Unlock()
}

// ReceiveBuffer returns the raw samples received so far.
func (p *Plugin) ReceiveBuffer() []complex64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.receiveBuffer
}

// ReceivedBits returns the decoded bit buffer (non-raw mode).
func (p *Plugin) ReceivedBits() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.receivedBits
}

func (p *Plugin) CurrentReceiveIndex() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentReceiveIndex
}

func (p *Plugin) SetCurrentReceiveIndex(v int64) {
	p.mu.Lock()
	p.currentReceiveIndex = v
	p.mu.Unlock()
}

func (p *Plugin) SamplesToSend() []complex64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samplesToSend
}

func (p *Plugin) SetSamplesToSend(samples []complex64) {
	p.mu.Lock()
	p.samplesToSend = samples
	p.currentSentSample = 0
	p.currentSendingRepeat = 0
	p.mu.Unlock()
}

func (p *Plugin) SendingRepeats() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendingRepeats
}

func (p *Plugin) SetSendingRepeats(v int) {
	p.mu.Lock()
	p.sendingRepeats = v
	p.mu.Unlock()
}

func (p *Plugin) CurrentSentSample() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentSentSample
}

func (p *Plugin) SetCurrentSentSample(v int64) {
	p.mu.Lock()
	p.currentSentSample = v
	p.mu.Unlock()
}

func (p *Plugin) CurrentSendingRepeat() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentSendingRepeat
}

func (p *Plugin) SetCurrentSendingRepeat(v int64) {
	p.mu.Lock()
	p.currentSendingRepeat = v
	p.mu.Unlock()
}

// SendingFinished reports whether the whole send buffer went out: the sent
// counter equals the buffer length. An empty buffer counts as finished.
func (p *Plugin) SendingFinished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentSentSample == int64(len(p.samplesToSend))
}

// FreeData releases both receive buffers and the send buffer.
func (p *Plugin) FreeData() {
	p.mu.Lock()
	p.receiveBuffer = nil
	p.receivedBits = nil
	p.samplesToSend = nil
	p.mu.Unlock()
}
