package netsdr

import (
	"fmt"
	"net"
	"sync"

	"github.com/rjboer/vsdr/internal/events"
	"github.com/rjboer/vsdr/internal/iq"
)

// server is the receive-role TCP loop: it accepts connections and ingests
// either raw complex64 little-endian frames or '0'/'1' bit bytes.
type server struct {
	ln   net.Listener
	wg   sync.WaitGroup
	stop chan struct{}
}

// StartTCPServer begins listening on the configured server port. Incoming
// samples/bits are appended to the plugin buffers until StopTCPServer.
func (p *Plugin) StartTCPServer() error {
	p.mu.Lock()
	if p.server != nil {
		p.mu.Unlock()
		return fmt.Errorf("tcp server already running")
	}
	port := p.serverPort
	p.mu.Unlock()

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}

	s := &server{ln: ln, stop: make(chan struct{})}
	p.mu.Lock()
	p.server = s
	p.mu.Unlock()

	p.log.Debug().Int("port", port).Msg("network sdr server listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-s.stop:
					return
				default:
					p.log.Warn().Err(err).Msg("accept failed")
					return
				}
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()
				p.ingest(conn)
			}()
		}
	}()
	return nil
}

// StopTCPServer closes the listener and waits for connection handlers.
func (p *Plugin) StopTCPServer() {
	p.mu.Lock()
	s := p.server
	p.server = nil
	p.mu.Unlock()
	if s == nil {
		return
	}
	close(s.stop)
	s.ln.Close()
	s.wg.Wait()
	p.log.Debug().Msg("network sdr server stopped")
}

// ServerAddr returns the bound listener address, for tests and discovery.
func (p *Plugin) ServerAddr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil {
		return nil
	}
	return p.server.ln.Addr()
}

func (p *Plugin) ingest(conn net.Conn) {
	raw := p.RawMode()
	buf := make([]byte, 8192)
	var pending []byte
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if raw {
				pending = append(pending, buf[:n]...)
				complete := len(pending) / iq.BytesPerSample * iq.BytesPerSample
				samples, err := iq.Decode(pending[:complete])
				if err == nil {
					p.appendSamples(samples)
				}
				pending = pending[complete:]
			} else {
				p.appendBits(buf[:n])
			}
		}
		if err != nil {
			return
		}
	}
}

func (p *Plugin) appendSamples(samples []complex64) {
	if len(samples) == 0 {
		return
	}
	p.mu.Lock()
	old := p.currentReceiveIndex
	p.receiveBuffer = append(p.receiveBuffer, samples...)
	p.currentReceiveIndex += int64(len(samples))
	now := p.currentReceiveIndex
	p.mu.Unlock()
	p.bus.Publish(events.Event{Kind: events.IndexChanged, Old: old, New: now})
}

func (p *Plugin) appendBits(data []byte) {
	bits := make([]byte, 0, len(data))
	for _, b := range data {
		if b == '0' || b == '1' {
			bits = append(bits, b-'0')
		}
	}
	if len(bits) == 0 {
		return
	}
	p.mu.Lock()
	old := p.currentReceiveIndex
	p.receivedBits = append(p.receivedBits, bits...)
	p.currentReceiveIndex += int64(len(bits))
	now := p.currentReceiveIndex
	p.mu.Unlock()
	p.bus.Publish(events.Event{Kind: events.IndexChanged, Old: old, New: now})
}

