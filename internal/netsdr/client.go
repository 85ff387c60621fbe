package netsdr

import (
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/rjboer/vsdr/internal/events"
	"github.com/rjboer/vsdr/internal/iq"
)

const sendChunkSamples = 1024

// sender is the send-role worker streaming the send buffer to the
// configured endpoint.
type sender struct {
	stop chan struct{}
	done chan struct{}
}

// StartRawSendingThread connects to the configured client endpoint and
// streams the send buffer, honoring the sending-repeat count (0 repeats
// endlessly). The trigger returns once the worker is launched; dial
// failures are retried with exponential backoff inside the worker.
func (p *Plugin) StartRawSendingThread() error {
	p.mu.Lock()
	if p.sender != nil {
		p.mu.Unlock()
		return fmt.Errorf("sending thread already running")
	}
	if len(p.samplesToSend) == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no samples to send configured")
	}
	s := &sender{stop: make(chan struct{}), done: make(chan struct{})}
	p.sender = s
	p.mu.Unlock()

	go p.sendLoop(s)
	return nil
}

// StopSending terminates the send worker, if any, and waits for it.
func (p *Plugin) StopSending() {
	p.mu.Lock()
	s := p.sender
	p.sender = nil
	p.mu.Unlock()
	if s == nil {
		return
	}
	close(s.stop)
	<-s.done
}

func (p *Plugin) dialEndpoint(stop <-chan struct{}) (net.Conn, error) {
	p.mu.Lock()
	addr := net.JoinHostPort(p.clientIP, fmt.Sprint(p.clientPort))
	p.mu.Unlock()

	var conn net.Conn
	dial := func() error {
		select {
		case <-stop:
			return backoff.Permanent(fmt.Errorf("sending stopped"))
		default:
		}
		c, err := net.DialTimeout("tcp", addr, 2*time.Second)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second
	if err := backoff.Retry(dial, policy); err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}

func (p *Plugin) sendLoop(s *sender) {
	defer close(s.done)
	defer func() {
		p.mu.Lock()
		if p.sender == s {
			p.sender = nil
		}
		p.mu.Unlock()
	}()

	conn, err := p.dialEndpoint(s.stop)
	if err != nil {
		p.log.Warn().Err(err).Msg("network sdr send connect failed")
		p.bus.Publish(events.Event{Kind: events.SenderNeedsRestart})
		return
	}
	defer conn.Close()

	for {
		p.mu.Lock()
		buf := p.samplesToSend
		pos := p.currentSentSample
		repeats := p.sendingRepeats
		repeat := p.currentSendingRepeat
		p.mu.Unlock()

		if len(buf) == 0 {
			return
		}

		select {
		case <-s.stop:
			return
		default:
		}

		if pos >= int64(len(buf)) {
			repeat++
			p.mu.Lock()
			p.currentSendingRepeat = repeat
			p.mu.Unlock()
			if repeats > 0 && repeat >= int64(repeats) {
				// Leave the sent counter at the buffer length so
				// SendingFinished holds.
				return
			}
			pos = 0
			p.mu.Lock()
			p.currentSentSample = 0
			p.mu.Unlock()
		}

		end := pos + sendChunkSamples
		if end > int64(len(buf)) {
			end = int64(len(buf))
		}

		if _, err := conn.Write(iq.Encode(buf[pos:end])); err != nil {
			p.log.Warn().Err(err).Msg("network sdr send failed")
			p.bus.Publish(events.Event{Kind: events.SenderNeedsRestart})
			return
		}

		p.mu.Lock()
		old := p.currentSentSample
		p.currentSentSample = end
		p.mu.Unlock()
		p.bus.Publish(events.Event{Kind: events.IndexChanged, Old: old, New: end})
	}
}
