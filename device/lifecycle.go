package device

import (
	"fmt"
	"strings"
	"time"

	"github.com/rjboer/vsdr/internal/events"
)

// settleTimeout bounds the wait for a prior engine run to confirm teardown
// before the next one starts.
const settleTimeout = 100 * time.Millisecond

// Start begins the device run for the declared mode. On the streaming
// backend any previous run is force-terminated first and its teardown
// acknowledgement awaited before the restart. The native and network
// adapters do not self-report, the facade emits their started event.
func (d *VirtualDevice) Start() error {
	switch d.backend {
	case BackendStreaming:
		d.engine().Terminate()
		d.waitEngineUnwound()
		return d.startEngine()
	case BackendNative:
		var err error
		if d.mode == ModeSend {
			err = d.native.StartTxMode(true)
		} else {
			err = d.native.StartRxMode()
		}
		if err != nil {
			return err
		}
		d.bus.Publish(events.Event{Kind: events.Started})
		return nil
	case BackendNetwork:
		var err error
		if d.mode == ModeSend {
			err = d.network.StartRawSendingThread()
		} else {
			err = d.network.StartTCPServer()
		}
		if err != nil {
			return err
		}
		d.bus.Publish(events.Event{Kind: events.Started})
		return nil
	default:
		return fmt.Errorf("start: %w", ErrDeadDevice)
	}
}

// Stop ends the current run, recording the human-readable reason. On a dead
// facade it is a harmless no-op.
func (d *VirtualDevice) Stop(reason string) error {
	switch d.backend {
	case BackendStreaming:
		d.engine().Stop(reason)
		return nil
	case BackendNative:
		var err error
		if d.mode == ModeSend {
			err = d.native.StopTxMode(reason)
		} else {
			err = d.native.StopRxMode(reason)
		}
		d.bus.Publish(events.Event{Kind: events.Stopped})
		return err
	case BackendNetwork:
		if d.mode == ModeSend {
			d.network.StopSending()
		} else {
			d.network.StopTCPServer()
		}
		d.bus.Publish(events.Event{Kind: events.Stopped})
		return nil
	default:
		d.log.Debug().Str("reason", reason).Msg("stop on dead device ignored")
		return nil
	}
}

// StopOnError is the recovery path after driver-reported errors: the native
// error queue is dropped and both transmit and receive are forced down,
// whichever was active. Only the streaming and native backends carry it.
func (d *VirtualDevice) StopOnError(reason string) error {
	switch d.backend {
	case BackendStreaming:
		d.engine().Stop(reason)
		return nil
	case BackendNative:
		d.native.ClearErrors()
		txErr := d.native.StopTxMode(reason)
		rxErr := d.native.StopRxMode(reason)
		d.bus.Publish(events.Event{Kind: events.Stopped})
		if txErr != nil {
			return txErr
		}
		return rxErr
	default:
		return fmt.Errorf("stop on error: %w", d.backendErr())
	}
}

// Cleanup releases the owned sample buffers. A sending streaming engine
// additionally closes its data socket and signals its worker to terminate,
// with the same bounded teardown wait as Start. Dead facades no-op.
func (d *VirtualDevice) Cleanup() error {
	switch d.backend {
	case BackendStreaming:
		if d.mode == ModeSend {
			d.engine().CloseSocket()
			d.waitEngineUnwound()
			d.engine().Terminate()
		}
		d.freeEngineData()
	case BackendNative:
		d.native.FreeBuffers()
	case BackendNone:
	default:
		return fmt.Errorf("cleanup: %w", d.backendErr())
	}
	if d.cancelForward != nil {
		d.cancelForward()
		d.cancelForward = nil
	}
	return nil
}

// FreeData releases the sample buffers without touching the run state.
func (d *VirtualDevice) FreeData() error {
	switch d.backend {
	case BackendStreaming:
		d.freeEngineData()
		return nil
	case BackendNative:
		d.native.FreeBuffers()
		return nil
	case BackendNetwork:
		d.network.FreeData()
		return nil
	default:
		return nil
	}
}

// ReadErrors drains accumulated runtime errors into one string. The native
// queue is joined with blank lines and cleared, so a second read returns
// empty. The network device handles its own transport failures and always
// reports none. Reading a dead facade is a caller bug and fails.
func (d *VirtualDevice) ReadErrors() (string, error) {
	switch d.backend {
	case BackendStreaming:
		return d.engine().ReadErrors(), nil
	case BackendNative:
		errs := d.native.Errors()
		d.native.ClearErrors()
		return strings.Join(errs, "\n\n"), nil
	case BackendNetwork:
		return "", nil
	default:
		return "", fmt.Errorf("read errors: %w", ErrDeadDevice)
	}
}

func (d *VirtualDevice) startEngine() error {
	switch {
	case d.recvEngine != nil:
		return d.recvEngine.Start()
	case d.sendEngine != nil:
		return d.sendEngine.Start()
	default:
		return d.specEngine.Start()
	}
}

func (d *VirtualDevice) freeEngineData() {
	switch {
	case d.recvEngine != nil:
		d.recvEngine.FreeData()
	case d.sendEngine != nil:
		d.sendEngine.FreeData()
	default:
		d.specEngine.FreeData()
	}
}

func (d *VirtualDevice) waitEngineUnwound() {
	select {
	case <-d.engine().Done():
	case <-time.After(settleTimeout):
		d.log.Debug().Msg("teardown acknowledgement timed out, continuing")
	}
}
