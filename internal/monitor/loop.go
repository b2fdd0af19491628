package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/mosquitto-monitor/internal/infrastructure/config"
	"github.com/nerrad567/mosquitto-monitor/internal/status"
)

type loopKind int

const (
	loopForever loopKind = iota
	loopBackground
	loopBounded
)

// LoopMode selects how RunEventLoop drives the message queue.
type LoopMode struct {
	kind       loopKind
	iterations int
	timeout    time.Duration
}

// Forever blocks the caller until the context is cancelled or Stop is called.
func Forever() LoopMode {
	return LoopMode{kind: loopForever}
}

// Background runs the loop on one goroutine and returns immediately.
func Background() LoopMode {
	return LoopMode{kind: loopBackground}
}

// Bounded runs a fixed number of iterations. Each iteration waits up to
// timeout for a message, then handles everything already queued.
func Bounded(iterations int, timeout time.Duration) LoopMode {
	return LoopMode{kind: loopBounded, iterations: iterations, timeout: timeout}
}

// LoopModeFromConfig converts the monitor.loop section of the configuration.
func LoopModeFromConfig(cfg *config.Config) (LoopMode, error) {
	loop := cfg.Monitor.Loop
	switch loop.Mode {
	case config.LoopModeForever, "":
		return Forever(), nil
	case config.LoopModeBackground:
		return Background(), nil
	case config.LoopModeBounded:
		mode := Bounded(loop.Iterations, cfg.GetLoopTimeout())
		if err := mode.validate(); err != nil {
			return LoopMode{}, err
		}
		return mode, nil
	default:
		return LoopMode{}, fmt.Errorf("%w: %q", ErrInvalidLoopMode, loop.Mode)
	}
}

func (l LoopMode) validate() error {
	if l.kind == loopBounded && (l.iterations < 1 || l.timeout <= 0) {
		return fmt.Errorf("%w: bounded loop needs iterations >= 1 and a positive timeout", ErrInvalidLoopMode)
	}
	return nil
}

func (l LoopMode) String() string {
	switch l.kind {
	case loopBackground:
		return config.LoopModeBackground
	case loopBounded:
		return fmt.Sprintf("%s(%d x %v)", config.LoopModeBounded, l.iterations, l.timeout)
	default:
		return config.LoopModeForever
	}
}

// RunEventLoop dispatches queued status messages until the mode completes.
//
// Only one loop may be active at a time; a second call returns
// ErrLoopRunning. Messages that arrived outside a session never reach the
// queue. A bounded loop flushes batching emitters before returning.
//
// Returns:
//   - error: nil when the loop completes or Stop is called, ctx.Err() if the
//     context ends first, ErrStopped after Stop, ErrLoopRunning or
//     ErrInvalidLoopMode
func (m *Monitor) RunEventLoop(ctx context.Context, mode LoopMode) error {
	if err := mode.validate(); err != nil {
		return err
	}
	if m.stopCtx.Err() != nil {
		return ErrStopped
	}
	if !m.loopRunning.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}

	switch mode.kind {
	case loopBackground:
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer m.loopRunning.Store(false)

			if err := m.pump(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("event loop ended", "error", err)
			}
		}()
		return nil

	case loopBounded:
		defer m.loopRunning.Store(false)
		defer flushEmitter(m.emitter)
		return m.runBounded(ctx, mode)

	default:
		defer m.loopRunning.Store(false)
		return m.pump(ctx)
	}
}

// pump handles messages until the context ends or the monitor stops.
func (m *Monitor) pump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCtx.Done():
			return nil
		case msg := <-m.queue:
			m.process(msg)
		}
	}
}

func (m *Monitor) runBounded(ctx context.Context, mode LoopMode) error {
	timer := time.NewTimer(mode.timeout)
	defer timer.Stop()

	for i := 0; i < mode.iterations; i++ {
		timer.Reset(mode.timeout)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCtx.Done():
			return nil
		case msg := <-m.queue:
			m.process(msg)
			m.drain()
		case <-timer.C:
		}
	}
	return nil
}

// drain handles the messages queued right now without waiting for more.
func (m *Monitor) drain() {
	for n := len(m.queue); n > 0; n-- {
		select {
		case msg := <-m.queue:
			m.process(msg)
		default:
			return
		}
	}
}

// process dispatches one message. Whether it belongs to a session was
// decided when it arrived.
func (m *Monitor) process(msg status.Message) {
	m.dispatcher.OnStatusMessage(msg)
}
