package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Selopol/padre-pump-backend/internal/logging"
	"github.com/Selopol/padre-pump-backend/internal/observability"
)

// LoopState is the lifecycle state of a polling loop.
type LoopState int

const (
	LoopStopped LoopState = iota
	LoopRunning
)

// String returns the string representation of LoopState.
func (s LoopState) String() string {
	if s == LoopRunning {
		return "running"
	}
	return "stopped"
}

// ScanFunc performs one scan of a polling loop.
type ScanFunc func(ctx context.Context) error

// Loop runs a scan immediately on Start and then on every interval tick.
// Stop cancels the schedule; a scan already in flight runs to completion.
type Loop struct {
	name     string
	interval time.Duration
	scan     ScanFunc
	logger   logrus.FieldLogger
	now      func() time.Time

	mu    sync.Mutex
	state LoopState
	stop  chan struct{}
	done  chan struct{}
}

// NewLoop creates a stopped loop.
func NewLoop(name string, interval time.Duration, scan ScanFunc, logger logrus.FieldLogger) *Loop {
	return &Loop{
		name:     name,
		interval: interval,
		scan:     scan,
		logger:   logging.OrDefault(logger).WithField("loop", name),
		now:      time.Now,
	}
}

// Name returns the loop name.
func (l *Loop) Name() string { return l.name }

// State returns the current state.
func (l *Loop) State() LoopState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start moves the loop to Running. Calling Start on a running loop is a no-op.
// Scans use ctx, so cancelling it aborts in-flight network calls.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == LoopRunning {
		return
	}
	l.state = LoopRunning
	l.stop = make(chan struct{})
	l.done = make(chan struct{})
	go l.run(ctx, l.stop, l.done)
}

// Stop moves the loop to Stopped and waits for the in-flight scan, bounded by ctx.
func (l *Loop) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.state == LoopStopped {
		l.mu.Unlock()
		return nil
	}
	l.state = LoopStopped
	close(l.stop)
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	l.logger.WithField("interval", l.interval.String()).Info("loop started")
	l.runScan(ctx)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			l.logger.Info("loop stopped")
			return
		case <-ctx.Done():
			l.mu.Lock()
			l.state = LoopStopped
			l.mu.Unlock()
			l.logger.Info("loop cancelled")
			return
		case <-ticker.C:
			// A stop that raced with the tick wins.
			select {
			case <-stop:
				l.logger.Info("loop stopped")
				return
			default:
			}
			l.runScan(ctx)
		}
	}
}

func (l *Loop) runScan(ctx context.Context) {
	start := l.now()
	err := l.scan(ctx)
	elapsed := l.now().Sub(start)

	observability.RecordScan(l.name, elapsed.Seconds(), err, float64(l.now().Unix()))
	if err != nil {
		l.logger.WithError(err).WithField("duration", elapsed.String()).Warn("scan failed")
		return
	}
	l.logger.WithField("duration", elapsed.String()).Debug("scan complete")
}
