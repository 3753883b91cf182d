// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/physiclaw/physiclaw/lib/audit"
	"github.com/physiclaw/physiclaw/lib/clock"
	"github.com/physiclaw/physiclaw/lib/logging"
)

// DefaultInterval is the poll interval when none is configured.
const DefaultInterval = 5 * time.Second

// State is the watchdog lifecycle state.
type State int32

const (
	Stopped State = iota
	Watching
	Terminating
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Watching:
		return "watching"
	case Terminating:
		return "terminating"
	default:
		return "unknown"
	}
}

// Termination is the single message a watchdog sends when it finds
// egress. The receiver must exit the process with a non-zero status.
type Termination struct {
	Violations []Connection
	DetectedAt time.Time
}

// Config holds the dependencies of a Watchdog.
type Config struct {
	Enumerator Enumerator

	// Interval between polls. Zero means DefaultInterval.
	Interval time.Duration

	Clock    clock.Clock
	Recorder audit.Recorder
	Logger   *slog.Logger
}

// Watchdog polls an Enumerator and reports the first violation.
type Watchdog struct {
	enumerator Enumerator
	interval   time.Duration
	clock      clock.Clock
	recorder   audit.Recorder
	logger     *slog.Logger

	state atomic.Int32
}

// New creates a stopped watchdog.
func New(config Config) (*Watchdog, error) {
	if config.Enumerator == nil {
		return nil, errors.New("watchdog: enumerator is required")
	}
	if config.Interval < 0 {
		return nil, errors.New("watchdog: interval must be positive")
	}
	watchdog := &Watchdog{
		enumerator: config.Enumerator,
		interval:   config.Interval,
		clock:      config.Clock,
		recorder:   config.Recorder,
		logger:     config.Logger,
	}
	if watchdog.interval == 0 {
		watchdog.interval = DefaultInterval
	}
	if watchdog.clock == nil {
		watchdog.clock = clock.Real()
	}
	if watchdog.recorder == nil {
		watchdog.recorder = audit.Discard
	}
	if watchdog.logger == nil {
		watchdog.logger = slog.Default()
	}
	return watchdog, nil
}

// State returns the current lifecycle state.
func (w *Watchdog) State() State { return State(w.state.Load()) }

// Interval returns the poll interval.
func (w *Watchdog) Interval() time.Duration { return w.interval }

// Run polls until ctx is done or a violation is found. On a violation
// it sends exactly one Termination on terminate and returns. A Run
// already in progress makes a second call return immediately.
//
// Enumeration errors during polling are logged and the poll is
// retried on the next tick; only violations end the loop.
func (w *Watchdog) Run(ctx context.Context, terminate chan<- Termination) {
	if !w.state.CompareAndSwap(int32(Stopped), int32(Watching)) {
		return
	}

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("egress watchdog started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.state.Store(int32(Stopped))
			w.logger.Debug("egress watchdog stopped")
			return
		case <-ticker.C:
		}

		violations := w.Poll()
		if len(violations) == 0 {
			continue
		}

		w.state.Store(int32(Terminating))
		termination := Termination{Violations: violations, DetectedAt: w.clock.Now().UTC()}
		select {
		case terminate <- termination:
		case <-ctx.Done():
		}
		return
	}
}

// Poll enumerates once and returns every violating connection. Each
// violation is logged at CRITICAL and recorded as egress_block before
// Poll returns.
func (w *Watchdog) Poll() []Connection {
	connections, err := w.enumerator.Connections()
	if err != nil {
		w.logger.Warn("egress watchdog poll failed", "error", err)
		return nil
	}

	var violations []Connection
	for _, connection := range connections {
		if Classify(connection.RemoteAddr) != Violation {
			continue
		}
		violations = append(violations, connection)
		w.logger.Log(context.Background(), logging.LevelCritical, "egress violation: connection outside the safe address space",
			"remote", connection.Remote(),
			"local", connection.LocalAddr,
			"state", connection.State,
			"family", connection.Family,
		)
		w.recorder.Record(audit.EventEgressBlock, map[string]any{
			"remote":      connection.RemoteAddr,
			"remote_port": connection.RemotePort,
			"family":      connection.Family,
			"state":       connection.State,
		})
	}
	return violations
}
