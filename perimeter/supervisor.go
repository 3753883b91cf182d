// Copyright 2026 The Physiclaw Authors
// SPDX-License-Identifier: Apache-2.0

package perimeter

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/procfs"

	"github.com/physiclaw/physiclaw/lib/logging"
	"github.com/physiclaw/physiclaw/lib/process"
	"github.com/physiclaw/physiclaw/lib/watchdog"
)

// Supervisor runs the egress watchdog for the life of the process and
// exits it with status 1 on the first violation.
type Supervisor struct {
	perimeter *Perimeter
	watchdog  *watchdog.Watchdog

	startOnce sync.Once
	done      chan struct{}
}

// Supervisor builds the process supervisor. The watchdog is nil when it
// is disabled by configuration or when the host cannot enumerate
// connections; Start then only logs.
func (p *Perimeter) Supervisor() *Supervisor {
	supervisor := &Supervisor{perimeter: p, done: make(chan struct{})}
	if !p.config.Watchdog.Enabled {
		return supervisor
	}

	enumerator := p.enumerator
	if enumerator == nil {
		proc, err := watchdog.NewProcEnumerator(procfs.DefaultMountPoint, os.Getpid())
		if err != nil {
			if !errors.Is(err, watchdog.ErrUnavailable) {
				p.logger.Warn("egress watchdog scan failed", "error", err)
			}
			p.logger.Warn("egress watchdog disabled", "reason", err.Error())
			return supervisor
		}
		enumerator = proc
	}

	watcher, err := watchdog.New(watchdog.Config{
		Enumerator: enumerator,
		Interval:   p.config.Watchdog.Interval.Std(),
		Clock:      p.clock,
		Recorder:   p.ledger,
		Logger:     p.logger,
	})
	if err != nil {
		p.logger.Warn("egress watchdog disabled", "reason", err.Error())
		return supervisor
	}
	supervisor.watchdog = watcher
	return supervisor
}

// Enabled reports whether Start will watch for egress.
func (s *Supervisor) Enabled() bool { return s.watchdog != nil }

// Watchdog returns the supervised watchdog, or nil when disabled.
func (s *Supervisor) Watchdog() *watchdog.Watchdog { return s.watchdog }

// Done is closed when supervision ends, either because ctx was
// canceled or because the exit function returned after a violation.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Start begins supervision in the background. Only the first call has
// any effect.
func (s *Supervisor) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		if s.watchdog == nil {
			s.perimeter.logger.Info("egress watchdog not running",
				"enabled", s.perimeter.config.Watchdog.Enabled)
			close(s.done)
			return
		}
		terminate := make(chan watchdog.Termination, 1)
		go s.watchdog.Run(ctx, terminate)
		go s.supervise(ctx, terminate)
	})
}

func (s *Supervisor) supervise(ctx context.Context, terminate <-chan watchdog.Termination) {
	defer close(s.done)
	select {
	case <-ctx.Done():
		return
	case termination := <-terminate:
		s.terminate(termination)
	}
}

// terminate leaves a record for the next start and exits. The egress
// records are already in the audit log when the termination arrives.
func (s *Supervisor) terminate(termination watchdog.Termination) {
	logger := s.perimeter.logger
	record := watchdog.RecordFor(termination)

	dataDir := s.perimeter.config.DataDir
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		logger.Warn("creating data directory for termination record", "error", err)
	} else if err := watchdog.WriteState(filepath.Join(dataDir, watchdog.StateFileName), record); err != nil {
		logger.Warn("writing termination record", "error", err)
	}

	logger.Log(context.Background(), logging.LevelCritical, "egress detected, terminating process",
		"violations", len(termination.Violations),
		"remotes", record.Remotes,
	)
	s.perimeter.exit(process.ExitFailure)
}
