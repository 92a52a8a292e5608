// Package supervisor wires together the content index, empty-file
// register, IPC server, watcher, and scanner in the startup and shutdown
// order §4.9 specifies, mirroring the way the teacher's daemon run
// command (cmd/mutagen/daemon/run.go) acquires its lock, opens its
// logger, and starts its managers in a fixed sequence before blocking on
// a termination signal channel.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/config"
	"github.com/ddas/ddas/internal/emptyset"
	"github.com/ddas/ddas/internal/index"
	"github.com/ddas/ddas/internal/ipcserver"
	"github.com/ddas/ddas/internal/logging"
	"github.com/ddas/ddas/internal/scanner"
	"github.com/ddas/ddas/internal/watcher"
)

// TerminationSignals are the signals that request a graceful shutdown,
// named the same way the teacher's cmd package names them.
var TerminationSignals = terminationSignals

// Supervisor owns the lifetime of every long-lived component for one run
// of the service against one root directory (§4.9).
type Supervisor struct {
	logger *logging.Logger
	cfg    *config.Config

	contentIdx *index.ContentIndex
	emptySet   *emptyset.EmptyFileSet
	aggregator *aggregate.Aggregator
	ipc        *ipcserver.Server
	watch      *watcher.Watcher
	scan       *scanner.Scanner
}

// New constructs a Supervisor. It does not start anything; call Run.
func New(logger *logging.Logger, cfg *config.Config) *Supervisor {
	contentIdx := index.New()
	emptySet := emptyset.New()
	aggregator := aggregate.New(logger.Sublogger("aggregate"), cfg.MaxGroups, cfg.MaxRecordsPerGroup, cfg.ReplaySpacing)

	return &Supervisor{
		logger:     logger,
		cfg:        cfg,
		contentIdx: contentIdx,
		emptySet:   emptySet,
		aggregator: aggregator,
		ipc:        ipcserver.New(logger.Sublogger("ipc"), cfg.SocketName, aggregator),
		watch: watcher.New(logger.Sublogger("watcher"), contentIdx, emptySet, aggregator, watcher.Config{
			BufferSize:            cfg.HashBufferSize,
			SettleDelay:           cfg.SettleDelay,
			DebouncePollInterval:  cfg.DebouncePollInterval,
			DebounceStableSamples: cfg.DebounceStableSamples,
			DebounceTimeout:       cfg.DebounceTimeout,
		}),
		scan: scanner.New(logger.Sublogger("scan"), contentIdx, emptySet, aggregator, cfg.HashBufferSize),
	}
}

// Run executes the full lifecycle against root: startup in the §4.9
// order, block until the initial scan finishes (and, if keepWatching,
// until a termination signal or ctx cancellation arrives), then shut down
// in reverse order. It returns a non-nil error only for a failure that
// should produce a non-zero exit code (§6): here, a watcher
// initialization failure is logged and tolerated rather than propagated,
// since the specification treats it as recoverable (§7).
func (s *Supervisor) Run(ctx context.Context, root string, keepWatching bool) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("unable to access %s: %w", root, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminationSignalChan := make(chan os.Signal, 1)
	signal.Notify(terminationSignalChan, TerminationSignals...)
	defer signal.Stop(terminationSignalChan)

	if err := s.ipc.Start(runCtx); err != nil {
		s.logger.Warn(err)
	}

	var watcherRunning bool
	var watcherDone sync.WaitGroup
	if err := s.watch.Start(root); err != nil {
		s.logger.Warn(err)
	} else {
		watcherRunning = true
		watcherDone.Add(1)
		go func() {
			defer watcherDone.Done()
			s.watch.Run(runCtx)
		}()
	}

	if err := s.scan.Run(runCtx, root); err != nil {
		s.logger.Error(err)
	}

	if keepWatching {
		select {
		case <-runCtx.Done():
		case <-terminationSignalChan:
			s.logger.Tagged("SHUTDOWN", "termination signal received")
		}
	}

	cancel()
	if watcherRunning {
		if err := s.watch.Stop(); err != nil {
			s.logger.Warn(err)
		}
		watcherDone.Wait()
	}
	if err := s.ipc.Stop(); err != nil {
		s.logger.Warn(err)
	}

	return nil
}
