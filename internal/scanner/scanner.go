// Package scanner implements the one-shot recursive directory traversal
// (§4.5) that populates the ContentIndex and EmptyFileSet before the
// watcher takes over steady-state observation. It runs concurrently with
// the watcher, which must already be listening (per the supervisor's
// startup order) so that mid-scan mutations aren't lost.
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ddas/ddas/internal/aggregate"
	"github.com/ddas/ddas/internal/classify"
	"github.com/ddas/ddas/internal/ddaserrors"
	"github.com/ddas/ddas/internal/digest"
	"github.com/ddas/ddas/internal/emptyset"
	"github.com/ddas/ddas/internal/index"
	"github.com/ddas/ddas/internal/logging"
	"github.com/ddas/ddas/internal/record"
)

// Scanner performs the initial recursive content scan.
type Scanner struct {
	logger     *logging.Logger
	contentIdx *index.ContentIndex
	emptySet   *emptyset.EmptyFileSet
	aggregator *aggregate.Aggregator
	bufferSize int

	filesScanned  int
	groupsFound   map[string]struct{}
	bytesScanned  int64
}

// New creates a Scanner wired to the shared index, empty-set, and
// aggregator owned by the supervisor.
func New(logger *logging.Logger, contentIdx *index.ContentIndex, emptySet *emptyset.EmptyFileSet, aggregator *aggregate.Aggregator, bufferSize int) *Scanner {
	return &Scanner{
		logger:      logger,
		contentIdx:  contentIdx,
		emptySet:    emptySet,
		aggregator:  aggregator,
		bufferSize:  bufferSize,
		groupsFound: make(map[string]struct{}),
	}
}

// Run performs the recursive depth-first traversal of root, honoring
// cancellation between entries (§4.5, §5). On completion it invokes the
// aggregator's scan-complete emitter with totals.
func (s *Scanner) Run(ctx context.Context, root string) error {
	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			s.logger.Error(ddaserrors.NewIoError(path, walkErr))
			return nil
		}

		name := info.Name()
		if name == "." || name == ".." {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if classify.ShouldIgnore(name) {
			return nil
		}

		s.processFile(path, info)
		return nil
	})

	if err != nil && err != context.Canceled {
		return err
	}

	s.logger.Tagged("SCAN", "complete: %d files, %d duplicate groups (%s scanned)",
		s.filesScanned, len(s.groupsFound), humanize.Bytes(uint64(s.bytesScanned)))
	s.aggregator.OnScanComplete(s.filesScanned, len(s.groupsFound), time.Now())
	return nil
}

// processFile implements the per-file steps of §4.5 (1-2).
func (s *Scanner) processFile(path string, info os.FileInfo) {
	s.filesScanned++
	s.bytesScanned += info.Size()

	if info.Size() == 0 {
		s.logger.Tagged("SCAN", "%s (0 bytes - skipped)", path)
		s.emptySet.Add(path)
		return
	}

	sum, err := digest.File(path, s.bufferSize)
	if err != nil {
		s.logger.Error(err)
		return
	}

	fileID, err := record.Identify(info)
	if err != nil {
		s.logger.Warn(err)
	}

	rec := record.FileRecord{
		Path:           path,
		Name:           info.Name(),
		Digest:         sum,
		Size:           info.Size(),
		ModifiedAt:     info.ModTime(),
		FileIdentifier: fileID,
	}

	others := s.contentIdx.DuplicatesFor(sum, path)
	s.contentIdx.Insert(rec)

	if len(others) > 0 {
		s.groupsFound[sum] = struct{}{}
		s.aggregator.OnDuplicate(rec, others, time.Now())
	}
}
