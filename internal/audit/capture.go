package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Service is the capture engine. It orchestrates the walker, the metadata
// extractor, and the hasher into an ordered snapshot of the audited files.
type Service struct {
	fsmgr     FilesystemManager
	newHasher HasherFactory
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	hostID    string
	workers   int
}

// NewService creates a capture engine with the provided dependencies.
// workers bounds how many files are extracted and hashed concurrently;
// values below 2 select the sequential pipeline. Record order in the
// produced snapshot always matches walk order regardless of workers.
func NewService(fsmgr FilesystemManager, newHasher HasherFactory, logger Logger, clock Clock, idgen IDGenerator, hostID string, workers int) *Service {
	if workers < 1 {
		workers = 1
	}
	return &Service{
		fsmgr:     fsmgr,
		newHasher: newHasher,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		hostID:    hostID,
		workers:   workers,
	}
}

// walkItem pairs a candidate path with its walk-order index so concurrent
// results can be merged back into yield order.
type walkItem struct {
	idx  int
	path *Path
	err  error
}

// fileOutcome is the result of processing one walked path: either a record
// or a skip, never both.
type fileOutcome struct {
	record *FileRecord
	skip   *SkipEntry
}

// Capture walks the given roots and produces a snapshot.
//
// Per-file failures (vanished files, permission errors, read errors) are
// recorded as skip entries and never abort the run. A missing or unreadable
// root, an unsupported algorithm, or cancellation is fatal.
func (s *Service) Capture(ctx context.Context, rawRoots []string, ignore IgnorePredicate, opts CaptureOptions) (*Snapshot, error) {
	if len(rawRoots) == 0 {
		return nil, NewConfigError("no audit roots specified")
	}

	// Validate the algorithm up front so a bad name fails before any walking.
	if opts.Algorithm != "" {
		if _, err := s.newHasher(opts.Algorithm); err != nil {
			return nil, err
		}
	}

	roots := make([]*Path, 0, len(rawRoots))
	resolved := make([]string, 0, len(rawRoots))
	for _, raw := range rawRoots {
		p, err := s.fsmgr.Resolve(raw)
		if err != nil {
			return nil, fmt.Errorf("resolving root %s: %w", raw, err)
		}
		roots = append(roots, p)
		resolved = append(resolved, p.String())
	}
	opts.Roots = resolved

	outcomes, err := s.processRoots(ctx, roots, ignore, opts)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		ID:        s.idgen.New(),
		HostID:    s.hostID,
		CreatedAt: s.clock.Now(),
		Options:   opts,
	}
	for _, out := range outcomes {
		switch {
		case out.record != nil:
			snap.Records = append(snap.Records, *out.record)
		case out.skip != nil:
			snap.Skips = append(snap.Skips, *out.skip)
			s.logger.Warn("file skipped", "path", out.skip.Path, "reason", out.skip.Reason)
		}
	}

	s.logger.Info("capture complete",
		"snapshot", snap.ID, "records", len(snap.Records), "skips", len(snap.Skips))
	return snap, nil
}

// processRoots runs the walk → extract → hash pipeline and returns outcomes
// in walk order.
func (s *Service) processRoots(ctx context.Context, roots []*Path, ignore IgnorePredicate, opts CaptureOptions) ([]fileOutcome, error) {
	if s.workers < 2 {
		return s.processSequential(ctx, roots, ignore, opts)
	}
	return s.processConcurrent(ctx, roots, ignore, opts)
}

func (s *Service) processSequential(ctx context.Context, roots []*Path, ignore IgnorePredicate, opts CaptureOptions) ([]fileOutcome, error) {
	var outcomes []fileOutcome
	var fatal error

	for _, root := range roots {
		err := s.fsmgr.WalkFiles(ctx, root, opts.Recursive, ignore, func(p *Path, walkErr error) error {
			out, err := s.processOne(ctx, p, walkErr, opts.Algorithm)
			if err != nil {
				fatal = err
				return err
			}
			outcomes = append(outcomes, out)
			return nil
		})
		if fatal != nil {
			return nil, fatal
		}
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root.String(), err)
		}
	}
	return outcomes, nil
}

// processConcurrent fans walked paths out to a bounded worker pool. Each file
// is an independent, side-effect-free read; outcomes are merged back into
// walk order before the snapshot is assembled.
func (s *Service) processConcurrent(ctx context.Context, roots []*Path, ignore IgnorePredicate, opts CaptureOptions) ([]fileOutcome, error) {
	items := make(chan walkItem)

	var mu sync.Mutex
	results := make(map[int]fileOutcome)
	var workerErr error

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range items {
				out, err := s.processOne(ctx, it.path, it.err, opts.Algorithm)
				mu.Lock()
				if err != nil && workerErr == nil {
					workerErr = err
				}
				results[it.idx] = out
				mu.Unlock()
			}
		}()
	}

	next := 0
	var walkErr error
	for _, root := range roots {
		walkErr = s.fsmgr.WalkFiles(ctx, root, opts.Recursive, ignore, func(p *Path, entryErr error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case items <- walkItem{idx: next, path: p, err: entryErr}:
				next++
				return nil
			}
		})
		if walkErr != nil {
			walkErr = fmt.Errorf("walking %s: %w", root.String(), walkErr)
			break
		}
	}
	close(items)
	wg.Wait()

	if walkErr != nil {
		return nil, walkErr
	}
	if workerErr != nil {
		return nil, workerErr
	}

	outcomes := make([]fileOutcome, next)
	for idx, out := range results {
		outcomes[idx] = out
	}
	return outcomes, nil
}

// processOne extracts metadata and optionally hashes a single file. Per-file
// failures are converted to a skip outcome; only cancellation is returned as
// an error so a canceled record is dropped rather than recorded half-built.
func (s *Service) processOne(ctx context.Context, path *Path, walkErr error, algorithm string) (fileOutcome, error) {
	if walkErr != nil {
		return s.skip(path, walkErr), nil
	}
	if err := ctx.Err(); err != nil {
		return fileOutcome{}, err
	}

	record, err := s.fsmgr.ExtractRecord(path)
	if err != nil {
		return s.skip(path, err), nil
	}

	if algorithm != "" {
		digest, err := s.hashFile(ctx, path, algorithm)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return fileOutcome{}, err
			}
			return s.skip(path, err), nil
		}
		record.Hash = digest
		record.Algorithm = algorithm
	}

	s.logger.Debug("file audited", "path", record.Path, "size", record.Size)
	return fileOutcome{record: record}, nil
}

func (s *Service) hashFile(ctx context.Context, path *Path, algorithm string) (string, error) {
	hasher, err := s.newHasher(algorithm)
	if err != nil {
		return "", err
	}

	r, err := s.fsmgr.Open(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	return hasher.Sum(ctx, r)
}

func (s *Service) skip(path *Path, cause error) fileOutcome {
	classified := classifyFileError(path.String(), cause)
	return fileOutcome{skip: &SkipEntry{
		Path:   path.String(),
		Reason: classified.Error(),
	}}
}
