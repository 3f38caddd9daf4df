package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/andpalmier/nestprog/pkg/progress"
	"github.com/cespare/xxhash/v2"
	"github.com/panjf2000/ants/v2"
)

const readBufferSize = 64 * 1024

var (
	// ErrUnknownAlgorithm is returned by New for an unsupported algorithm.
	ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")

	// ErrStopped is returned by Run when the tracker asked to stop.
	ErrStopped = errors.New("stopped by progress observer")
)

var algorithms = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha1":   sha1.New,
	"md5":    md5.New,
	"xxh64":  func() hash.Hash { return xxhash.New() },
}

// Config configures the checksumming process
type Config struct {
	Workers   int
	Algorithm string
	Logger    *slog.Logger
}

// Result represents the outcome of a single file
type Result struct {
	File  File
	Index int
	Sum   string
	Error error
}

// Checksummer hashes files using a worker pool
type Checksummer struct {
	config  Config
	newHash func() hash.Hash
	logger  *slog.Logger
}

// New creates a new Checksummer with the given configuration
func New(cfg Config) (*Checksummer, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "sha256"
	}
	newHash, ok := algorithms[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Checksummer{
		config:  cfg,
		newHash: newHash,
		logger:  logger.With("component", "checksum"),
	}, nil
}

// event is sent by workers to the coordinating goroutine.
// Exactly one of read and result is set.
type event struct {
	read   int64
	result *Result
}

// Run hashes all files concurrently and steps the tracker's current
// portion by the number of bytes read. The tracker must be initialized
// and is only touched from the calling goroutine.
//
// Run stops early when ctx is done or when a step reports that the
// tracker should stop; it then returns the results gathered so far with
// the context error or ErrStopped.
func (c *Checksummer) Run(ctx context.Context, tracker *progress.Tracker, files []File) ([]Result, error) {
	if len(files) == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(c.config.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan event, c.config.Workers*4)

	// Submit blocks while the pool is busy, so it cannot share the
	// goroutine that drains events.
	var wg sync.WaitGroup
	go func() {
		defer func() {
			wg.Wait()
			close(events)
		}()
		for i, f := range files {
			if runCtx.Err() != nil {
				return
			}
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				c.worker(runCtx, f, i, events)
			}); err != nil {
				wg.Done()
				events <- event{result: &Result{File: f, Index: i, Error: err}}
			}
		}
	}()

	results := make([]Result, 0, len(files))
	var failures []error
	stopped := false

	for ev := range events {
		if !stopped && ctx.Err() != nil {
			tracker.SetStop()
			stopped = true
			cancel()
		}

		if ev.result != nil {
			results = append(results, *ev.result)
			if ev.result.Error != nil && !errors.Is(ev.result.Error, context.Canceled) {
				c.logger.Warn("checksum failed", "path", ev.result.File.Path, "err", ev.result.Error)
				failures = append(failures, ev.result.Error)
			} else if ev.result.Error == nil {
				c.logger.Debug("checksum done", "path", ev.result.File.Path, "sum", ev.result.Sum)
			}
			continue
		}

		if !stopped && !tracker.Step(ev.read, progress.Accumulate) {
			c.logger.Info("progress observer asked to stop")
			stopped = true
			cancel()
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if stopped {
		return results, ErrStopped
	}
	if len(failures) > 0 {
		return results, fmt.Errorf("%d of %d checksums failed: %w",
			len(failures), len(files), errors.Join(failures...))
	}
	return results, nil
}

// worker hashes one file, reporting bytes as they are read.
func (c *Checksummer) worker(ctx context.Context, f File, index int, events chan<- event) {
	sum, err := c.hashFile(ctx, f.Path, events)
	events <- event{result: &Result{File: f, Index: index, Sum: sum, Error: err}}
}

func (c *Checksummer) hashFile(ctx context.Context, path string, events chan<- event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	h := c.newHash()
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := file.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			events <- event{read: int64(n)}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, readErr)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
