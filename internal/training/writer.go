package training

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

// ExportResult describes one written dataset.
type ExportResult struct {
	Adapter string `json:"adapter"`
	Path    string `json:"path"`
	Count   int    `json:"count"`
}

// FileName returns the dataset file name for an adapter.
func FileName(adapter string, compress bool) string {
	if compress {
		return adapter + ".jsonl.zst"
	}
	return adapter + ".jsonl"
}

// ExportForAdapter writes the adapter's dataset into outputDir.
func (e *Exporter) ExportForAdapter(ctx context.Context, adapter, outputDir string) (ExportResult, error) {
	if _, ok := minExamples[adapter]; !ok {
		return ExportResult{}, fmt.Errorf("%w: %s", ErrUnknownAdapter, adapter)
	}
	if err := ctx.Err(); err != nil {
		return ExportResult{}, err
	}

	raw, err := e.RawExamples(e.opts.MinAbsScore, e.opts.Limit)
	if err != nil {
		return ExportResult{}, err
	}

	var records []any
	switch adapter {
	case AdapterQualityScorer:
		records = toAny(QualityScorerExamples(raw))
	case AdapterPromptEnhancer:
		records = toAny(PromptEnhancerExamples(raw))
	case AdapterStyleRecommender:
		records = toAny(StyleRecommenderExamples(raw))
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return ExportResult{}, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, FileName(adapter, e.opts.Compress))

	if err := writeDataset(path, records, e.opts.Compress); err != nil {
		return ExportResult{}, err
	}

	e.logger.Info("exported training data",
		zap.String("adapter", adapter),
		zap.String("path", path),
		zap.Int("count", len(records)))
	return ExportResult{Adapter: adapter, Path: path, Count: len(records)}, nil
}

// ExportAll writes every adapter's dataset concurrently. Results are in
// Adapters order.
func (e *Exporter) ExportAll(ctx context.Context, outputDir string) ([]ExportResult, error) {
	results := make([]ExportResult, len(Adapters))
	g, ctx := errgroup.WithContext(ctx)
	for i, adapter := range Adapters {
		g.Go(func() error {
			res, err := e.ExportForAdapter(ctx, adapter, outputDir)
			if err != nil {
				return fmt.Errorf("%s: %w", adapter, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func toAny[T any](records []T) []any {
	out := make([]any, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out
}

// writeDataset writes one JSON object per line, optionally zstd
// compressed, while holding an exclusive lock on path.lock. Records go to a
// temp file that replaces path only once it is complete, so a failed export
// leaves the previous dataset in place.
func writeDataset(path string, records []any, compress bool) error {
	lockFile, err := acquireFileLock(path)
	if err != nil {
		return fmt.Errorf("failed to acquire file lock: %w", err)
	}
	defer releaseFileLock(lockFile)

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	var w io.Writer = tmp
	var encoder *zstd.Encoder
	if compress {
		encoder, err = zstd.NewWriter(tmp)
		if err != nil {
			return fail(fmt.Errorf("create zstd encoder: %w", err))
		}
		w = encoder
	}

	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			if encoder != nil {
				encoder.Close()
			}
			return fail(fmt.Errorf("failed to encode record: %w", err))
		}
	}

	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return fail(fmt.Errorf("finalize compression: %w", err))
		}
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync dataset file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write dataset file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace dataset file: %w", err)
	}
	return nil
}

// acquireFileLock takes a non-blocking exclusive lock next to path.
func acquireFileLock(path string) (*os.File, error) {
	lockFile, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("failed to acquire lock (another export in progress?): %w", err)
	}
	return lockFile, nil
}

// releaseFileLock releases the lock and removes the lock file.
func releaseFileLock(lockFile *os.File) error {
	if lockFile == nil {
		return nil
	}
	lockPath := lockFile.Name()
	_ = unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)
	lockFile.Close()
	return os.Remove(lockPath)
}
