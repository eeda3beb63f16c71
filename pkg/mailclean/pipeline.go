package mailclean

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"github.com/jmylchreest/mailrefyne/internal/logger"
)

// DefaultBatchSize is the number of messages read and written per batch.
const DefaultBatchSize = 1000

// Source yields raw messages in batches.
type Source interface {
	// Count returns the number of messages Each will yield.
	Count(ctx context.Context) (int, error)
	// Each calls fn with consecutive batches of at most batchSize messages.
	// It stops at the first error fn returns.
	Each(ctx context.Context, batchSize int, fn func([]RawMessage) error) error
}

// Sink receives cleaned messages.
type Sink interface {
	UpsertCleaned(ctx context.Context, msgs []CleanedMessage) error
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// Workers bounds concurrent cleaning. Zero means GOMAXPROCS.
	Workers int
	// BatchSize is the number of messages per batch. Zero means
	// DefaultBatchSize.
	BatchSize int

	// BuildFingerprints runs the corpus fingerprint pass before cleaning.
	BuildFingerprints bool
	// Fingerprints is a previously built set. It is used when
	// BuildFingerprints is false.
	Fingerprints *FingerprintSet
	// RequireFingerprints makes a missing or failed fingerprint set a
	// fatal error instead of a degraded run.
	RequireFingerprints bool

	// OnFingerprints is called with the frozen set after a build pass.
	OnFingerprints func(*FingerprintSet)
	// OnProgress is called after each cleaned batch.
	OnProgress func(done, total int)
}

// Pipeline cleans a whole corpus: an optional fingerprint pass followed by
// batched, concurrent cleaning.
type Pipeline struct {
	config *Config
	opts   PipelineOptions
}

// NewPipeline validates cfg and opts and creates a pipeline.
func NewPipeline(cfg *Config, opts PipelineOptions) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.RequireFingerprints && !opts.BuildFingerprints && opts.Fingerprints == nil {
		return nil, ErrFingerprintsRequired
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Pipeline{config: cfg.Clone(), opts: opts}, nil
}

// Run cleans every message of src and writes the results to sink in batch
// order. Per-message problems become warnings; Run only fails on source,
// sink or context errors.
func (p *Pipeline) Run(ctx context.Context, src Source, sink Sink) (*Summary, error) {
	start := time.Now()

	total, err := src.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting messages: %w", err)
	}

	base, err := New(p.config)
	if err != nil {
		return nil, err
	}

	wp := workerpool.New(p.opts.Workers)
	defer wp.StopWait()

	fps, err := p.fingerprints(ctx, wp, base, src, total)
	if err != nil {
		return nil, err
	}

	threshold := p.config.Fingerprint.EffectiveThreshold(total)
	c, err := New(p.config, WithThreshold(threshold))
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Level:                p.config.Level,
		Fingerprints:         fps.Len(),
		FrequentFingerprints: fps.Frequent(threshold),
	}

	logger.Info("cleaning messages",
		"total", total,
		"level", p.config.Level,
		"workers", p.opts.Workers,
		"batch_size", p.opts.BatchSize,
		"fingerprints", fps.Len(),
		"threshold", threshold,
	)

	done := 0
	err = src.Each(ctx, p.opts.BatchSize, func(batch []RawMessage) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		cleaned := cleanBatch(wp, c, batch, fps)
		if err := sink.UpsertCleaned(ctx, cleaned); err != nil {
			return fmt.Errorf("writing cleaned batch: %w", err)
		}

		for _, m := range cleaned {
			summary.Add(m)
			for _, w := range m.Warnings {
				logger.Debug("cleaning warning", "message_id", m.ID, "warning", w.String())
			}
		}

		done += len(batch)
		logger.Debug("batch cleaned", "done", done, "total", total)
		if p.opts.OnProgress != nil {
			p.opts.OnProgress(done, total)
		}
		return nil
	})
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, err
	}

	logger.Info("cleaning complete", summary.LogAttrs()...)
	return summary, nil
}

// fingerprints returns the set the clean phase uses: built now, supplied,
// or nil.
func (p *Pipeline) fingerprints(ctx context.Context, wp *workerpool.WorkerPool, c *Cleaner, src Source, total int) (*FingerprintSet, error) {
	if !p.opts.BuildFingerprints {
		return p.opts.Fingerprints, nil
	}
	if !c.stages.RemoveFingerprints {
		logger.Info("skipping fingerprint pass, level does not use fingerprints", "level", p.config.Level)
		return nil, nil
	}

	logger.Info("building corpus fingerprints", "total", total)
	builder := NewFingerprintBuilder(p.config.Fingerprint)

	var (
		mu       sync.Mutex
		firstErr error
	)
	err := src.Each(ctx, p.opts.BatchSize, func(batch []RawMessage) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var wg sync.WaitGroup
		for _, msg := range batch {
			msg := msg
			wg.Add(1)
			wp.Submit(func() {
				defer wg.Done()
				if err := builder.Add(msg.ID, c.FingerprintText(msg)); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			})
		}
		wg.Wait()

		mu.Lock()
		defer mu.Unlock()
		return firstErr
	})

	set := builder.Freeze()

	switch {
	case err == nil:
	case errors.Is(err, ErrCorpusOversize) && !p.opts.RequireFingerprints:
		logger.Warn("fingerprint pass abandoned, cleaning without corpus fingerprints",
			"error", err,
			"max_entries", p.config.Fingerprint.MaxEntries,
		)
		return nil, nil
	default:
		return nil, fmt.Errorf("building fingerprints: %w", err)
	}

	logger.Info("fingerprints built",
		"messages", set.Messages(),
		"distinct", set.Len(),
		"frequent", set.Frequent(p.config.Fingerprint.EffectiveThreshold(total)),
	)
	if p.opts.OnFingerprints != nil {
		p.opts.OnFingerprints(set)
	}
	return set, nil
}

// cleanBatch cleans batch on wp, keeping input order.
func cleanBatch(wp *workerpool.WorkerPool, c *Cleaner, batch []RawMessage, fps *FingerprintSet) []CleanedMessage {
	out := make([]CleanedMessage, len(batch))
	var wg sync.WaitGroup
	for i := range batch {
		i := i
		wg.Add(1)
		wp.Submit(func() {
			defer wg.Done()
			out[i] = c.Clean(batch[i], fps)
		})
	}
	wg.Wait()
	return out
}

// CleanAll cleans msgs in memory and returns them in input order with the
// run summary.
func CleanAll(ctx context.Context, cfg *Config, opts PipelineOptions, msgs []RawMessage) ([]CleanedMessage, *Summary, error) {
	p, err := NewPipeline(cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	sink := &collectSink{}
	summary, err := p.Run(ctx, SliceSource(msgs), sink)
	return sink.msgs, summary, err
}

// SliceSource is a Source over an in-memory slice.
type SliceSource []RawMessage

// Count returns the number of messages.
func (s SliceSource) Count(context.Context) (int, error) {
	return len(s), nil
}

// Each yields s in batches.
func (s SliceSource) Each(ctx context.Context, batchSize int, fn func([]RawMessage) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for start := 0; start < len(s); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+batchSize, len(s))
		if err := fn(s[start:end]); err != nil {
			return err
		}
	}
	return nil
}

type collectSink struct {
	msgs []CleanedMessage
}

func (c *collectSink) UpsertCleaned(_ context.Context, msgs []CleanedMessage) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}
