package trace

import (
	"context"
	"time"

	"github.com/cheggaaa/pb/v3"
	"go.uber.org/zap"
)

const (
	// DefaultBatchSize bounds the IN-list sent per trace query.
	DefaultBatchSize = 200
	// DefaultPacing is the sleep between batches. The trace store is shared
	// and externally owned with no backpressure signal of its own; this
	// delay is the only throttle, do not remove or parallelize it without a
	// replacement.
	DefaultPacing = 250 * time.Millisecond
)

// Resolver runs deduplicated, batched, paced lookups against a trace Store.
type Resolver struct {
	store        Store
	batchSize    int
	pacing       time.Duration
	logger       *zap.Logger
	showProgress bool
	onBatch      func(time.Duration)
}

// ResolverOptions configures a Resolver. Zero values fall back to the
// defaults above.
type ResolverOptions struct {
	BatchSize    int
	Pacing       time.Duration
	Logger       *zap.Logger
	ShowProgress bool
	// OnBatch, when set, observes the duration of each store query.
	OnBatch func(time.Duration)
}

func NewResolver(store Store, opts ResolverOptions) *Resolver {
	if opts.BatchSize < 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Pacing <= 0 {
		opts.Pacing = DefaultPacing
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Resolver{
		store:        store,
		batchSize:    opts.BatchSize,
		pacing:       opts.Pacing,
		logger:       opts.Logger,
		showProgress: opts.ShowProgress,
		onBatch:      opts.OnBatch,
	}
}

// Resolve looks up every candidate and returns the resolved records keyed by
// barcode. Candidates absent from the trace store are missing from the map,
// which keeps "not found" distinguishable from "found with null fields".
// Any single batch failure fails the whole resolution; a partial result is
// never synthesized.
func (r *Resolver) Resolve(ctx context.Context, candidates []string) (map[string]Record, error) {
	out := make(map[string]Record)

	uniq := dedupe(candidates)
	if len(uniq) == 0 {
		return out, nil
	}

	batches := chunk(uniq, r.batchSize)

	r.logger.Info("Resolving barcodes against trace store",
		zap.Int("candidates", len(uniq)),
		zap.Int("batches", len(batches)),
		zap.Int("batch_size", r.batchSize),
		zap.Duration("pacing", r.pacing))

	var bar *pb.ProgressBar
	if r.showProgress {
		bar = pb.StartNew(len(batches))
		defer bar.Finish()
	}

	for i, batch := range batches {
		started := time.Now()
		records, err := r.store.LookupBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if r.onBatch != nil {
			r.onBatch(time.Since(started))
		}
		for _, rec := range records {
			if rec.Barcode == "" {
				continue
			}
			// The store already ranks per barcode, but the same barcode can
			// surface from more than one batch. Keep the latest record.
			if prev, seen := out[rec.Barcode]; !seen || rec.Later(prev) {
				out[rec.Barcode] = rec
			}
		}
		if bar != nil {
			bar.Increment()
		}

		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.pacing):
			}
		}
	}

	r.logger.Info("Trace resolution complete",
		zap.Int("requested", len(uniq)),
		zap.Int("resolved", len(out)))
	return out, nil
}

// dedupe drops empty strings and duplicates while preserving first-seen
// order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func chunk(in []string, size int) [][]string {
	var out [][]string
	for len(in) > size {
		out = append(out, in[:size])
		in = in[size:]
	}
	if len(in) > 0 {
		out = append(out, in)
	}
	return out
}
