// Package backfill drives one reconciliation pass over the operational
// store: load rows needing backfill, resolve their barcodes against the
// trace store, merge the results and commit everything as one transaction.
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"boardtrace/internal/barcode"
	"boardtrace/internal/board"
	"boardtrace/internal/dateparse"
	"boardtrace/internal/metrics"
	"boardtrace/internal/trace"
)

// State is the phase a pass is currently in.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateResolving  State = "resolving"
	StateMerging    State = "merging"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Summary reports the outcome of a completed pass. A failed pass reports
// zero updates: the transaction was rolled back as a whole.
type Summary struct {
	Loaded           int
	Updated          int
	Defaulted        int // assembled-at set to the 1900-01-01 sentinel
	SkippedNoBarcode int
	SkippedNoTrace   int
}

// Options configures an Orchestrator.
type Options struct {
	Targets board.Targets
	// Cutoff, when set, excludes rows recorded before it. Undated rows are
	// excluded too unless IncludeUndated is set.
	Cutoff         *time.Time
	IncludeUndated bool
	Logger         *zap.Logger
	Metrics        *metrics.Collector
}

// Orchestrator runs backfill passes. A pass either commits completely or
// leaves the store untouched; passes are idempotent because untouched rows
// stay eligible for the next run.
type Orchestrator struct {
	boards   board.Store
	resolver *trace.Resolver
	policy   board.FillPolicy
	opts     Options

	state  State
	logger *zap.Logger
}

func New(boards board.Store, resolver *trace.Resolver, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if !opts.Targets.Any() {
		opts.Targets = board.AllTargets()
	}
	return &Orchestrator{
		boards:   boards,
		resolver: resolver,
		policy:   board.NewFillPolicy(opts.Targets, opts.Logger),
		opts:     opts,
		state:    StateIdle,
		logger:   opts.Logger,
	}
}

// State returns the phase reached by the last (or current) pass.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes one pass. The returned Summary is valid only when err is nil.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	passID := uuid.NewString()
	logger := o.logger.With(zap.String("pass_id", passID))
	started := time.Now()

	summary, err := o.run(ctx, logger)
	if err != nil {
		o.state = StateFailed
		if o.opts.Metrics != nil {
			o.opts.Metrics.RecordPass("failed", time.Since(started))
		}
		logger.Error("Backfill pass failed", zap.String("state", string(o.state)), zap.Error(err))
		return Summary{}, err
	}

	o.state = StateDone
	if o.opts.Metrics != nil {
		o.opts.Metrics.RecordPass("completed", time.Since(started))
		o.opts.Metrics.RecordRows("updated", summary.Updated)
		o.opts.Metrics.RecordRows("defaulted", summary.Defaulted)
		o.opts.Metrics.RecordRows("skipped_no_barcode", summary.SkippedNoBarcode)
		o.opts.Metrics.RecordRows("skipped_no_trace", summary.SkippedNoTrace)
	}
	logger.Info("Backfill pass complete",
		zap.Int("loaded", summary.Loaded),
		zap.Int("updated", summary.Updated),
		zap.Int("defaulted", summary.Defaulted),
		zap.Int("skipped_no_barcode", summary.SkippedNoBarcode),
		zap.Int("skipped_no_trace", summary.SkippedNoTrace),
		zap.Duration("duration", time.Since(started)))
	return summary, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *zap.Logger) (Summary, error) {
	var summary Summary

	// Loading
	o.transition(logger, StateLoading)
	rows, err := o.boards.SelectNeedingBackfill(ctx, o.opts.Targets)
	if err != nil {
		return summary, fmt.Errorf("loading: %w", err)
	}
	rows = o.filterByCutoff(logger, rows)
	summary.Loaded = len(rows)
	logger.Info("Rows needing backfill", zap.Int("rows", len(rows)))
	if len(rows) == 0 {
		return summary, nil
	}

	// Resolving: one resolver call for the whole batch amortizes the
	// pacing cost across all rows.
	o.transition(logger, StateResolving)
	type rowCandidates struct {
		top, bottom []string
	}
	candidates := make(map[int64]rowCandidates, len(rows))
	var all []string
	for _, rec := range rows {
		rc := rowCandidates{
			top:    barcode.Candidates(rec.TopBarcode),
			bottom: barcode.Candidates(rec.BottomBarcode),
		}
		if len(rc.top) == 0 && len(rc.bottom) == 0 {
			summary.SkippedNoBarcode++
			continue
		}
		candidates[rec.ID] = rc
		all = append(all, rc.top...)
		all = append(all, rc.bottom...)
	}

	resolved, err := o.resolver.Resolve(ctx, all)
	if err != nil {
		return summary, fmt.Errorf("resolving: %w", err)
	}

	// Merging
	o.transition(logger, StateMerging)
	var updates []board.Update
	for _, rec := range rows {
		rc, ok := candidates[rec.ID]
		if !ok {
			continue
		}
		top := firstResolved(resolved, rc.top)
		bottom := firstResolved(resolved, rc.bottom)
		if top == nil && bottom == nil && !o.opts.Targets.AssembledAt {
			// Nothing resolvable and no sentinel to write.
			summary.SkippedNoTrace++
			continue
		}

		merged, change := o.policy.Apply(rec, top, bottom)
		if !change.Any() {
			continue
		}
		if change.Defaulted {
			summary.Defaulted++
		}

		u := board.Update{ID: rec.ID}
		if change.AssembledAt {
			u.AssembledAt = merged.AssembledAt
		}
		if change.Lot {
			lot := merged.Lot
			u.Lot = &lot
		}
		if change.BoardType {
			bt := merged.BoardType
			u.BoardType = &bt
		}
		updates = append(updates, u)
	}
	summary.Updated = len(updates)

	// Committing: all or nothing.
	o.transition(logger, StateCommitting)
	if err := o.boards.ApplyUpdates(ctx, updates); err != nil {
		return summary, fmt.Errorf("committing: %w", err)
	}

	return summary, nil
}

// filterByCutoff drops rows recorded before the configured cutoff. Rows
// without a coercible recorded-at timestamp are dropped too unless the pass
// is configured to include them.
func (o *Orchestrator) filterByCutoff(logger *zap.Logger, rows []board.Record) []board.Record {
	if o.opts.Cutoff == nil {
		return rows
	}
	cutoff := *o.opts.Cutoff

	kept := rows[:0:0]
	for _, rec := range rows {
		at, ok := dateparse.Coerce(rec.RecordedAt)
		if !ok {
			if o.opts.IncludeUndated {
				kept = append(kept, rec)
			}
			continue
		}
		if !at.Before(cutoff) {
			kept = append(kept, rec)
		}
	}

	logger.Info("Cutoff filter applied",
		zap.Time("cutoff", cutoff),
		zap.Int("before", len(rows)),
		zap.Int("kept", len(kept)),
		zap.Bool("include_undated", o.opts.IncludeUndated))
	return kept
}

func (o *Orchestrator) transition(logger *zap.Logger, next State) {
	o.state = next
	logger.Debug("Pass state", zap.String("state", string(next)))
}

// firstResolved returns the record of the first candidate present in the
// resolution map; candidate order encodes lookup priority.
func firstResolved(resolved map[string]trace.Record, candidates []string) *trace.Record {
	for _, c := range candidates {
		if rec, ok := resolved[c]; ok {
			return &rec
		}
	}
	return nil
}
