package board

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"boardtrace/internal/trace"
)

// SentinelAssembledAt marks a row that was looked up against the trace store
// and confirmed absent, as opposed to never having been looked up.
var SentinelAssembledAt = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// Change records which fields FillPolicy assigned on a row.
type Change struct {
	AssembledAt bool
	Lot         bool
	BoardType   bool
	Defaulted   bool // AssembledAt was set to the sentinel
}

func (c Change) Any() bool {
	return c.AssembledAt || c.Lot || c.BoardType
}

// FillPolicy merges resolved trace data into operational rows. Fields that
// already hold a value are never replaced.
type FillPolicy struct {
	Targets            Targets
	DefaultAssembledAt time.Time
	Logger             *zap.Logger
}

func NewFillPolicy(targets Targets, logger *zap.Logger) FillPolicy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return FillPolicy{
		Targets:            targets,
		DefaultAssembledAt: SentinelAssembledAt,
		Logger:             logger,
	}
}

// Apply computes the post-merge row for rec given the resolutions of its top
// and bottom barcodes (nil = absent from the trace store). The top
// resolution wins whenever both exist; a disagreement is logged but never
// merged or averaged.
func (p FillPolicy) Apply(rec Record, top, bottom *trace.Record) (Record, Change) {
	var ch Change

	effective := top
	if effective == nil {
		effective = bottom
	}
	if top != nil && bottom != nil && resolutionsDisagree(*top, *bottom) {
		// Likely a data-quality problem on the board row itself; surfaced
		// here, resolved in favor of top.
		p.Logger.Warn("Top and bottom barcode resolutions disagree, keeping top",
			zap.Int64("row_id", rec.ID),
			zap.String("top_barcode", top.Barcode),
			zap.String("bottom_barcode", bottom.Barcode),
			zap.String("top_lot", top.Lot),
			zap.String("bottom_lot", bottom.Lot))
	}

	if p.Targets.AssembledAt && rec.AssembledAt == nil {
		if at := firstAssembledAt(top, bottom); at != nil {
			t := *at
			rec.AssembledAt = &t
			ch.AssembledAt = true
		} else {
			t := p.DefaultAssembledAt
			rec.AssembledAt = &t
			ch.AssembledAt = true
			ch.Defaulted = true
		}
	}

	if p.Targets.Lot && strings.TrimSpace(rec.Lot) == "" && effective != nil && effective.Lot != "" {
		rec.Lot = effective.Lot
		ch.Lot = true
	}

	if p.Targets.BoardType && strings.TrimSpace(rec.BoardType) == "" && effective != nil {
		if suffix := BoardTypeSuffix(effective.BoardType); suffix != "" {
			rec.BoardType = suffix
			ch.BoardType = true
		}
	}

	return rec, ch
}

// firstAssembledAt picks the first concrete assembly timestamp, preferring
// the top resolution.
func firstAssembledAt(top, bottom *trace.Record) *time.Time {
	if top != nil && top.AssembledAt() != nil {
		return top.AssembledAt()
	}
	if bottom != nil && bottom.AssembledAt() != nil {
		return bottom.AssembledAt()
	}
	return nil
}

func resolutionsDisagree(a, b trace.Record) bool {
	return a.Lot != b.Lot || a.BoardType != b.BoardType
}

// BoardTypeSuffix strips the location/vendor prefix the trace store emits in
// board type names, e.g. `Livetec\LI008.001_V01` -> `LI008.001_V01`. Values
// without a separator pass through untouched.
func BoardTypeSuffix(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, `\`); i >= 0 {
		return s[i+1:]
	}
	return s
}
