package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"boardtrace/internal/trace"
)

func tptr(t time.Time) *time.Time { return &t }

var assembled = time.Date(2025, time.June, 24, 12, 0, 0, 0, time.UTC)

func TestFillPolicy_FillsEmptyFields(t *testing.T) {
	p := NewFillPolicy(AllTargets(), nil)
	rec := Record{ID: 1, TopBarcode: "CM123"}
	top := &trace.Record{Barcode: "CM123", EndTime: tptr(assembled), Lot: "FA-100", BoardType: `Livetec\LI008.001_V01`}

	got, ch := p.Apply(rec, top, nil)

	require.True(t, ch.Any())
	assert.True(t, ch.AssembledAt)
	assert.True(t, ch.Lot)
	assert.True(t, ch.BoardType)
	assert.False(t, ch.Defaulted)
	assert.Equal(t, assembled, *got.AssembledAt)
	assert.Equal(t, "FA-100", got.Lot)
	assert.Equal(t, "LI008.001_V01", got.BoardType, "vendor prefix must be stripped")
}

func TestFillPolicy_NeverOverwrites(t *testing.T) {
	p := NewFillPolicy(AllTargets(), nil)
	existing := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	rec := Record{ID: 1, AssembledAt: &existing, Lot: "KEEP-LOT", BoardType: "KEEP-TYPE"}
	top := &trace.Record{EndTime: tptr(assembled), Lot: "NEW-LOT", BoardType: "NEW-TYPE"}

	got, ch := p.Apply(rec, top, nil)

	assert.False(t, ch.Any())
	assert.Equal(t, existing, *got.AssembledAt)
	assert.Equal(t, "KEEP-LOT", got.Lot)
	assert.Equal(t, "KEEP-TYPE", got.BoardType)
}

func TestFillPolicy_SentinelWhenUnresolved(t *testing.T) {
	p := NewFillPolicy(AllTargets(), nil)
	rec := Record{ID: 1, TopBarcode: "CM999"}

	got, ch := p.Apply(rec, nil, nil)

	require.True(t, ch.AssembledAt)
	assert.True(t, ch.Defaulted)
	assert.Equal(t, SentinelAssembledAt, *got.AssembledAt)
	assert.False(t, ch.Lot)
	assert.False(t, ch.BoardType)
}

func TestFillPolicy_SentinelWhenResolvedWithoutTimestamp(t *testing.T) {
	p := NewFillPolicy(AllTargets(), nil)
	rec := Record{ID: 1}
	top := &trace.Record{Barcode: "CM1", Lot: "FA-1"}

	got, ch := p.Apply(rec, top, nil)

	assert.True(t, ch.Defaulted)
	assert.Equal(t, SentinelAssembledAt, *got.AssembledAt)
	assert.Equal(t, "FA-1", got.Lot)
}

func TestFillPolicy_TopResolutionWins(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewFillPolicy(AllTargets(), zap.New(core))
	rec := Record{ID: 7}
	top := &trace.Record{Barcode: "CM1", EndTime: tptr(assembled), Lot: "TOP-LOT", BoardType: "TOP-TYPE"}
	bottom := &trace.Record{Barcode: "CM2", EndTime: tptr(assembled.Add(time.Hour)), Lot: "BOT-LOT", BoardType: "BOT-TYPE"}

	got, _ := p.Apply(rec, top, bottom)

	assert.Equal(t, "TOP-LOT", got.Lot)
	assert.Equal(t, "TOP-TYPE", got.BoardType)
	assert.Equal(t, assembled, *got.AssembledAt)

	// The disagreement is surfaced as a warning, not an error.
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "disagree")
}

func TestFillPolicy_BottomTimestampWhenTopHasNone(t *testing.T) {
	p := NewFillPolicy(Targets{AssembledAt: true}, nil)
	rec := Record{ID: 1}
	top := &trace.Record{Barcode: "CM1"}
	bottom := &trace.Record{Barcode: "CM2", EndTime: tptr(assembled)}

	got, ch := p.Apply(rec, top, bottom)

	assert.True(t, ch.AssembledAt)
	assert.False(t, ch.Defaulted)
	assert.Equal(t, assembled, *got.AssembledAt)
}

func TestFillPolicy_RespectsTargets(t *testing.T) {
	p := NewFillPolicy(Targets{Lot: true, BoardType: true}, nil)
	rec := Record{ID: 1}
	top := &trace.Record{EndTime: tptr(assembled), Lot: "FA-1", BoardType: "T-1"}

	got, ch := p.Apply(rec, top, nil)

	assert.Nil(t, got.AssembledAt, "assembled-at is not targeted and must stay untouched")
	assert.False(t, ch.AssembledAt)
	assert.Equal(t, "FA-1", got.Lot)
	assert.Equal(t, "T-1", got.BoardType)
}

func TestFillPolicy_UnchangedWithoutData(t *testing.T) {
	p := NewFillPolicy(Targets{Lot: true, BoardType: true}, nil)
	rec := Record{ID: 1, TopBarcode: "CM1"}

	got, ch := p.Apply(rec, nil, nil)

	assert.False(t, ch.Any())
	assert.Equal(t, rec, got)
}

func TestBoardTypeSuffix(t *testing.T) {
	assert.Equal(t, "LI008.001_V01", BoardTypeSuffix(`Livetec\LI008.001_V01`))
	assert.Equal(t, `LI008.001_V01\rev2`, BoardTypeSuffix(`Livetec\LI008.001_V01\rev2`), "only the first separator is stripped")
	assert.Equal(t, "PLAIN", BoardTypeSuffix("PLAIN"))
	assert.Equal(t, "", BoardTypeSuffix("  "))
}
