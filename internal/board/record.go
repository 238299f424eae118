// Package board models the operational circuit_boards table and the merge
// and uniqueness rules applied to it.
package board

import "time"

// Record is one board row in the operational store. String fields hold ""
// for NULL; timestamp fields use nil.
type Record struct {
	ID            int64
	TopBarcode    string // board_top
	BottomBarcode string // board_bottom
	AssembledAt   *time.Time // board_assembled_on
	Lot           string     // board_fa_nummer
	BoardType     string     // board_artikel_nummer
	RecordedAt    *time.Time // board_erfasst_am
}

// Targets selects which descriptive fields a backfill pass is allowed to
// fill. The engine is parameterized instead of existing once per field.
type Targets struct {
	AssembledAt bool
	Lot         bool
	BoardType   bool
}

// AllTargets enables every backfillable field.
func AllTargets() Targets {
	return Targets{AssembledAt: true, Lot: true, BoardType: true}
}

func (t Targets) Any() bool {
	return t.AssembledAt || t.Lot || t.BoardType
}

// Update carries the changed fields of one row for the write-back phase.
// Nil pointers mean "leave the column alone".
type Update struct {
	ID          int64
	AssembledAt *time.Time
	Lot         *string
	BoardType   *string
}
