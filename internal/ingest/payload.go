// Package ingest turns workbook or CSV exports into operational store rows.
// The core engine never sees spreadsheets; this adapter maps positional
// columns to named fields and hands cleaned payloads to the store.
package ingest

import (
	"sort"
	"strings"

	"boardtrace/internal/dateparse"
)

// Mapping binds one target column to the positions it may occupy in the
// export. Some exports carry a blank column in the middle (a double tab), so
// later positions act as fallbacks: the first position holding a non-empty
// value wins.
type Mapping struct {
	Column    string
	Positions []int
}

// Profile describes one export shape.
type Profile struct {
	Name           string
	Table          string
	StartRow       int // 1-based first data row in the sheet
	Mappings       []Mapping
	DatetimeFields map[string]bool
	// Truncate wipes the target table before upload.
	Truncate bool
}

// BoardsProfile maps the full board inspection sheet onto circuit_boards.
var BoardsProfile = Profile{
	Name:     "boards",
	Table:    "circuit_boards",
	StartRow: 7,
	Truncate: true,
	Mappings: []Mapping{
		{Column: "board_erfasst_am", Positions: []int{0}},
		{Column: "board_top", Positions: []int{1}},
		{Column: "board_bottom", Positions: []int{2}},
		{Column: "board_ok", Positions: []int{3}},
		{Column: "board_fa_nummer", Positions: []int{4}},
		{Column: "board_artikel_nummer", Positions: []int{5}},
		{Column: "board_erfasst_durch", Positions: []int{6}},
		{Column: "smd_be_versatz", Positions: []int{7}},
		{Column: "smd_hoehenversatz", Positions: []int{8}},
		{Column: "smd_steht_hoch_grabstein", Positions: []int{9}},
		{Column: "smd_ocr_ocv_schlechtes_bauteil", Positions: []int{10}},
		{Column: "smd_polaritaet", Positions: []int{11}},
		{Column: "smd_upside_down_auf_dem_kopf", Positions: []int{12}},
		{Column: "smd_solder_fillet_loetstelle", Positions: []int{13}},
		{Column: "smd_kurzschluss", Positions: []int{14}},
		{Column: "smd_pad_overhang_pin_versatz", Positions: []int{15}},
		{Column: "smd_pin_coplanarity_zu_hoch", Positions: []int{16}},
		{Column: "smd_absence_bestueckt_statt_frei", Positions: []int{17}},
		{Column: "smd_bauteil_fehlt", Positions: []int{18}},
		{Column: "smd_fehlermaterial_bauteil", Positions: []int{19}},
		{Column: "smd_bauteil_defekt_gebrochen", Positions: []int{20}},
		{Column: "smdsel_tht_nicht_geloetet", Positions: []int{22}},
		{Column: "smdsel_tht_nicht_anliegend_durch_sl", Positions: []int{23}},
		{Column: "smdsel_loetfahnen", Positions: []int{24}},
		{Column: "smdsel_be_versatz", Positions: []int{25}},
		{Column: "smdsel_hoehenversatz", Positions: []int{26}},
		{Column: "smdsel_steht_hoch_grabsein", Positions: []int{27}},
		{Column: "smdsel_ocr_ocv_schlechtes_bauteil", Positions: []int{28}},
		{Column: "smdsel_polaritaet", Positions: []int{29}},
		{Column: "smdsel_upside_down_auf_dem_kopf", Positions: []int{30}},
		{Column: "smdsel_solder_fillet_loetstelle", Positions: []int{31}},
		{Column: "smdsel_kurzschluss", Positions: []int{32}},
		{Column: "smdsel_pad_overhang_pin_versatz", Positions: []int{33}},
		{Column: "smdsel_pin_coplanarity_zu_hoch", Positions: []int{34}},
		{Column: "smdsel_absence_bestueckt_statt_frei", Positions: []int{35}},
		{Column: "smdsel_bauteil_fehlt", Positions: []int{36}},
		{Column: "smdsel_fehlermaterial_bauteil", Positions: []int{37}},
		{Column: "smdsel_bauteil_defekt_gebrochen", Positions: []int{38}},
		{Column: "end_erfasst_am", Positions: []int{40}},
		{Column: "end_bestueckungsfehler_bedrahtet", Positions: []int{41}},
		{Column: "end_bestueckungsfehler_smd", Positions: []int{42}},
		{Column: "end_loetfehler_smd", Positions: []int{43}},
		{Column: "end_loetfehler_selektivloeten", Positions: []int{44}},
		{Column: "end_loetfehler_hand_bedrahtet", Positions: []int{45}},
		{Column: "end_platinenfehler", Positions: []int{46}},
		{Column: "end_bauteile", Positions: []int{47}},
		{Column: "end_mangelhafte_lagerung_verpackung", Positions: []int{48}},
		{Column: "end_fehler_bei_montage", Positions: []int{49}},
		{Column: "end_sonstige", Positions: []int{50}},
		{Column: "end_fehlerbeschreibung", Positions: []int{51}},
		{Column: "notes_smd", Positions: []int{53}},
		{Column: "notes_aoi", Positions: []int{54}},
		{Column: "notes_tht", Positions: []int{55}},
		{Column: "notes_montage", Positions: []int{56}},
		{Column: "notes_reparaturen", Positions: []int{57}},
	},
	DatetimeFields: map[string]bool{
		"board_erfasst_am": true,
		"end_erfasst_am":   true,
	},
}

// ASMProfile maps the placement machine log export onto asm_logs. Index
// fallbacks cover exports with a blank column after the lot name.
var ASMProfile = Profile{
	Name:     "asm",
	Table:    "asm_logs",
	StartRow: 2,
	Mappings: []Mapping{
		{Column: "barcode_leiterplatte", Positions: []int{0}},
		{Column: "barcode_einzelschaltung", Positions: []int{1}},
		{Column: "linienname", Positions: []int{2}},
		{Column: "losname", Positions: []int{3}},
		{Column: "leiterplatte", Positions: []int{5, 4}},
		{Column: "ruestungsname", Positions: []int{6, 5}},
		{Column: "fehlertext", Positions: []int{7, 6}},
		{Column: "startdatum", Positions: []int{8, 7}},
		{Column: "enddatum", Positions: []int{9, 8}},
	},
	DatetimeFields: map[string]bool{
		"startdatum": true,
		"enddatum":   true,
	},
}

// ProfileByName resolves a profile name from the CLI.
func ProfileByName(name string) (Profile, bool) {
	switch name {
	case BoardsProfile.Name:
		return BoardsProfile, true
	case ASMProfile.Name:
		return ASMProfile, true
	default:
		return Profile{}, false
	}
}

// Payload is one cleaned row keyed by target column. Values are nil
// (NULL), string or time.Time.
type Payload map[string]any

// pickFromRow returns the first non-empty cell among the mapped positions,
// falling back to the primary position's raw value when all are empty.
func pickFromRow(row []string, positions []int) string {
	for _, idx := range positions {
		if idx < len(row) {
			if v := strings.TrimSpace(row[idx]); v != "" {
				return v
			}
		}
	}
	if positions[0] < len(row) {
		return strings.TrimSpace(row[positions[0]])
	}
	return ""
}

// cleanValue normalizes one cell: blank becomes nil, datetime columns are
// coerced, everything else stays a trimmed string. A datetime cell that
// refuses to parse becomes nil rather than poisoning the row.
func cleanValue(p Profile, column, raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if p.DatetimeFields[column] {
		if t, ok := dateparse.Coerce(s); ok {
			return t
		}
		return nil
	}
	return s
}

// RowToPayload maps one raw sheet row into a payload.
func RowToPayload(p Profile, row []string) Payload {
	payload := make(Payload, len(p.Mappings))
	for _, m := range p.Mappings {
		payload[m.Column] = cleanValue(p, m.Column, pickFromRow(row, m.Positions))
	}

	if p.Name == BoardsProfile.Name {
		applyBoardDefaults(payload)
	}
	return payload
}

// applyBoardDefaults mirrors the conventions of the manually maintained
// sheet: imported rows are attributed to "IMPORT", barcodes are stored as
// empty strings rather than NULL, and the capture timestamp doubles as the
// recorded-on value.
func applyBoardDefaults(payload Payload) {
	if payload["board_erfasst_durch"] == nil {
		payload["board_erfasst_durch"] = "IMPORT"
	}
	if payload["board_top"] == nil {
		payload["board_top"] = ""
	}
	if payload["board_bottom"] == nil {
		payload["board_bottom"] = ""
	}
	if v := payload["board_erfasst_am"]; v != nil {
		payload["board_recorded_on"] = v
	}
}

// IsEmpty reports whether a payload carries no meaningful value at all.
func (p Payload) IsEmpty() bool {
	for _, v := range p {
		switch val := v.(type) {
		case nil:
		case string:
			if strings.TrimSpace(val) != "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Columns returns the sorted union of columns across payloads, so every
// insert uses one consistent column order.
func Columns(payloads []Payload) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range payloads {
		for c := range p {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Values flattens payloads into rows matching the given column order.
func Values(payloads []Payload, columns []string) [][]any {
	rows := make([][]any, 0, len(payloads))
	for _, p := range payloads {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = p[c]
		}
		rows = append(rows, row)
	}
	return rows
}
