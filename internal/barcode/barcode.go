// Package barcode normalizes raw board identifiers and expands them into
// ordered lookup candidates for the traceability store.
package barcode

import (
	"fmt"
	"strings"
	"unicode"
)

// Prefix is the token the traceability system prepends to numeric barcodes.
const Prefix = "CM"

// Clean coerces val to text, removes all whitespace (including tabs and
// newlines) and uppercases the result.
func Clean(val any) string {
	if val == nil {
		return ""
	}
	s := fmt.Sprintf("%v", val)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Candidates returns the ordered list of lookup candidates for a raw
// identifier. The exact cleaned form always comes first; for purely numeric
// values a prefixed form is appended as a fallback, because the trace store
// usually keys on the prefixed encoding while the operational store sometimes
// holds the bare numeric suffix.
func Candidates(val any) []string {
	b := Clean(val)
	if b == "" {
		return nil
	}
	cands := []string{b}
	if isDigits(b) && !strings.HasPrefix(b, Prefix) {
		cands = append(cands, Prefix+b)
	}
	return cands
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
