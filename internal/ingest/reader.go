package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saintfish/chardet"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// ReadRows loads the raw data rows from an export file, dispatching on the
// extension. sheet is only meaningful for workbooks; when empty the first
// sheet is used. startRow is 1-based and rows before it are dropped.
func ReadRows(path, sheet string, startRow int, log *logrus.Logger) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readWorkbook(path, sheet, startRow, log)
	case ".csv", ".txt":
		return readCSV(path, startRow, log)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", path)
	}
}

func readWorkbook(path, sheet string, startRow int, log *logrus.Logger) ([][]string, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	defer wb.Close()

	if sheet == "" {
		sheet = wb.GetSheetName(0)
	}
	rows, err := wb.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	log.WithFields(logrus.Fields{
		"file":  filepath.Base(path),
		"sheet": sheet,
		"rows":  len(rows),
	}).Info("workbook loaded")

	return sliceDataRows(rows, startRow), nil
}

// readCSV reads a CSV export, converting it to UTF-8 first when the charset
// detector says the file is encoded differently. Inspection stations export
// in whatever codepage the OS locale dictates, commonly windows-1252.
func readCSV(path string, startRow int, log *logrus.Logger) ([][]string, error) {
	rawdata, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(rawdata)
	if err == nil && result != nil && !strings.EqualFold(result.Charset, "utf-8") {
		enc, _ := ianaindex.IANA.Encoding(result.Charset)
		if enc != nil {
			converted, _, convErr := transform.Bytes(enc.NewDecoder(), rawdata)
			if convErr != nil {
				return nil, fmt.Errorf("converting %s from %s: %w", path, result.Charset, convErr)
			}
			rawdata = converted
			log.WithFields(logrus.Fields{
				"file":    filepath.Base(path),
				"charset": result.Charset,
			}).Info("converted to utf-8")
		}
	}

	r := csv.NewReader(strings.NewReader(string(rawdata)))
	r.Comma = detectDelimiter(rawdata)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	log.WithFields(logrus.Fields{
		"file": filepath.Base(path),
		"rows": len(rows),
	}).Info("csv loaded")

	return sliceDataRows(rows, startRow), nil
}

// detectDelimiter picks between semicolon, tab and comma by counting
// occurrences in the first line. German locale exports use semicolons.
func detectDelimiter(data []byte) rune {
	line := string(data)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	counts := map[rune]int{';': strings.Count(line, ";"), '\t': strings.Count(line, "\t"), ',': strings.Count(line, ",")}
	best, bestCount := ',', 0
	for _, d := range []rune{';', '\t', ','} {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func sliceDataRows(rows [][]string, startRow int) [][]string {
	if startRow < 1 {
		startRow = 1
	}
	if startRow-1 >= len(rows) {
		return nil
	}
	return rows[startRow-1:]
}

// BuildPayloads converts raw rows into payloads, skipping rows that are
// entirely blank.
func BuildPayloads(p Profile, rows [][]string, log *logrus.Logger) []Payload {
	payloads := make([]Payload, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		if rowIsBlank(row) {
			skipped++
			continue
		}
		payloads = append(payloads, RowToPayload(p, row))
	}
	if skipped > 0 {
		log.WithField("skipped", skipped).Debug("dropped blank rows")
	}
	return payloads
}

func rowIsBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
