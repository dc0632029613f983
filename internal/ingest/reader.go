package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// ErrEmptyFile marks a file with no data rows. Per-file recoverable: the
// runner logs it and skips the file.
var ErrEmptyFile = errors.New("file has no data rows")

// headerScanLimit bounds how many leading rows are scanned for the header
// row. Bank exports put at most a handful of banner rows above the header.
const headerScanLimit = 15

// RawTable is one delimited file read into memory, header row located and
// duplicate header names made unique.
type RawTable struct {
	Name    string // base filename
	Path    string
	ModTime time.Time
	Headers []string
	Rows    [][]string
}

// Load reads a delimited file, reshapes pivoted layouts into long form,
// locates the header row past any banner rows, and de-duplicates header
// names.
func Load(path string) (*RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Load: opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("Load: stat %s: %w", path, err)
	}

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", path, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}

	if reshaped, ok := reshapePivoted(rows); ok {
		rows = reshaped
	}

	headerIdx := findHeaderRow(rows)
	if headerIdx < 0 || headerIdx+1 >= len(rows) {
		return nil, fmt.Errorf("Load: %s: %w", path, ErrEmptyFile)
	}

	headers := dedupeHeaders(rows[headerIdx])
	var data [][]string
	for _, row := range rows[headerIdx+1:] {
		if isBlankRow(row) {
			continue
		}
		data = append(data, padRow(row, len(headers)))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("Load: %s: %w", path, ErrEmptyFile)
	}

	return &RawTable{
		Name:    filepath.Base(path),
		Path:    path,
		ModTime: info.ModTime(),
		Headers: headers,
		Rows:    data,
	}, nil
}

// findHeaderRow returns the index of the first plausible header row: at
// least two non-empty cells, at least one containing a letter. Banner rows
// are typically a single title cell and fail the first test.
func findHeaderRow(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	for i := 0; i < limit; i++ {
		nonEmpty := 0
		hasLetter := false
		for _, cell := range rows[i] {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			nonEmpty++
			if containsLetter(cell) {
				hasLetter = true
			}
		}
		if nonEmpty >= 2 && hasLetter {
			return i
		}
	}
	return -1
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// dedupeHeaders makes duplicate header names unique by suffixing an
// occurrence counter: "Amount", "Amount_2", "Amount_3". Empty headers get a
// positional name so every column stays addressable.
func dedupeHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		key := strings.ToLower(name)
		seen[key]++
		if seen[key] > 1 {
			name = fmt.Sprintf("%s_%d", name, seen[key])
		}
		out[i] = name
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, width int) []string {
	if len(row) == width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}
