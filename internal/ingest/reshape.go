package ingest

import "strings"

// Some exports arrive pivoted: the first row carries period labels (months)
// spanning groups of columns, the second row repeats measure names under
// each period, and each data row is keyed by the first column. Those tables
// are reshaped into long form, one row per key/period/measure, before header
// detection runs.
//
// Input:
//
//	,Jan 2024,Jan 2024,Feb 2024,Feb 2024
//	Name,Actual,Allowed,Actual,Allowed
//	Ryan,100,100,80,0
//
// Output:
//
//	Name,Period,Measure,Value
//	Ryan,Jan 2024,Actual,100
//	...

// reshapePivoted detects and flattens a period-by-measure layout. The bool
// reports whether reshaping applied; when false the input is returned
// untouched.
func reshapePivoted(rows [][]string) ([][]string, bool) {
	if len(rows) < 3 {
		return rows, false
	}
	bandRow, measureRow := rows[0], rows[1]
	if len(bandRow) < 3 || len(measureRow) != len(bandRow) {
		return rows, false
	}
	if !looksLikeBandRow(bandRow) || !looksLikeMeasureRow(measureRow) {
		return rows, false
	}

	periods := forwardFill(bandRow)
	keyName := strings.TrimSpace(measureRow[0])
	if keyName == "" {
		keyName = "Key"
	}

	out := [][]string{{keyName, "Period", "Measure", "Value"}}
	for _, row := range rows[2:] {
		if isBlankRow(row) {
			continue
		}
		key := ""
		if len(row) > 0 {
			key = row[0]
		}
		for j := 1; j < len(measureRow); j++ {
			measure := strings.TrimSpace(measureRow[j])
			if measure == "" || periods[j] == "" {
				continue
			}
			value := ""
			if j < len(row) {
				value = row[j]
			}
			if strings.TrimSpace(value) == "" {
				continue
			}
			out = append(out, []string{key, periods[j], measure, value})
		}
	}
	if len(out) < 2 {
		return rows, false
	}
	return out, true
}

// looksLikeBandRow requires a sparse first row: empty key cell, at least two
// distinct period labels, and labels spanning groups wider than one column,
// either repeated explicitly or left blank for forward-filling.
func looksLikeBandRow(row []string) bool {
	if strings.TrimSpace(row[0]) != "" {
		return false
	}
	labels := make(map[string]struct{})
	nonEmpty := 0
	gaps := 0
	for _, cell := range row[1:] {
		if v := strings.TrimSpace(cell); v == "" {
			gaps++
		} else {
			labels[v] = struct{}{}
			nonEmpty++
		}
	}
	spansGroups := gaps >= 1 || nonEmpty > len(labels)
	return len(labels) >= 2 && spansGroups
}

// looksLikeMeasureRow requires a key name in the first cell and at least one
// measure name repeated across the banded columns.
func looksLikeMeasureRow(row []string) bool {
	if strings.TrimSpace(row[0]) == "" {
		return false
	}
	counts := make(map[string]int)
	for _, cell := range row[1:] {
		if v := strings.ToLower(strings.TrimSpace(cell)); v != "" {
			counts[v]++
		}
	}
	for _, n := range counts {
		if n >= 2 {
			return true
		}
	}
	return false
}

func forwardFill(row []string) []string {
	out := make([]string, len(row))
	last := ""
	for i, cell := range row {
		if v := strings.TrimSpace(cell); v != "" {
			last = v
		}
		out[i] = last
		if i == 0 {
			last = "" // the key column never belongs to a band
		}
	}
	return out
}
