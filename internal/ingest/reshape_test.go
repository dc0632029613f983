package ingest

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReshapePivoted(t *testing.T) {
	rows := [][]string{
		{"", "Jan 2024", "Jan 2024", "Feb 2024", "Feb 2024"},
		{"Name", "Actual", "Allowed", "Actual", "Allowed"},
		{"Ryan", "100", "100", "80", "0"},
		{"Jordyn", "50", "50", "", "20"},
	}

	out, ok := reshapePivoted(rows)
	if !ok {
		t.Fatal("pivoted layout not detected")
	}

	want := [][]string{
		{"Name", "Period", "Measure", "Value"},
		{"Ryan", "Jan 2024", "Actual", "100"},
		{"Ryan", "Jan 2024", "Allowed", "100"},
		{"Ryan", "Feb 2024", "Actual", "80"},
		{"Ryan", "Feb 2024", "Allowed", "0"},
		{"Jordyn", "Jan 2024", "Actual", "50"},
		{"Jordyn", "Jan 2024", "Allowed", "50"},
		{"Jordyn", "Feb 2024", "Allowed", "20"},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("reshape mismatch (-want +got):\n%s", diff)
	}
}

func TestReshapePivotedForwardFillsBands(t *testing.T) {
	rows := [][]string{
		{"", "Jan 2024", "", "Feb 2024", ""},
		{"Name", "Actual", "Allowed", "Actual", "Allowed"},
		{"Ryan", "100", "90", "80", "70"},
	}

	out, ok := reshapePivoted(rows)
	if !ok {
		t.Fatal("sparse band row not detected")
	}
	want := [][]string{
		{"Name", "Period", "Measure", "Value"},
		{"Ryan", "Jan 2024", "Actual", "100"},
		{"Ryan", "Jan 2024", "Allowed", "90"},
		{"Ryan", "Feb 2024", "Actual", "80"},
		{"Ryan", "Feb 2024", "Allowed", "70"},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("reshape mismatch (-want +got):\n%s", diff)
	}
}

func TestReshapePivotedLeavesFlatTablesAlone(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{
			name: "ordinary flat table",
			rows: [][]string{
				{"Date", "Description", "Amount"},
				{"2024-03-01", "COSTCO", "50.00"},
				{"2024-03-02", "TARGET", "25.00"},
			},
		},
		{
			name: "single period label",
			rows: [][]string{
				{"", "Jan 2024", "Jan 2024"},
				{"Name", "Actual", "Allowed"},
				{"Ryan", "100", "100"},
			},
		},
		{
			name: "too few rows",
			rows: [][]string{
				{"", "Jan 2024", "Feb 2024"},
				{"Name", "Actual", "Actual"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := reshapePivoted(tt.rows)
			if ok {
				t.Fatalf("flat table reshaped: %v", out)
			}
			if diff := cmp.Diff(tt.rows, out); diff != "" {
				t.Errorf("input mutated (-want +got):\n%s", diff)
			}
		})
	}
}
