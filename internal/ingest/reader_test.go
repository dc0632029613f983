package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSimpleFile(t *testing.T) {
	path := writeCSV(t, "Date,Description,Amount\n2024-03-01,COSTCO,50.00\n2024-03-02,TARGET,25.00\n")

	tbl, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff([]string{"Date", "Description", "Amount"}, tbl.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
	if len(tbl.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(tbl.Rows))
	}
	if tbl.Name != "input.csv" {
		t.Errorf("name = %q", tbl.Name)
	}
}

func TestLoadSkipsBannerRows(t *testing.T) {
	content := "Exported by Example Bank\n" +
		"\"Account: Freedom ...1234\"\n" +
		"Date,Description,Amount\n" +
		"2024-03-01,COSTCO,50.00\n"
	tbl, err := Load(writeCSV(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tbl.Headers[0] != "Date" {
		t.Errorf("header row not found past banners: %v", tbl.Headers)
	}
	if len(tbl.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(tbl.Rows))
	}
}

func TestLoadStripsBOM(t *testing.T) {
	tbl, err := Load(writeCSV(t, "\ufeffDate,Amount\n2024-03-01,1.00\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tbl.Headers[0] != "Date" {
		t.Errorf("BOM not stripped from first header: %q", tbl.Headers[0])
	}
}

func TestLoadDedupesHeaders(t *testing.T) {
	tbl, err := Load(writeCSV(t, "Date,Amount,Amount,,amount\n2024-03-01,1,2,3,4\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := []string{"Date", "Amount", "Amount_2", "column_4", "amount_3"}
	if diff := cmp.Diff(want, tbl.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSkipsBlankRowsAndPadsShortOnes(t *testing.T) {
	content := "Date,Description,Amount\n" +
		"2024-03-01,COSTCO,50.00\n" +
		",,\n" +
		"2024-03-02,TARGET\n"
	tbl, err := Load(writeCSV(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank row skipped)", len(tbl.Rows))
	}
	if len(tbl.Rows[1]) != 3 || tbl.Rows[1][2] != "" {
		t.Errorf("short row not padded: %v", tbl.Rows[1])
	}
}

func TestLoadEmptyFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero bytes", ""},
		{"header only", "Date,Amount\n"},
		{"banners only", "Statement Export\n"},
		{"header then blanks", "Date,Amount\n,,\n,,\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeCSV(t, tt.content))
			if !errors.Is(err, ErrEmptyFile) {
				t.Errorf("Load error = %v, want ErrEmptyFile", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	if err == nil {
		t.Fatal("Load of missing file succeeded")
	}
	if errors.Is(err, ErrEmptyFile) {
		t.Error("missing file misreported as empty")
	}
}
