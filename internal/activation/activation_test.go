package activation_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/activation"
	"github.com/carlosrabelo/tatuscan/internal/models"
)

func writeReport(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inventario.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write report: %v", err)
	}
	return path
}

// --- Number normalization ---

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain digits", raw: "1234", want: "1234"},
		{name: "leading zeros stripped", raw: "0042", want: "42"},
		{name: "all zeros collapse", raw: "0000", want: "0"},
		{name: "digits mixed with text", raw: "nr 00123", want: "123"},
		{name: "digits split by letters", raw: "12a34", want: "1234"},
		{name: "no digits", raw: "abc", want: ""},
		{name: "empty", raw: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := activation.NormalizeNumber(tt.raw); got != tt.want {
				t.Errorf("NormalizeNumber(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestHostNumber(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		want     string
	}{
		{name: "ifmt trailing", hostname: "IFMT-1234", want: "1234"},
		{name: "ifmt underscore with zeros", hostname: "ifmt_0042", want: "42"},
		{name: "ifmt no separator", hostname: "IFMT0077", want: "77"},
		{name: "ifmt mid-name beats suffix", hostname: "IFMT-12-lab", want: "12"},
		{name: "m prefix trailing", hostname: "LAB2-M0042", want: "42"},
		{name: "m prefix mid-name", hostname: "m77-lab", want: "77"},
		{name: "trailing digit run", hostname: "sala12-pc34", want: "34"},
		{name: "fallback last digit run", hostname: "v1-pc2-x", want: "2"},
		{name: "fallback single run", hostname: "pc-12-door", want: "12"},
		{name: "surrounding spaces", hostname: "  IFMT-0042  ", want: "42"},
		{name: "no digits", hostname: "server", want: ""},
		{name: "empty", hostname: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := activation.HostNumber(tt.hostname); got != tt.want {
				t.Errorf("HostNumber(%q) = %q, want %q", tt.hostname, got, tt.want)
			}
		})
	}
}

// --- Date normalization ---

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "day first slashes", raw: "13/09/2023", want: "2023-09-13", wantOK: true},
		{name: "already iso", raw: "2023-09-13", want: "2023-09-13", wantOK: true},
		{name: "day first dashes", raw: "13-09-2023", want: "2023-09-13", wantOK: true},
		{name: "unpadded day and month", raw: "5/3/2024", want: "2024-03-05", wantOK: true},
		{name: "surrounding spaces", raw: " 2023-01-31 ", want: "2023-01-31", wantOK: true},
		{name: "impossible date", raw: "31/02/2023", wantOK: false},
		{name: "free text", raw: "next tuesday", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := activation.NormalizeDate(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("NormalizeDate(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("NormalizeDate(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// --- CSV loading ---

func TestLoadCSV_IndexesNumbersToDates(t *testing.T) {
	path := writeReport(t, strings.Join([]string{
		"PATRIMONIO,NUMERO,DATA DA CARGA",
		"notebook,0042,13/09/2023",
		"desktop,0100,2023-01-05",
	}, "\n"))

	index, err := activation.LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("len(index) = %d, want 2", len(index))
	}
	if got := index["42"]; got != "13/09/2023" {
		t.Errorf("index[42] = %q, want %q", got, "13/09/2023")
	}
	if got := index["100"]; got != "2023-01-05" {
		t.Errorf("index[100] = %q, want %q", got, "2023-01-05")
	}
}

func TestLoadCSV_LastRowWins(t *testing.T) {
	path := writeReport(t, strings.Join([]string{
		"NUMERO,DATA DA CARGA",
		"0042,13/09/2023",
		"42,01/01/2024",
	}, "\n"))

	index, err := activation.LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if got := index["42"]; got != "01/01/2024" {
		t.Errorf("index[42] = %q, want %q", got, "01/01/2024")
	}
}

func TestLoadCSV_SkipsIncompleteRows(t *testing.T) {
	path := writeReport(t, strings.Join([]string{
		"PATRIMONIO,NUMERO,DATA DA CARGA",
		"x,,01/01/2024",
		"x,ABC,01/01/2024",
		"x,0042,",
		"x,77",
		"x,0042,13/09/2023",
	}, "\n"))

	index, err := activation.LoadCSV(path)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(index) != 1 {
		t.Fatalf("len(index) = %d, want 1", len(index))
	}
	if got := index["42"]; got != "13/09/2023" {
		t.Errorf("index[42] = %q, want %q", got, "13/09/2023")
	}
}

func TestLoadCSV_MissingColumns(t *testing.T) {
	path := writeReport(t, "NUM,DATE\n1,2023-01-01\n")

	if _, err := activation.LoadCSV(path); err == nil {
		t.Fatal("LoadCSV with wrong header: expected error, got nil")
	} else if !strings.Contains(err.Error(), "NUMERO") {
		t.Errorf("error = %q, want mention of NUMERO column", err)
	}
}

func TestLoadCSV_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")

	if _, err := activation.LoadCSV(path); err == nil {
		t.Fatal("LoadCSV on missing file: expected error, got nil")
	}
}

// --- Planning ---

func TestPlan(t *testing.T) {
	loc := time.FixedZone("-04", -4*3600)
	act := func(y int, m time.Month, d int) *time.Time {
		v := time.Date(y, m, d, 10, 30, 0, 0, loc)
		return &v
	}

	records := []*models.InventoryRecord{
		{MachineID: "id-1", Hostname: "IFMT-0042"},
		{MachineID: "id-2", Hostname: "no-digits"},
		{MachineID: "id-3", Hostname: "m77"},
		{MachineID: "id-4", Hostname: "IFMT-100"},
		{MachineID: "id-5", Hostname: "IFMT-200", ComputerActivation: act(2023, time.September, 13)},
		{MachineID: "id-6", Hostname: "IFMT-300", ComputerActivation: act(2020, time.January, 1)},
	}
	index := activation.Index{
		"42":  "13/09/2023",
		"100": "garbage",
		"200": "13/09/2023",
		"300": "2023-09-13",
	}

	res := activation.Plan(records, index)

	if res.Total != 6 {
		t.Errorf("Total = %d, want 6", res.Total)
	}
	if res.WithNumber != 5 {
		t.Errorf("WithNumber = %d, want 5", res.WithNumber)
	}
	if res.Matches != 4 {
		t.Errorf("Matches = %d, want 4", res.Matches)
	}
	if len(res.Changes) != 2 {
		t.Fatalf("len(Changes) = %d, want 2", len(res.Changes))
	}

	first := res.Changes[0]
	if first.MachineID != "id-1" || first.Number != "42" || first.Date != "2023-09-13" {
		t.Errorf("Changes[0] = %+v, want id-1 number 42 date 2023-09-13", first)
	}
	second := res.Changes[1]
	if second.MachineID != "id-6" || second.Number != "300" || second.Date != "2023-09-13" {
		t.Errorf("Changes[1] = %+v, want id-6 number 300 date 2023-09-13", second)
	}
}

func TestPlan_EmptyInventory(t *testing.T) {
	res := activation.Plan(nil, activation.Index{"42": "13/09/2023"})

	if res.Total != 0 || res.WithNumber != 0 || res.Matches != 0 {
		t.Errorf("counters = %d/%d/%d, want all zero", res.Total, res.WithNumber, res.Matches)
	}
	if len(res.Changes) != 0 {
		t.Errorf("len(Changes) = %d, want 0", len(res.Changes))
	}
}
