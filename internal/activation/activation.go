// Package activation plans computer_activation backfills from an asset
// report CSV keyed by asset number.
package activation

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/models"
)

// Index maps a normalized asset number to the raw load date recorded in
// the report. Dates stay verbatim so unparseable rows surface during
// planning rather than loading.
type Index map[string]string

// LoadCSV reads an asset report and indexes the NUMERO column against the
// DATA DA CARGA column. Rows without a usable number or date are skipped;
// when a number repeats, the last row wins.
func LoadCSV(path string) (Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read report header: %w", err)
	}
	numberCol, dateCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "NUMERO":
			numberCol = i
		case "DATA DA CARGA":
			dateCol = i
		}
	}
	if numberCol < 0 || dateCol < 0 {
		return nil, fmt.Errorf("report %s: missing NUMERO or DATA DA CARGA column", path)
	}

	index := Index{}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read report row: %w", err)
		}
		number := ""
		if numberCol < len(row) {
			number = NormalizeNumber(row[numberCol])
		}
		if number == "" {
			continue
		}
		date := ""
		if dateCol < len(row) {
			date = strings.TrimSpace(row[dateCol])
		}
		if date == "" {
			continue
		}
		index[number] = date
	}
	return index, nil
}

// NormalizeNumber keeps only the digits of raw and strips leading zeros.
// All-zero input collapses to "0"; input without digits returns "".
func NormalizeNumber(raw string) string {
	var b strings.Builder
	for _, ch := range raw {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// Hostname patterns in preference order: an ifmt prefix beats an m prefix,
// and anchored-at-end beats anywhere.
var hostNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ifmt[-_]?(\d+)$`),
	regexp.MustCompile(`(?i)ifmt[-_]?(\d+)`),
	regexp.MustCompile(`(?i)m(\d+)$`),
	regexp.MustCompile(`(?i)m(\d+)`),
	regexp.MustCompile(`(\d+)$`),
}

var digitRun = regexp.MustCompile(`\d+`)

// HostNumber extracts the asset number embedded in a hostname such as
// IFMT-1234 or lab2-m0042. When no preferred pattern matches, the last
// digit run anywhere in the name is used.
func HostNumber(hostname string) string {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return ""
	}
	for _, pattern := range hostNumberPatterns {
		if m := pattern.FindStringSubmatch(hostname); m != nil {
			return NormalizeNumber(m[1])
		}
	}
	runs := digitRun.FindAllString(hostname, -1)
	if len(runs) > 0 {
		return NormalizeNumber(runs[len(runs)-1])
	}
	return ""
}

var reportDateFormats = []string{"02/01/2006", "2006-01-02", "02-01-2006"}

// NormalizeDate converts a report date in dd/mm/yyyy, yyyy-mm-dd or
// dd-mm-yyyy form to yyyy-mm-dd. ok is false when no format matches.
func NormalizeDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	for _, layout := range reportDateFormats {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// Change is one record whose activation date should be patched.
type Change struct {
	MachineID string
	Hostname  string
	Number    string
	Date      string // yyyy-mm-dd
}

// Result summarizes a planning pass over the inventory.
type Result struct {
	Total      int // records examined
	WithNumber int // hostnames with an extractable number
	Matches    int // numbers present in the report index
	Changes    []Change
}

// Plan pairs each hostname number with the report index. Records already
// carrying the report date and rows whose date cannot be normalized are
// left alone.
func Plan(records []*models.InventoryRecord, index Index) Result {
	res := Result{Total: len(records)}
	for _, rec := range records {
		number := HostNumber(rec.Hostname)
		if number == "" {
			continue
		}
		res.WithNumber++
		raw, ok := index[number]
		if !ok || raw == "" {
			continue
		}
		res.Matches++
		date, ok := NormalizeDate(raw)
		if !ok {
			continue
		}
		if rec.ComputerActivation != nil && rec.ComputerActivation.Format("2006-01-02") == date {
			continue
		}
		res.Changes = append(res.Changes, Change{
			MachineID: rec.MachineID,
			Hostname:  rec.Hostname,
			Number:    number,
			Date:      date,
		})
	}
	return res
}
