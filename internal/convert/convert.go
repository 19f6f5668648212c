// Package convert imports rows from a legacy inventory database into the
// current store, coercing the loosely typed legacy columns on the way.
package convert

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/db"
	"github.com/carlosrabelo/tatuscan/internal/models"
	"github.com/carlosrabelo/tatuscan/internal/timeparse"
	_ "modernc.org/sqlite"
)

// legacyFields are the columns the current schema knows about, in scan
// order. Columns absent from the legacy table are selected as NULL.
var legacyFields = []string{
	"machine_id", "hostname", "ip", "os", "os_version", "cpu_percent",
	"memory_total_mb", "memory_used_mb", "computer_model",
	"computer_activation", "activation_days", "created_at", "updated_at",
}

// Converter copies rows from a legacy database into the current store.
type Converter struct {
	Dest *db.DB
	Loc  *time.Location
	Now  func() time.Time                 // created_at substitute; nil means time.Now
	Logf func(format string, args ...any) // conversion warnings; nil discards them
}

// Result counts what a conversion run did.
type Result struct {
	Read     int
	Inserted int
	Updated  int
	Skipped  int
}

// Run copies every row of the legacy inventory table at srcPath into the
// destination store, upserting by machine id. Rows without a machine id
// are skipped; dates that cannot be parsed become NULL, except created_at
// which falls back to the current time. The whole batch commits in one
// transaction.
func (c *Converter) Run(srcPath string) (Result, error) {
	var res Result

	if _, err := os.Stat(srcPath); err != nil {
		return res, fmt.Errorf("legacy database: %w", err)
	}

	src, err := sql.Open("sqlite", srcPath)
	if err != nil {
		return res, fmt.Errorf("open legacy database: %w", err)
	}
	defer src.Close()

	have, err := legacyColumns(src)
	if err != nil {
		return res, err
	}
	if !have["machine_id"] {
		return res, errors.New("legacy inventory table has no machine_id column")
	}

	rows, err := src.Query(selectQuery(have))
	if err != nil {
		return res, fmt.Errorf("read legacy inventory: %w", err)
	}
	defer rows.Close()

	err = c.Dest.Transact(func(tx *db.Tx) error {
		for rows.Next() {
			vals := make([]any, len(legacyFields))
			ptrs := make([]any, len(vals))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return fmt.Errorf("scan legacy row: %w", err)
			}
			res.Read++

			rec := c.buildRecord(vals)
			if rec == nil {
				res.Skipped++
				continue
			}

			_, err := tx.Get(rec.MachineID)
			switch {
			case err == nil:
				res.Updated++
			case errors.Is(err, sql.ErrNoRows):
				res.Inserted++
			default:
				return fmt.Errorf("look up %s: %w", rec.MachineID, err)
			}
			if err := tx.Upsert(rec); err != nil {
				return fmt.Errorf("write %s: %w", rec.MachineID, err)
			}
		}
		return rows.Err()
	})
	return res, err
}

// buildRecord coerces one scanned legacy row. A nil result means the row
// carries no machine id and cannot be imported.
func (c *Converter) buildRecord(vals []any) *models.InventoryRecord {
	machineID := strings.TrimSpace(asString(vals[0]))
	if machineID == "" {
		c.logf("skipping legacy row without machine_id")
		return nil
	}

	rec := &models.InventoryRecord{
		MachineID:     machineID,
		Hostname:      models.Truncate(asString(vals[1]), models.MaxHostnameLen),
		IP:            models.Truncate(asString(vals[2]), models.MaxIPLen),
		OS:            models.Truncate(asString(vals[3]), models.MaxOSLen),
		OSVersion:     models.Truncate(asString(vals[4]), models.MaxOSVersionLen),
		CPUPercent:    asFloat(vals[5]),
		MemoryTotalMB: asInt(vals[6]),
		MemoryUsedMB:  asInt(vals[7]),
	}
	if model := models.Truncate(asString(vals[8]), models.MaxModelLen); model != "" {
		rec.ComputerModel = &model
	}
	rec.ComputerActivation = c.asTime(vals[9], "computer_activation", machineID)
	if days, ok := asOptionalInt(vals[10]); ok {
		rec.ActivationDays = &days
	}
	if created := c.asTime(vals[11], "created_at", machineID); created != nil {
		rec.CreatedAt = *created
	} else {
		rec.CreatedAt = c.now()
	}
	rec.UpdatedAt = c.asTime(vals[12], "updated_at", machineID)
	return rec
}

func legacyColumns(src *sql.DB) (map[string]bool, error) {
	rows, err := src.Query(`PRAGMA table_info(inventory)`)
	if err != nil {
		return nil, fmt.Errorf("inspect legacy schema: %w", err)
	}
	defer rows.Close()

	have := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    any
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("inspect legacy schema: %w", err)
		}
		have[strings.ToLower(name)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(have) == 0 {
		return nil, errors.New("legacy database has no inventory table")
	}
	return have, nil
}

func selectQuery(have map[string]bool) string {
	parts := make([]string, len(legacyFields))
	for i, field := range legacyFields {
		if have[field] {
			parts[i] = field
		} else {
			parts[i] = "NULL AS " + field
		}
	}
	return "SELECT " + strings.Join(parts, ", ") + " FROM inventory"
}

func (c *Converter) asTime(v any, column, machineID string) *time.Time {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	t, err := timeparse.Normalize(v, c.Loc)
	if err != nil {
		c.logf("machine %s: unparseable %s %v, storing NULL", machineID, column, v)
		return nil
	}
	return t
}

func (c *Converter) now() time.Time {
	if c.Now != nil {
		return c.Now().In(c.Loc)
	}
	return time.Now().In(c.Loc)
}

func (c *Converter) logf(format string, args ...any) {
	if c.Logf != nil {
		c.Logf(format, args...)
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	case []byte:
		return asFloat(string(n))
	default:
		return 0
	}
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case nil:
		return 0
	case int64:
		return n
	case float64:
		return int64(n)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0
		}
		return i
	case []byte:
		return asInt(string(n))
	default:
		return 0
	}
}

// asOptionalInt distinguishes NULL from zero for activation_days.
func asOptionalInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	return int(asInt(v)), true
}
