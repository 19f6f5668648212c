package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/models"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection. Timestamps are stored as RFC 3339 text in
// the configured location.
type DB struct {
	conn *sql.DB
	loc  *time.Location
}

// New opens the SQLite database at path, enables WAL mode, and runs migrations.
func New(path string, loc *time.Location) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &DB{conn: conn, loc: loc}, nil
}

func migrate(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS inventory (
			machine_id          TEXT PRIMARY KEY,
			hostname            TEXT NOT NULL,
			ip                  TEXT NOT NULL,
			os                  TEXT NOT NULL,
			os_version          TEXT NOT NULL DEFAULT '',
			cpu_percent         REAL NOT NULL DEFAULT 0,
			memory_total_mb     INTEGER NOT NULL DEFAULT 0,
			memory_used_mb      INTEGER NOT NULL DEFAULT 0,
			computer_model      TEXT,
			computer_activation DATETIME,
			activation_days     INTEGER,
			created_at          DATETIME NOT NULL,
			updated_at          DATETIME
		);
		CREATE INDEX IF NOT EXISTS idx_inventory_hostname ON inventory(hostname);
		CREATE INDEX IF NOT EXISTS idx_inventory_os ON inventory(os);
	`)
	return err
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping() error {
	return d.conn.Ping()
}

const recordColumns = `machine_id, hostname, ip, os, os_version, cpu_percent,
	memory_total_mb, memory_used_mb, computer_model, computer_activation,
	activation_days, created_at, updated_at`

// sortColumns whitelists the sort keys accepted by List. Date columns sort
// by their datetime value rather than raw text so mixed offsets order
// correctly. Unknown keys fall back to hostname.
var sortColumns = map[string]string{
	"hostname":            "hostname",
	"os":                  "os",
	"os_version":          "os_version",
	"created_at":          "datetime(created_at)",
	"updated_at":          "datetime(updated_at)",
	"computer_activation": "datetime(computer_activation)",
}

// Get returns the record with the given machine ID, or sql.ErrNoRows.
func (d *DB) Get(machineID string) (*models.InventoryRecord, error) {
	return getRecord(d.conn, machineID, d.loc)
}

// List returns all records ordered by the whitelisted sort key. Any
// direction other than "desc" sorts ascending.
func (d *DB) List(orderBy, direction string) ([]*models.InventoryRecord, error) {
	col, ok := sortColumns[orderBy]
	if !ok {
		col = "hostname"
	}
	dir := "ASC"
	if direction == "desc" {
		dir = "DESC"
	}

	rows, err := d.conn.Query(
		`SELECT ` + recordColumns + ` FROM inventory ORDER BY ` + col + ` ` + dir)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.InventoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows, d.loc)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Insert writes a new record.
func (d *DB) Insert(rec *models.InventoryRecord) error {
	return insertRecord(d.conn, rec, d.loc)
}

// Update replaces the mutable fields of the record with rec.MachineID.
// Returns sql.ErrNoRows if no such record exists.
func (d *DB) Update(rec *models.InventoryRecord) error {
	return updateRecord(d.conn, rec, d.loc)
}

// Delete removes the record with the given machine ID.
// Returns sql.ErrNoRows if no such record exists.
func (d *DB) Delete(machineID string) error {
	res, err := d.conn.Exec(`DELETE FROM inventory WHERE machine_id = ?`, machineID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountByOS returns the number of records per operating system label.
func (d *DB) CountByOS() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT os, COUNT(*) FROM inventory GROUP BY os`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var os string
		var n int
		if err := rows.Scan(&os, &n); err != nil {
			return nil, err
		}
		counts[os] = n
	}
	return counts, rows.Err()
}

// Tx exposes record operations bound to an open transaction.
type Tx struct {
	tx  *sql.Tx
	loc *time.Location
}

// Transact runs fn inside a transaction, rolling back when fn returns an
// error and committing otherwise.
func (d *DB) Transact(fn func(*Tx) error) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Tx{tx: tx, loc: d.loc}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get returns the record with the given machine ID, or sql.ErrNoRows.
func (t *Tx) Get(machineID string) (*models.InventoryRecord, error) {
	return getRecord(t.tx, machineID, t.loc)
}

// Insert writes a new record.
func (t *Tx) Insert(rec *models.InventoryRecord) error {
	return insertRecord(t.tx, rec, t.loc)
}

// Update replaces the mutable fields of the record with rec.MachineID.
// Returns sql.ErrNoRows if no such record exists.
func (t *Tx) Update(rec *models.InventoryRecord) error {
	return updateRecord(t.tx, rec, t.loc)
}

// Upsert writes rec, replacing every stored column, including created_at,
// when the machine ID already exists.
func (t *Tx) Upsert(rec *models.InventoryRecord) error {
	_, err := t.tx.Exec(`
		INSERT INTO inventory (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(machine_id) DO UPDATE SET
			hostname=excluded.hostname, ip=excluded.ip, os=excluded.os,
			os_version=excluded.os_version, cpu_percent=excluded.cpu_percent,
			memory_total_mb=excluded.memory_total_mb,
			memory_used_mb=excluded.memory_used_mb,
			computer_model=excluded.computer_model,
			computer_activation=excluded.computer_activation,
			activation_days=excluded.activation_days,
			created_at=excluded.created_at, updated_at=excluded.updated_at`,
		rec.MachineID, rec.Hostname, rec.IP, rec.OS, rec.OSVersion,
		rec.CPUPercent, rec.MemoryTotalMB, rec.MemoryUsedMB,
		nullString(rec.ComputerModel),
		nullTime(rec.ComputerActivation, t.loc),
		nullInt(rec.ActivationDays),
		formatTime(rec.CreatedAt, t.loc),
		nullTime(rec.UpdatedAt, t.loc),
	)
	return err
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

func getRecord(e execer, machineID string, loc *time.Location) (*models.InventoryRecord, error) {
	row := e.QueryRow(
		`SELECT `+recordColumns+` FROM inventory WHERE machine_id = ?`, machineID)
	return scanRecord(row, loc)
}

func insertRecord(e execer, rec *models.InventoryRecord, loc *time.Location) error {
	_, err := e.Exec(`
		INSERT INTO inventory (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MachineID, rec.Hostname, rec.IP, rec.OS, rec.OSVersion,
		rec.CPUPercent, rec.MemoryTotalMB, rec.MemoryUsedMB,
		nullString(rec.ComputerModel),
		nullTime(rec.ComputerActivation, loc),
		nullInt(rec.ActivationDays),
		formatTime(rec.CreatedAt, loc),
		nullTime(rec.UpdatedAt, loc),
	)
	return err
}

func updateRecord(e execer, rec *models.InventoryRecord, loc *time.Location) error {
	res, err := e.Exec(`
		UPDATE inventory
		SET hostname=?, ip=?, os=?, os_version=?, cpu_percent=?,
			memory_total_mb=?, memory_used_mb=?, computer_model=?,
			computer_activation=?, activation_days=?, updated_at=?
		WHERE machine_id=?`,
		rec.Hostname, rec.IP, rec.OS, rec.OSVersion, rec.CPUPercent,
		rec.MemoryTotalMB, rec.MemoryUsedMB,
		nullString(rec.ComputerModel),
		nullTime(rec.ComputerActivation, loc),
		nullInt(rec.ActivationDays),
		nullTime(rec.UpdatedAt, loc),
		rec.MachineID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner, loc *time.Location) (*models.InventoryRecord, error) {
	var rec models.InventoryRecord
	var (
		model      sql.NullString
		activation sql.NullString
		days       sql.NullInt64
		createdAt  string
		updatedAt  sql.NullString
	)
	if err := s.Scan(
		&rec.MachineID, &rec.Hostname, &rec.IP, &rec.OS, &rec.OSVersion,
		&rec.CPUPercent, &rec.MemoryTotalMB, &rec.MemoryUsedMB,
		&model, &activation, &days, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if model.Valid {
		rec.ComputerModel = &model.String
	}
	if days.Valid {
		n := int(days.Int64)
		rec.ActivationDays = &n
	}

	var err error
	if activation.Valid {
		t, err := parseStored(activation.String, loc)
		if err != nil {
			return nil, fmt.Errorf("parse computer_activation %q: %w", activation.String, err)
		}
		rec.ComputerActivation = &t
	}
	rec.CreatedAt, err = parseStored(createdAt, loc)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
	}
	if updatedAt.Valid {
		t, err := parseStored(updatedAt.String, loc)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at %q: %w", updatedAt.String, err)
		}
		rec.UpdatedAt = &t
	}
	return &rec, nil
}

func formatTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.RFC3339)
}

func parseStored(s string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func nullTime(t *time.Time, loc *time.Location) any {
	if t == nil {
		return nil
	}
	return formatTime(*t, loc)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}
