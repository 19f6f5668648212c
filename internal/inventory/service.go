// Package inventory implements the reconciliation rules applied to machine
// reports before they reach storage.
package inventory

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carlosrabelo/tatuscan/internal/db"
	"github.com/carlosrabelo/tatuscan/internal/models"
	"github.com/carlosrabelo/tatuscan/internal/timeparse"
)

// Service applies inventory semantics on top of the record store. Now may be
// overridden in tests; when nil, wall clock time is used.
type Service struct {
	DB  *db.DB
	Loc *time.Location
	Now func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().In(s.Loc)
	}
	return time.Now().In(s.Loc)
}

// Reconcile merges one machine report into the store: the first report for a
// machine ID creates a record, every later one fully refreshes it. The
// returned flag is true when a record was created.
func (s *Service) Reconcile(obs *models.Observation) (*models.InventoryRecord, bool, error) {
	if missing := obs.MissingFields(); missing != nil {
		return nil, false, &Error{
			Kind:          KindValidation,
			Message:       "missing required fields",
			MissingFields: missing,
		}
	}

	var activation *time.Time
	if obs.HasActivation {
		t, err := timeparse.Normalize(obs.ComputerActivation, s.Loc)
		if err != nil {
			return nil, false, &Error{Kind: KindInvalidFormat, Message: err.Error(), Err: err}
		}
		activation = t
	}

	var (
		rec     *models.InventoryRecord
		created bool
	)
	err := s.DB.Transact(func(tx *db.Tx) error {
		existing, err := tx.Get(*obs.MachineID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			created = true
			rec = &models.InventoryRecord{
				MachineID: *obs.MachineID,
				CreatedAt: s.now(),
			}
			applyCore(rec, obs)
			if obs.HasActivation {
				rec.ComputerActivation = activation
			}
			if obs.HasActivationDays {
				rec.ActivationDays = obs.ActivationDays
			}
			return tx.Insert(rec)
		case err != nil:
			return err
		}

		rec = existing
		applyCore(rec, obs)
		if obs.HasActivation {
			rec.ComputerActivation = activation
		}
		if obs.HasActivationDays {
			rec.ActivationDays = obs.ActivationDays
		}
		stamp := s.now()
		rec.UpdatedAt = &stamp
		return tx.Update(rec)
	})
	if err != nil {
		return nil, false, serviceErr(err, "failed to create/update inventory")
	}
	return rec, created, nil
}

// applyCore copies the always-refreshed fields of the report onto the record,
// truncating to column limits. Absent optional fields fall back to their
// defaults: empty os_version, zero memory_used_mb, null computer_model.
func applyCore(rec *models.InventoryRecord, obs *models.Observation) {
	rec.Hostname = models.Truncate(*obs.Hostname, models.MaxHostnameLen)
	rec.IP = models.Truncate(*obs.IP, models.MaxIPLen)
	rec.OS = models.Truncate(*obs.OS, models.MaxOSLen)
	rec.OSVersion = models.Truncate(obs.OSVersion, models.MaxOSVersionLen)
	rec.CPUPercent = *obs.CPUPercent
	rec.MemoryTotalMB = *obs.MemoryTotalMB
	rec.MemoryUsedMB = obs.MemoryUsedMB
	if obs.ComputerModel == "" {
		rec.ComputerModel = nil
	} else {
		model := models.Truncate(obs.ComputerModel, models.MaxModelLen)
		rec.ComputerModel = &model
	}
}

// PartialUpdate patches the activation fields of an existing record. Setting
// computer_activation alone does not refresh updated_at; any change touching
// activation_days does.
func (s *Service) PartialUpdate(machineID string, patch *models.ActivationPatch) (*models.InventoryRecord, error) {
	var rec *models.InventoryRecord
	err := s.DB.Transact(func(tx *db.Tx) error {
		existing, err := tx.Get(machineID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return &Error{
				Kind:    KindNotFound,
				Message: fmt.Sprintf("inventory not found: %s", machineID),
			}
		case err != nil:
			return err
		}
		rec = existing

		daysChanged := false
		if patch.HasActivation {
			t, err := timeparse.Normalize(patch.ComputerActivation, s.Loc)
			if err != nil {
				return &Error{Kind: KindInvalidFormat, Message: err.Error(), Err: err}
			}
			rec.ComputerActivation = t
		}
		if patch.HasActivationDays {
			rec.ActivationDays = patch.ActivationDays
			daysChanged = true
		}
		if !patch.HasActivation && !patch.HasActivationDays {
			return &Error{
				Kind:    KindValidation,
				Message: "no valid fields provided for update",
			}
		}

		if daysChanged {
			stamp := s.now()
			rec.UpdatedAt = &stamp
		}
		return tx.Update(rec)
	})
	if err != nil {
		return nil, serviceErr(err, "failed to update inventory")
	}
	return rec, nil
}

// Get returns the record with the given machine ID.
func (s *Service) Get(machineID string) (*models.InventoryRecord, error) {
	rec, err := s.DB.Get(machineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("inventory not found: %s", machineID),
		}
	}
	if err != nil {
		return nil, &Error{Kind: KindDatabase, Message: "failed to load inventory", Err: err}
	}
	return rec, nil
}

// List returns all records ordered by the given sort key and direction.
func (s *Service) List(orderBy, direction string) ([]*models.InventoryRecord, error) {
	records, err := s.DB.List(orderBy, direction)
	if err != nil {
		return nil, &Error{Kind: KindDatabase, Message: "failed to list inventory", Err: err}
	}
	return records, nil
}

// Delete removes the record with the given machine ID.
func (s *Service) Delete(machineID string) error {
	err := s.DB.Delete(machineID)
	if errors.Is(err, sql.ErrNoRows) {
		return &Error{
			Kind:    KindNotFound,
			Message: fmt.Sprintf("inventory not found: %s", machineID),
		}
	}
	if err != nil {
		return &Error{Kind: KindDatabase, Message: "failed to delete inventory", Err: err}
	}
	return nil
}

// Ping verifies the backing store is reachable.
func (s *Service) Ping() error {
	return s.DB.Ping()
}

// serviceErr passes tagged errors through and wraps anything else as a
// database failure with the given message.
func serviceErr(err error, message string) error {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &Error{Kind: KindDatabase, Message: message, Err: err}
}
