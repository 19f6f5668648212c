package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Column limits enforced on every write path. Values longer than the limit
// are truncated, not rejected.
const (
	MaxHostnameLen  = 100
	MaxIPLen        = 45
	MaxOSLen        = 100
	MaxOSVersionLen = 100
	MaxModelLen     = 100
)

// InventoryRecord is the stored state of one machine. Pointer fields are
// nullable and serialize as explicit JSON nulls.
type InventoryRecord struct {
	MachineID          string     `json:"machine_id"`
	Hostname           string     `json:"hostname"`
	IP                 string     `json:"ip"`
	OS                 string     `json:"os"`
	OSVersion          string     `json:"os_version"`
	CPUPercent         float64    `json:"cpu_percent"`
	MemoryTotalMB      int64      `json:"memory_total_mb"`
	MemoryUsedMB       int64      `json:"memory_used_mb"`
	ComputerModel      *string    `json:"computer_model"`
	ComputerActivation *time.Time `json:"computer_activation"`
	ActivationDays     *int       `json:"activation_days"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at"`
}

// Observation is one machine report as posted by an agent. Required fields
// are pointers so a missing key can be told apart from a zero value.
// ComputerActivation accepts any JSON shape; the service normalizes it.
type Observation struct {
	MachineID     *string  `json:"machine_id" validate:"required"`
	Hostname      *string  `json:"hostname" validate:"required"`
	IP            *string  `json:"ip" validate:"required"`
	OS            *string  `json:"os" validate:"required"`
	OSVersion     string   `json:"os_version"`
	CPUPercent    *float64 `json:"cpu_percent" validate:"required"`
	MemoryTotalMB *int64   `json:"memory_total_mb" validate:"required"`
	MemoryUsedMB  int64    `json:"memory_used_mb"`
	ComputerModel string   `json:"computer_model"`

	ComputerActivation any  `json:"computer_activation"`
	ActivationDays     *int `json:"activation_days"`

	// Presence flags distinguish an absent activation key from a null one.
	// Absent keys preserve the stored value; null keys clear it.
	HasActivation     bool `json:"-"`
	HasActivationDays bool `json:"-"`
}

// UnmarshalJSON decodes the observation and records which optional keys were
// present in the payload.
func (o *Observation) UnmarshalJSON(data []byte) error {
	type alias Observation
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*o = Observation(a)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, o.HasActivation = keys["computer_activation"]
	_, o.HasActivationDays = keys["activation_days"]
	return nil
}

// ActivationPatch is the body of a partial update. Only the activation fields
// are patchable; anything else in the payload is ignored.
type ActivationPatch struct {
	ComputerActivation any  `json:"computer_activation"`
	ActivationDays     *int `json:"activation_days"`

	HasActivation     bool `json:"-"`
	HasActivationDays bool `json:"-"`
}

// UnmarshalJSON decodes the patch and records which keys were present.
func (p *ActivationPatch) UnmarshalJSON(data []byte) error {
	type alias ActivationPatch
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*p = ActivationPatch(a)

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	_, p.HasActivation = keys["computer_activation"]
	_, p.HasActivationDays = keys["activation_days"]
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report field names as their JSON keys so validation errors match the
	// wire format.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// MissingFields returns the JSON names of required fields absent from the
// observation, in declaration order. A nil result means the observation is
// complete.
func (o *Observation) MissingFields() []string {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// Truncate limits s to max runes. Multi-byte characters are never split.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
