package inventory

import (
	"fmt"
	"strings"
)

// Kind classifies service errors so transports can map them to statuses.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindInvalidFormat
	KindDatabase
)

// Error is a service-level failure tagged with a Kind. Validation failures
// list the offending fields in MissingFields.
type Error struct {
	Kind          Kind
	Message       string
	MissingFields []string
	Err           error
}

func (e *Error) Error() string {
	if len(e.MissingFields) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.MissingFields, ", "))
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}
