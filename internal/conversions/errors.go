package conversions

import (
	"fmt"
	"time"
)

// Duplicate rejection types. Session-level duplicates are more specific and
// always reported before email-level ones.
const (
	DuplicateTypeSession = "session"
	DuplicateTypeEmail   = "email"
)

// ValidationError reports missing or malformed required input. No state is
// mutated when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %v", e.Fields)
}

// DuplicateError reports a business-rule conflict: the session or the email
// already has a conversion record. It carries enough context for the caller
// to show a helpful message.
type DuplicateError struct {
	Type          string // DuplicateTypeSession or DuplicateTypeEmail
	ExistingEmail string
	RegisteredAt  time.Time
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s registration (registered %s)",
		e.Type, e.RegisteredAt.Format(RegistrationDateFormat))
}

// RegistrationDate returns the prior registration's date in the
// human-facing format.
func (e *DuplicateError) RegistrationDate() string {
	return e.RegisteredAt.Format(RegistrationDateFormat)
}
