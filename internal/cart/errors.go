package cart

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
)

// ValidationError reports malformed mutation input. It is raised before the
// store is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps a session store read or write failure.
type StorageError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("cart store %s %q: %v", e.Op, e.SessionID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op, sessionID string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, SessionID: sessionID, Err: err}
}

func isValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return isValidation(err) }

// IsStorage reports whether err came from the session store.
func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }
