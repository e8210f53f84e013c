package ledger

import "fmt"

// ValidationError reports a record that failed domain validation. The ledger
// is never touched when one is returned.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("validation failed: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ScopeError reports an operation attempted outside its allowed scoping
// state, e.g. adding a record before a household is selected.
type ScopeError struct {
	Op string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("%s requires a selected household", e.Op)
}

// NotFoundError reports a referenced entity that does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// PersistenceError wraps a failure from the backing store. The local snapshot
// is left unchanged unless the error documents otherwise (the savings
// linkage surfaces a partial write this way).
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
