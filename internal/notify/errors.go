package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateID is matched by every DuplicateIDError.
	ErrDuplicateID = errors.New("duplicate notification id")

	// ErrEmptyID is returned when adding a notification without an id.
	ErrEmptyID = errors.New("notification id is empty")
)

// DuplicateIDError reports an Add whose id was already issued by the store,
// including ids of records that have since been removed.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("notification %q: %s", e.ID, ErrDuplicateID)
}

// Is lets errors.Is(err, ErrDuplicateID) match.
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// PersistenceError is a failed read, write or decode of a durable slot.
// It is logged and latched, never returned into unrelated code paths.
type PersistenceError struct {
	Slot string
	Op   string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s slot %q: %v", e.Op, e.Slot, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Reading reports whether the failure happened while loading a slot rather
// than saving one.
func (e *PersistenceError) Reading() bool {
	return e.Op == "read" || e.Op == "decode"
}
