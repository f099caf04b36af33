package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("store: persistence failure")
)

// PersistenceError wraps a failed read or write against the database.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPersistence) match any PersistenceError.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
