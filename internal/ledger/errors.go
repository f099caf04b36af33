package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrReconcile matches every *ReconcileError.
	ErrReconcile = errors.New("ledger: reconcile failed")
	// ErrInvalid marks input rejected before anything is written.
	ErrInvalid = errors.New("ledger: invalid input")
)

// ReconcileError reports that a write succeeded but recomputing the spent
// total of LineID did not.
type ReconcileError struct {
	LineID string
	Err    error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("ledger: reconcile line %s: %v", e.LineID, e.Err)
}

func (e *ReconcileError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrReconcile) match any ReconcileError.
func (e *ReconcileError) Is(target error) bool { return target == ErrReconcile }
