package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("account not found")
	ErrInsufficientBalance = errors.New("insufficient account balance")
	// ErrAlreadyExists is reserved for the user-management collaborator.
	ErrAlreadyExists = errors.New("already exists")

	// ErrVersionConflict is returned by a Store when the snapshot being saved
	// is older than the stored one.
	ErrVersionConflict = errors.New("account was modified concurrently")
	// ErrDuplicateNumber is returned by a Store when inserting an account
	// whose number is already taken.
	ErrDuplicateNumber = errors.New("account number already in use")

	ErrConcurrentUpdate = errors.New("account is being updated concurrently, try again")
	ErrNumbersExhausted = errors.New("could not allocate a free account number")
)

// StoreError wraps a persistence failure that happened after the input was
// accepted. Nothing was committed when it is returned.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
