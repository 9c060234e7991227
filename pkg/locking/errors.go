package locking

import (
	"errors"
	"fmt"
)

var (
	// ErrUnresolvableEntity classifies entities the metadata resolver cannot map to a lock key.
	// It is a caller contract violation, never a "not supported" outcome.
	ErrUnresolvableEntity = errors.New("locking: unresolvable entity")
	// ErrInvalidPolicy classifies a policy that fails validation.
	ErrInvalidPolicy = errors.New("locking: invalid policy")
	// ErrDuplicatePolicy classifies two policies declared for the same object name.
	ErrDuplicatePolicy = errors.New("locking: duplicate policy")
	// ErrNoPolicySource classifies a resolver constructed without a source.
	ErrNoPolicySource = errors.New("locking: policy source is required")
)

func lockingError(kind error, message string) error {
	if message == "" {
		return kind
	}
	return fmt.Errorf("%w: %s", kind, message)
}
