package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/socialfeed/backend/internal/repositories"
)

var (
	// ErrNotFound indicates a referenced user or post does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates a request the core refuses to act on, such as a self-friend.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPartialMutation indicates a multi-record write stopped halfway.
	ErrPartialMutation = errors.New("partial mutation")
	// ErrStoreUnavailable indicates a repository, lock or media store call failed.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrStoreTimeout indicates a store call exceeded its deadline.
	ErrStoreTimeout = fmt.Errorf("%w: timed out", ErrStoreUnavailable)
	// ErrSigningFailure indicates a signed URL could not be produced for a media key.
	ErrSigningFailure = errors.New("signing failure")
)

// PartialMutationError records which half of a friend toggle reached the store.
type PartialMutationError struct {
	UserID  string
	OtherID string
	// Written is the id whose record was persisted before the failure.
	Written string
	Err     error
}

func (e *PartialMutationError) Error() string {
	return fmt.Sprintf("partial mutation: friend lists of %s and %s diverged after writing %s: %v",
		e.UserID, e.OtherID, e.Written, e.Err)
}

// Is reports ErrPartialMutation as the error's kind.
func (e *PartialMutationError) Is(target error) bool {
	return target == ErrPartialMutation
}

func (e *PartialMutationError) Unwrap() error {
	return e.Err
}

// classify maps collaborator failures onto the core's error kinds.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrStoreUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, repositories.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, ErrStoreTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
	}
}
