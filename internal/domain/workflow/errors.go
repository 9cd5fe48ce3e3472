package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound covers both missing and cross-user access; callers must not
	// be able to distinguish the two.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSpec indicates a workflow spec that fails admission validation.
	ErrInvalidSpec = errors.New("invalid spec")
	// ErrNotCancellable indicates a cancel request against a non-PENDING job.
	ErrNotCancellable = errors.New("not cancellable")
	// ErrNotFinished indicates a result read against a job that has not run to
	// a result-bearing state yet.
	ErrNotFinished = errors.New("not finished")
)

func NotFoundError(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(msg))
}

func InvalidSpecError(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpec, strings.TrimSpace(msg))
}

func NotCancellableError(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotCancellable, strings.TrimSpace(msg))
}

func NotFinishedError(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFinished, strings.TrimSpace(msg))
}
