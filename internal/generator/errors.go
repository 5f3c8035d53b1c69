package generator

import (
	"errors"
	"fmt"
)

var (
	// ErrTargetNotEmpty is matched by every *TargetNotEmptyError.
	ErrTargetNotEmpty = errors.New("target not empty")

	// ErrWriteFailure is matched by every *WriteFailureError.
	ErrWriteFailure = errors.New("write failure")
)

// TargetNotEmptyError reports a target that already holds files (or is a
// file) when overwriting was not requested.
type TargetNotEmptyError struct {
	Path string
}

func (e *TargetNotEmptyError) Error() string {
	return fmt.Sprintf("target %s already exists and is not empty (use --overwrite to replace it)", e.Path)
}

func (e *TargetNotEmptyError) Is(target error) bool {
	return target == ErrTargetNotEmpty
}

// WriteFailureError reports a filesystem error during commit. The target is
// left as it was before the commit started.
type WriteFailureError struct {
	Path string
	Err  error
}

func (e *WriteFailureError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteFailureError) Unwrap() error { return e.Err }

func (e *WriteFailureError) Is(target error) bool {
	return target == ErrWriteFailure
}
