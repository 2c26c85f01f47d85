package service

import (
	"errors"
	"fmt"

	"github.com/S1riyS/tinyfs/internal/pkg/kerrors"
	"github.com/S1riyS/tinyfs/internal/repository"
)

// ServiceError is the error returned for every user-visible failure.
// Two ServiceErrors match under errors.Is when their codes are equal, so the
// Err* values below can be used as kinds.
type ServiceError struct {
	Code    int64
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func (e *ServiceError) GetCode() int64 {
	return e.Code
}

func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code == e.Code
}

var (
	ErrInvalidPath      = &ServiceError{Code: kerrors.EINVAL, Message: "invalid path"}
	ErrNotFound         = &ServiceError{Code: kerrors.ENOENT, Message: "file not found"}
	ErrExhausted        = &ServiceError{Code: kerrors.ENOSPC, Message: "no space left"}
	ErrInvalidHandle    = &ServiceError{Code: kerrors.EBADF, Message: "invalid file handle"}
	ErrTypeMismatch     = &ServiceError{Code: kerrors.EPERM, Message: "operation not permitted for file type"}
	ErrCapacityExceeded = &ServiceError{Code: kerrors.EFBIG, Message: "file would exceed one block"}
	ErrExists           = &ServiceError{Code: kerrors.EEXIST, Message: "file already exists"}
	ErrSymlinkLoop      = &ServiceError{Code: kerrors.ELOOP, Message: "too many levels of symbolic links"}
	ErrDestroyed        = &ServiceError{Code: kerrors.ENODEV, Message: "filesystem destroyed"}
)

func newError(code int64, format string, args ...any) *ServiceError {
	return &ServiceError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// fromRepository converts a repository sentinel into a ServiceError carrying msg.
func fromRepository(err error, msg string) error {
	switch {
	case errors.Is(err, repository.ErrNoSpace):
		return newError(kerrors.ENOSPC, "%s: %s", msg, "no space left")
	case errors.Is(err, repository.ErrExists):
		return newError(kerrors.EEXIST, "%s: %s", msg, "file already exists")
	case errors.Is(err, repository.ErrNotFound):
		return newError(kerrors.ENOENT, "%s: %s", msg, "file not found")
	case errors.Is(err, repository.ErrBadHandle):
		return newError(kerrors.EBADF, "%s: %s", msg, "invalid file handle")
	}
	return fmt.Errorf("%s: %w", msg, err)
}
