package blockfs

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// FSError is the error type returned by every core operation. Sentinel values
// below cover the full failure taxonomy; use errors.Is to test against them.
type FSError interface {
	error
	WithMessage(message string) FSError
	Wrap(err error) FSError
}

type baseError string

const rootError = baseError("")

var ErrInvalidPath = rootError.WithMessage("Invalid path")
var ErrNameTooLong = rootError.WithMessage("File name too long")
var ErrExists = rootError.WithMessage("File exists")
var ErrNotFound = rootError.WithMessage("No such file or directory")
var ErrDirectoryFull = rootError.WithMessage("No free directory entry")
var ErrNoSpace = rootError.WithMessage("No space left on device")
var ErrNotEmpty = rootError.WithMessage("Directory not empty")
var ErrNotInitialized = rootError.WithMessage("File system not initialized")
var ErrMalformedRecord = rootError.WithMessage("Malformed on-disk record")
var ErrCorruptChain = rootError.WithMessage("Corrupt allocation chain")
var ErrIOFailed = rootError.WithMessage("Input/output error")

func (e baseError) Error() string {
	return string(e)
}

func (e baseError) WithMessage(message string) FSError {
	return customError{
		message:       message,
		originalError: e,
	}
}

func (e baseError) Wrap(err error) FSError {
	return customError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

// -----------------------------------------------------------------------------

type customError struct {
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a
// string describing the error.
func (e customError) Error() string {
	return e.message
}

func (e customError) WithMessage(message string) FSError {
	return customError{
		message:       fmt.Sprintf("%s: %s", e.message, message),
		originalError: e,
	}
}

func (e customError) Wrap(err error) FSError {
	return customError{
		message:       fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		originalError: multierror.Append(e, err),
	}
}

func (e customError) Unwrap() error {
	return e.originalError
}
