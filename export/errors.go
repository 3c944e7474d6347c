package export

import (
	"context"
	"errors"

	errorslib "github.com/goliatone/go-errors"
)

// ErrorKind defines export error kinds.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindEnvironment  ErrorKind = "environment"
	KindNavigation   ErrorKind = "navigation"
	KindCapture      ErrorKind = "capture"
	KindVerification ErrorKind = "verification"
	KindNotFound     ErrorKind = "not_found"
	KindTimeout      ErrorKind = "timeout"
	KindCanceled     ErrorKind = "canceled"
	KindInternal     ErrorKind = "internal"
	KindNotImpl      ErrorKind = "not_implemented"
)

// Process exit codes returned by ExitCode.
const (
	ExitOK           = 0
	ExitFailure      = 1
	ExitValidation   = 2
	ExitEnvironment  = 3
	ExitNavigation   = 4
	ExitCapture      = 5
	ExitVerification = 6
)

// ExportError wraps errors with a kind.
type ExportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ExportError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewError creates a new export error.
func NewError(kind ErrorKind, msg string, err error) *ExportError {
	return &ExportError{Kind: kind, Msg: msg, Err: err}
}

// AsGoError maps an error into a go-errors error.
func AsGoError(err error) *errorslib.Error {
	if err == nil {
		return nil
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return ge
	}

	msg := err.Error()
	kind := KindFromError(err)

	var exportErr *ExportError
	if errors.As(err, &exportErr) && exportErr.Msg != "" {
		msg = exportErr.Msg
	}

	switch kind {
	case KindValidation:
		return errorslib.New(msg, errorslib.CategoryValidation).WithTextCode("validation")
	case KindNotFound:
		return errorslib.New(msg, errorslib.CategoryNotFound).WithTextCode("not_found")
	case KindEnvironment:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("environment")
	case KindNavigation:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("navigation")
	case KindCapture:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("capture")
	case KindVerification:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("verification")
	case KindTimeout:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("timeout")
	case KindCanceled:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("canceled")
	case KindNotImpl:
		return errorslib.New(msg, errorslib.CategoryOperation).WithTextCode("not_implemented")
	default:
		return errorslib.New(msg, errorslib.CategoryInternal).WithTextCode("internal")
	}
}

// KindFromError maps an error to its export error kind.
//
// Context errors win over the wrapping kind so a navigation that ran out of time
// reports timeout rather than navigation.
func KindFromError(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind
	}

	var ge *errorslib.Error
	if errors.As(err, &ge) {
		return kindFromGoError(ge)
	}

	return KindInternal
}

// kindFromGoError reverses AsGoError. Operation errors carry the kind as text code.
func kindFromGoError(ge *errorslib.Error) ErrorKind {
	switch ge.Category {
	case errorslib.CategoryValidation, errorslib.CategoryBadInput:
		return KindValidation
	case errorslib.CategoryNotFound:
		return KindNotFound
	case errorslib.CategoryOperation:
		switch kind := ErrorKind(ge.TextCode); kind {
		case KindEnvironment, KindNavigation, KindCapture, KindVerification,
			KindTimeout, KindCanceled, KindNotImpl:
			return kind
		}
	}
	return KindInternal
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindFromError(err) {
	case KindValidation:
		return ExitValidation
	case KindEnvironment:
		return ExitEnvironment
	case KindNavigation, KindTimeout, KindNotFound:
		return ExitNavigation
	case KindCapture:
		return ExitCapture
	case KindVerification:
		return ExitVerification
	default:
		return ExitFailure
	}
}
