package source

import (
	"errors"
	"fmt"

	"github.com/webpulse/webpulse/internal/model"
)

// Failure kinds. Every *Error matches exactly one of these with errors.Is.
var (
	ErrTransport = errors.New("source transport error")
	ErrDomain    = errors.New("source domain error")
	ErrParse     = errors.New("source parse error")
)

// Error describes why one analysis source contributed no data.
type Error struct {
	Source     model.SourceName
	Kind       model.FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s source: %s (status %d)", e.Source, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s source: %s", e.Source, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == model.FailureTransport
	case ErrDomain:
		return e.Kind == model.FailureDomain
	case ErrParse:
		return e.Kind == model.FailureParse
	}
	return false
}

// Failure converts the error into its report form.
func (e *Error) Failure() model.SourceFailure {
	return model.SourceFailure{
		Source:     e.Source,
		Kind:       e.Kind,
		StatusCode: e.StatusCode,
		Message:    e.Message,
	}
}

// AsFailure extracts the report form of any error returned by the client.
// Errors that are not *Error are reported as transport failures.
func AsFailure(name model.SourceName, err error) model.SourceFailure {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Failure()
	}
	return model.SourceFailure{
		Source:  name,
		Kind:    model.FailureTransport,
		Message: err.Error(),
	}
}

func transportError(name model.SourceName, status int, msg string, err error) *Error {
	return &Error{Source: name, Kind: model.FailureTransport, StatusCode: status, Message: msg, Err: err}
}

func domainError(name model.SourceName, status int, msg string) *Error {
	return &Error{Source: name, Kind: model.FailureDomain, StatusCode: status, Message: msg}
}

func parseError(name model.SourceName, status int, err error) *Error {
	return &Error{Source: name, Kind: model.FailureParse, StatusCode: status, Message: "unexpected response body", Err: err}
}
