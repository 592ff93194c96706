package verification

import (
	"errors"
	"fmt"

	"github.com/tablewise/portal/pkg/errs"
)

type ErrorKind string

const (
	FetchFailed  ErrorKind = "FetchFailed"
	SaveFailed   ErrorKind = "SaveFailed"
	VerifyFailed ErrorKind = "VerifyFailed"
)

const (
	DefaultFetchDetail  = "Failed to fetch project data"
	DefaultSaveDetail   = "Failed to save changes"
	DefaultVerifyDetail = "Failed to verify table"
)

// Precondition errors. The session state is untouched when one of these is
// returned.
var (
	ErrNotLoaded       = errors.New("no project loaded")
	ErrNoCurrentTable  = errors.New("no current table")
	ErrReadOnly        = errors.New("table is verified and can not be edited")
	ErrAlreadyVerified = errors.New("table is already verified")
	ErrColumnIndex     = errors.New("column index out of range")
	ErrTableIndex      = errors.New("table index out of range")
	ErrClosed          = errors.New("session closed")
	ErrSuperseded      = errors.New("result discarded, project was reloaded")

	errEmptyProject = errors.New("gateway returned no project")
)

// Error is a gateway failure recorded on the session.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *Error {
	detail := errs.DetailOf(err)
	if detail == "" {
		detail = defaultDetail(kind)
	}

	return &Error{
		Kind:   kind,
		Detail: detail,
		Err:    err,
	}
}

func defaultDetail(kind ErrorKind) string {
	switch kind {
	case FetchFailed:
		return DefaultFetchDetail
	case SaveFailed:
		return DefaultSaveDetail
	case VerifyFailed:
		return DefaultVerifyDetail
	}

	return ""
}
