// Package errs defines the error model shared by every layer of the portal.
//
// An error is built with E from any combination of an Op, a Kind, a
// Parameter, a UserName, a Detail and an underlying error. Errors nest: the
// outer error inherits the Kind and Detail of the inner one when it does not
// set its own, so handlers can map a deeply wrapped error to a status code.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Op describes the operation that failed, usually "type.Method".
type Op string

// Parameter names the request parameter that caused the error.
type Parameter string

// UserName is the user on whose behalf the operation ran.
type UserName string

// Detail is a human readable explanation that is safe to show the end user.
type Detail string

// Kind classifies an error.
type Kind uint8

const (
	Other Kind = iota
	Internal
	InvalidRequest
	Validation
	Unauthenticated
	Unauthorized
	NotExist
	Exist
	Conflict
	IO
	Database
)

func (k Kind) String() string {
	switch k {
	case Internal:
		return "internal_error"
	case InvalidRequest:
		return "invalid_request_error"
	case Validation:
		return "validation_error"
	case Unauthenticated:
		return "unauthenticated_error"
	case Unauthorized:
		return "unauthorized_error"
	case NotExist:
		return "not_exist_error"
	case Exist:
		return "exist_error"
	case Conflict:
		return "conflict_error"
	case IO:
		return "io_error"
	case Database:
		return "database_error"
	}

	return "other_error"
}

type Error struct {
	Op     Op
	Kind   Kind
	Param  Parameter
	User   UserName
	Detail Detail
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(string(e.Op))
	}

	if e.Kind != Other {
		if b.Len() > 0 {
			b.WriteString(": ")
		}

		b.WriteString(e.Kind.String())
	}

	if e.Param != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}

		fmt.Fprintf(&b, "param %s", e.Param)
	}

	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}

		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an error from its arguments. It panics when called without any,
// since that is always a programming mistake.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("call to errs.E with no arguments")
	}

	e := &Error{}

	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case Parameter:
			e.Param = a
		case UserName:
			e.User = a
		case Detail:
			e.Detail = a
		case string:
			e.Err = errors.New(a)
		case *Error:
			cp := *a
			e.Err = &cp
		case error:
			e.Err = a
		case nil:
		default:
			return fmt.Errorf("errs.E: unknown argument type %T, value %v", arg, arg)
		}
	}

	var prev *Error
	if errors.As(e.Err, &prev) {
		if e.Kind == Other {
			e.Kind = prev.Kind
		}

		if e.Detail == "" {
			e.Detail = prev.Detail
		}

		if e.User == "" {
			e.User = prev.User
		}

		if e.Param == "" {
			e.Param = prev.Param
		}
	}

	return e
}

// Str returns an error that formats as the given text.
func Str(text string) error {
	return errors.New(text)
}

// KindOf returns the first kind set in the chain of err, or Other.
func KindOf(err error) Kind {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return Other
		}

		if e.Kind != Other {
			return e.Kind
		}

		err = e.Err
	}

	return Other
}

// KindIs reports whether err has the given kind.
func KindIs(kind Kind, err error) bool {
	return KindOf(err) == kind
}

// DetailOf returns the first user facing detail in the chain of err.
func DetailOf(err error) string {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return ""
		}

		if e.Detail != "" {
			return string(e.Detail)
		}

		err = e.Err
	}

	return ""
}

// OpStack returns the operations err passed through, outermost first.
func OpStack(err error) []string {
	var ops []string

	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			break
		}

		if e.Op != "" {
			ops = append(ops, string(e.Op))
		}

		err = e.Err
	}

	return ops
}

// Cause returns the innermost error that is not an *Error.
func Cause(err error) error {
	for {
		var e *Error
		if !errors.As(err, &e) || e.Err == nil {
			return err
		}

		err = e.Err
	}
}
