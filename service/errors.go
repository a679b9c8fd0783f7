package service

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable identifier reported to API callers.
type ErrorKind string

const (
	KindInvalidImage        ErrorKind = "invalid_image"
	KindUnknownGarmentType  ErrorKind = "unknown_garment_type"
	KindTemplateNotFound    ErrorKind = "template_not_found"
	KindSegmentationFailure ErrorKind = "segmentation_failure"
	KindBusy                ErrorKind = "busy"
	KindInvalidParams       ErrorKind = "invalid_params"
)

var (
	ErrInvalidImage        = &Error{Kind: KindInvalidImage}
	ErrUnknownGarmentType  = &Error{Kind: KindUnknownGarmentType}
	ErrTemplateNotFound    = &Error{Kind: KindTemplateNotFound}
	ErrSegmentationFailure = &Error{Kind: KindSegmentationFailure}
	ErrBusy                = &Error{Kind: KindBusy}
	ErrInvalidParams       = &Error{Kind: KindInvalidParams}
)

// Error is a job failure with a kind and a human readable detail.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func newError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrBusy) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
