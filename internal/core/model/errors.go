package model

import (
	"errors"
	"strings"
)

var (
	ErrInvalidRequest  = errors.New("invalid request")
	ErrLaunch          = errors.New("worker launch failed")
	ErrTimeout         = errors.New("worker timed out")
	ErrProcess         = errors.New("worker exited with error")
	ErrArtifactMissing = errors.New("artifact missing")
	ErrArtifactRead    = errors.New("artifact unreadable")
	ErrConflict        = errors.New("scrape already in progress")
	ErrStorage         = errors.New("storage failure")
	ErrExhausted       = errors.New("polling attempts exhausted")
	ErrNoData          = errors.New("no data")
)

// Error attaches a taxonomy kind and captured diagnostics to an underlying
// error. Kind is one of the sentinel errors above.
type Error struct {
	Kind   error
	Msg    string
	Detail string
	Err    error
}

func NewError(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// WithDetail sets captured worker output used for diagnosis.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the taxonomy sentinel carried by err, or nil.
func KindOf(err error) error {
	for _, k := range []error{
		ErrInvalidRequest, ErrConflict, ErrLaunch, ErrTimeout, ErrProcess,
		ErrArtifactMissing, ErrArtifactRead, ErrStorage, ErrExhausted, ErrNoData,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// DetailOf returns the diagnostic detail of the first *Error in err's chain.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

var codes = map[error]string{
	ErrInvalidRequest:  "invalid_request",
	ErrLaunch:          "launch_error",
	ErrTimeout:         "timeout",
	ErrProcess:         "process_error",
	ErrArtifactMissing: "artifact_missing",
	ErrArtifactRead:    "artifact_read_error",
	ErrConflict:        "conflict",
	ErrStorage:         "storage_error",
	ErrExhausted:       "exhausted",
	ErrNoData:          "no_data",
}

// Code returns a stable machine readable name for err's kind, or "internal".
func Code(err error) string {
	if c, ok := codes[KindOf(err)]; ok {
		return c
	}
	return "internal"
}
