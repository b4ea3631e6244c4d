package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMemoryNotFound     = errors.New("memory record not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrRecordNotFound     = errors.New("record not found")
	ErrUnknownTool        = errors.New("unknown tool")
	ErrInvalidArguments   = errors.New("invalid tool arguments")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrEmptyInput         = errors.New("user input is empty")
)

// ErrorKind distinguishes the failure classes a user can see.
type ErrorKind string

const (
	KindTransport       ErrorKind = "transport"
	KindValidation      ErrorKind = "validation"
	KindNormalization   ErrorKind = "normalization"
	KindToolExecution   ErrorKind = "tool_execution"
	KindBackup          ErrorKind = "backup"
	KindCacheCorruption ErrorKind = "cache_corruption"
)

// TurnError aborts a whole turn. Only transport and validation failures at the
// model boundary produce one.
type TurnError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *TurnError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "turn failed"
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *TurnError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// KindOf reports the kind carried by err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var turnErr *TurnError
	if errors.As(err, &turnErr) && turnErr != nil {
		return turnErr.Kind
	}
	var kinded interface{ ErrorKind() ErrorKind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return ""
}
