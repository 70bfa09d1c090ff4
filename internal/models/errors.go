package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Every specific error in the module wraps exactly one of these,
// so callers can branch on the category with errors.Is.
var (
	ErrInputValidation = errors.New("input validation error")
	ErrStateConflict   = errors.New("state conflict")
	ErrNotFound        = errors.New("not found")
	ErrRemoteRejection = errors.New("remote rejection")
	ErrPartialRead     = errors.New("partial read failure")
)

// RemoteError is an opaque failure returned by the remote authority.
type RemoteError struct {
	Action string
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s rejected: %v", e.Action, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	return []error{ErrRemoteRejection, e.Err}
}

// FirstLine returns the first line of the remote failure reason, which is
// what gets surfaced to users.
func (e *RemoteError) FirstLine() string {
	if e.Err == nil {
		return "Transaction failed"
	}
	msg := strings.TrimSpace(e.Err.Error())
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = strings.TrimSpace(msg[:i])
	}
	if msg == "" {
		return "Transaction failed"
	}
	return msg
}

// NewRemoteError wraps err as a remote rejection of action.
func NewRemoteError(action string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteError{Action: action, Err: err}
}
