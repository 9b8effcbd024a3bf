package remote

import (
	"errors"
	"fmt"
)

// ErrRemote matches every error produced by a failed remote operation.
var ErrRemote = errors.New("remote operation failed")

// Error describes one failed remote call.
type Error struct {
	Op  string // subscribe, fetch, write, update, delete
	Key string // empty for subscribe
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes both ErrRemote and the underlying cause to errors.Is.
func (e *Error) Unwrap() []error {
	return []error{ErrRemote, e.Err}
}
