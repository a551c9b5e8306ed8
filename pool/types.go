package pool

import (
	"context"
	"fmt"
)

// Thunk is a deferred unit of work bound to everything it needs except the
// context. A thunk that returns a non-nil error is a failure.
type Thunk[R any] func(ctx context.Context) (R, error)

// PanicError is returned for a thunk that panicked instead of returning.
type PanicError struct {
	Index int
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %d panicked: %v\nstack trace:\n%s", e.Index, e.Value, e.Stack)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
