package pool

import (
	"context"
	"runtime"
)

// execute runs a single thunk with the configured hooks and panic recovery.
// A panic is converted into a *PanicError.
func (tp *TaskPool[R]) execute(ctx context.Context, idx int, thunk Thunk[R]) (result R, err error) {
	if tp.beforeTaskStart != nil {
		tp.beforeTaskStart(idx)
	}
	if tp.onTaskEnd != nil {
		defer func() {
			tp.onTaskEnd(idx, err)
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = &PanicError{Index: idx, Value: r, Stack: buf[:n]}
		}
	}()

	return thunk(ctx)
}
