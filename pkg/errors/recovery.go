package errors

import (
	"fmt"
	"runtime/debug"
)

// Guard runs fn and returns a panic inside it as a permanent ErrInternal
// carrying the stack trace.
func Guard(fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause, ok := r.(error)
		if !ok {
			cause = fmt.Errorf("panic: %v", r)
		}
		err = ErrInternal.
			WithCause(cause).
			WithDetail("panic", true).
			WithDetail("stack_trace", string(debug.Stack())).
			Permanent()
	}()
	return fn()
}
