package batch

import (
	"fmt"
	"runtime"
)

// stackBufferSize bounds the captured stack; runtime.Stack truncates past it.
const stackBufferSize = 8192

// PanicError wraps a panic recovered from an operation together with the
// goroutine stack at the point of the panic. The item settles as error.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

// Error returns the panic value followed by the stack trace.
func (e *PanicError) Error() string {
	return fmt.Sprintf("operation panicked: %v\n\n%s", e.Value, e.Stack)
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, stackBufferSize)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}
