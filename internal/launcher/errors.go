package launcher

import "fmt"

// ExitError is a fatal launcher failure carrying the process exit status.
// The launcher has already reported it on the console.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%v (exit status %d)", e.Err, e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
