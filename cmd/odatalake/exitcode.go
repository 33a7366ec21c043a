package main

// exitCodeError carries the process exit status. Quiet errors have already
// been reported.
type exitCodeError struct {
	code  int
	msg   string
	quiet bool
}

func (e *exitCodeError) Error() string {
	return e.msg
}

func (e *exitCodeError) ExitCode() int {
	return e.code
}

func (e *exitCodeError) Quiet() bool {
	return e.quiet
}

func usageError(msg string) error {
	return &exitCodeError{code: 2, msg: msg}
}
