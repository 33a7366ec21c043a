package odata

import "errors"

// Sentinels for the three client-input fault kinds. Use errors.Is to match.
var (
	ErrParse       = errors.New("parse error")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalid     = errors.New("invalid query")
)

// Error is a client-input fault raised by the parser or the compiler.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func parseErr(msg string) error {
	return &Error{Kind: ErrParse, Msg: msg}
}

func unsupportedErr(msg string) error {
	return &Error{Kind: ErrUnsupported, Msg: msg}
}

func invalidErr(msg string) error {
	return &Error{Kind: ErrInvalid, Msg: msg}
}

// IsClientError reports whether err is one of the input-fault kinds.
func IsClientError(err error) bool {
	var oerr *Error
	return errors.As(err, &oerr)
}
