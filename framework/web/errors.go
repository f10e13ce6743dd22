package web

import "errors"

// ErrBadRequest is the generic sentinel handlers return for malformed input.
var ErrBadRequest = errors.New("bad request")

// ErrorResponse is the uniform JSON error body returned to API clients.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Error carries an application error together with the HTTP status the
// handler wants the client to see.
type Error struct {
	Err    error
	Status int
}

// NewRequestError pairs an expected handler error with its HTTP status code.
func NewRequestError(err error, status int) error {
	return &Error{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error, which is what ends up in the service logs.
func (err *Error) Error() string {
	return err.Err.Error()
}

// shutdown signals that the service must terminate.
type shutdown struct {
	Message string
}

// NewShutdownError returns an error that makes the middleware chain hand
// control back to the base handler for a graceful termination.
func NewShutdownError(message string) error {
	return &shutdown{message}
}

// Error is the implementation of the error interface.
func (s *shutdown) Error() string {
	return s.Message
}

// IsShutdown reports whether the shutdown signal is contained in the
// specified error value.
func IsShutdown(err error) bool {
	if _, ok := err.(*shutdown); ok {
		return true
	}

	return false
}
