package rails

import (
	"errors"
	"fmt"
)

// ErrUnsupported marks an operation a rail does not implement, e.g. payouts
// over the card rail.
var ErrUnsupported = errors.New("operation not supported by this rail")

// RailError classifies a rail failure. Transient failures (timeouts, 5xx,
// rate limits) are retried by the scheduler; permanent failures (4xx
// semantic rejections) move the payment to FAILED and alert an operator.
type RailError struct {
	Rail      string
	Transient bool
	Err       error
}

func (e *RailError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}

	return fmt.Sprintf("%s rail %s failure: %v", e.Rail, kind, e.Err)
}

func (e *RailError) Unwrap() error {
	return e.Err
}

func NewTransient(rail string, err error) error {
	return &RailError{Rail: rail, Transient: true, Err: err}
}

func NewPermanent(rail string, err error) error {
	return &RailError{Rail: rail, Transient: false, Err: err}
}

func IsTransient(err error) bool {
	var railErr *RailError
	return errors.As(err, &railErr) && railErr.Transient
}

func IsPermanent(err error) bool {
	var railErr *RailError
	return errors.As(err, &railErr) && !railErr.Transient
}
