package dal

import (
	"errors"
)

var ErrPayeeNotFound = errors.New("payee not found")
