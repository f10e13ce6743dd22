package dal

import "errors"

var (
	ErrProjectNotFound      = errors.New("project not found")
	ErrNegativeShareWeight  = errors.New("share weight must not be negative")
	ErrParticipationMissing = errors.New("participation not found")
)
