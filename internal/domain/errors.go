package domain

import "errors"

// Battle errors
var (
	ErrBattleNotFound       = errors.New("battle not found")
	ErrInvalidState         = errors.New("invalid battle state for this action")
	ErrAlreadyHasOpponent   = errors.New("battle already has an opponent")
	ErrNotParticipant       = errors.New("user is not a participant in this battle")
	ErrSpectatorsDisallowed = errors.New("spectators are not allowed in this battle")
	ErrValidation           = errors.New("invalid battle payload")
	ErrConflict             = errors.New("battle was modified concurrently")
)

// User errors
var (
	ErrUserNotFound = errors.New("user not found")
)
