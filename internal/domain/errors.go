package domain

import "errors"

// Domain errors
var (
	ErrInvalidScore        = errors.New("score must be an integer between 1 and 10")
	ErrInvalidGameID       = errors.New("game id must be between 1 and 100 characters")
	ErrInvalidAddress      = errors.New("invalid player address")
	ErrDuplicateSubmission = errors.New("game already recorded for player")
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrDayNotElapsed       = errors.New("day has not elapsed yet")
	ErrAlreadyMinted       = errors.New("champion already minted for day")
	ErrNoWinnerForDay      = errors.New("no scores recorded for day")
	ErrMinterNotSet        = errors.New("champion minter not linked")
	ErrMinterAlreadySet    = errors.New("champion minter already linked")
	ErrTokenNotFound       = errors.New("token not found")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInternalError       = errors.New("internal server error")
)

// IsValidationError reports whether err was caused by caller input
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidScore) ||
		errors.Is(err, ErrInvalidGameID) ||
		errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidRequest)
}

// IsNotFoundError checks if an error is a not-found type error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNoWinnerForDay) || errors.Is(err, ErrTokenNotFound)
}

// IsConflictError reports whether err signals a repeated one-shot operation
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateSubmission) ||
		errors.Is(err, ErrAlreadyMinted) ||
		errors.Is(err, ErrMinterAlreadySet)
}
