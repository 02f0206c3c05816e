package services

import "github.com/penne-app/penne/internal/errors"

// Service errors
var (
	ErrNotSignedIn       = errors.Unauthenticated("sign in required")
	ErrScoreOutOfRange   = errors.Validation("score must be between 1 and 10")
	ErrHallNotFound      = errors.NotFound("dining hall not found")
	ErrDishNotFound      = errors.NotFound("dish not found")
	ErrUserNotFound      = errors.NotFound("user not found")
	ErrEmptyComment      = errors.Validation("comment is empty")
	ErrCommentTooLong    = errors.Validation("comment is longer than 280 characters")
	ErrInvalidUsername   = errors.Validation("username must be 3-30 characters of a-z, 0-9, _ or .")
	ErrUsernameTaken     = errors.Conflict("username is already taken")
	ErrNoUsername        = errors.NotFound("profile has no username")
	ErrSelfFriend        = errors.Validation("cannot add yourself as a friend")
	ErrInvalidHallsFile  = errors.InvalidInput("invalid dining halls file")
	ErrInvalidAvatarPath = errors.Validation("invalid avatar path")
)
