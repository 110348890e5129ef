package services

import "errors"

var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when creating a username that is already taken.
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound is returned when the named user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrLastAdmin is returned when an operation would leave no admin account.
	ErrLastAdmin = errors.New("cannot remove the last admin")
	// ErrOriginalAdmin is returned when deleting or demoting the bootstrap admin.
	ErrOriginalAdmin = errors.New("the original admin account cannot be deleted or demoted")
	// ErrSelfDelete is returned when a caller tries to delete their own account.
	ErrSelfDelete = errors.New("you cannot delete your own account")
	// ErrSelfDemote is returned when a caller tries to change their own admin flag.
	ErrSelfDemote = errors.New("you cannot change your own admin status")
)
