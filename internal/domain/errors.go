package domain

import "errors"

// Common validation errors shared across domain entities.
var (
	ErrEmptyAccountName    = errors.New("account name cannot be empty")
	ErrEmptyUsername       = errors.New("username cannot be empty")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
	ErrMissingAccount      = errors.New("account reference cannot be empty")
	ErrMissingMember       = errors.New("account member reference cannot be empty")
	ErrEmptyEntropy        = errors.New("token entropy cannot be empty")
	ErrEmptyEndpointName   = errors.New("endpoint name cannot be empty")
)
