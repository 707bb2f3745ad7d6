package seller

import "errors"

var (
	ErrNotFound      = errors.New("seller not found")
	ErrAlreadyExists = errors.New("seller already exists")
	ErrInvalidAuth   = errors.New("invalid credentials")
	ErrInvalidInput  = errors.New("invalid input")
)
