package record

import (
	"errors"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidRecord     = errors.New("invalid record data")
	ErrUnknownCollection = errors.New("unknown collection")
)
