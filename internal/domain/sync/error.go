package sync

import "errors"

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrNotAuthenticated = errors.New("seller not authenticated")
	ErrBatchTooLarge    = errors.New("batch too large")
)
