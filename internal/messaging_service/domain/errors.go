package domain

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrNoNumberAvailable = errors.New("no pool number available for client")
	ErrThreadClosed      = errors.New("thread is closed")
	ErrThreadAssigned    = errors.New("thread already has a number assigned")
	ErrThreadConflict    = errors.New("thread was modified concurrently")
	ErrWindowClosed      = errors.New("no active assignment window for sitter and client")
)
