package repository

import "errors"

var (
	ErrNoSpace   = errors.New("no free slot")
	ErrExists    = errors.New("entry already exists")
	ErrNotFound  = errors.New("entry not found")
	ErrBadHandle = errors.New("bad file handle")
)
