package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrNoStagedClear  = errors.New("no staged clear for correlation key")
	ErrUnknownNetwork = errors.New("unknown network")
)
