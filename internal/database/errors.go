package database

import "errors"

var (
	ErrNotFound               = errors.New("record not found")
	ErrDateConflict           = errors.New("house is already booked for the requested dates")
	ErrInvalidRange           = errors.New("begin date is after end date")
	ErrPastDate               = errors.New("booking date is in the past")
	ErrDateTooFar             = errors.New("booking date is too far in the future")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrMobileExists           = errors.New("mobile is already registered")
)
