package iopipe

import "errors"

var (
	// ErrNoNext is returned by pipes whose precondition is a non-empty next
	// link when none is present.
	ErrNoNext = errors.New("iopipe: no next pipe in chain")

	// ErrClosed is returned when writing to a chain whose buffer or
	// channels have already been torn down.
	ErrClosed = errors.New("iopipe: chain closed")
)
