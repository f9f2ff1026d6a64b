package library

import "errors"

var (
	ErrNotFound     = errors.New("library: not found")
	ErrNotMember    = errors.New("library: track not in group")
	ErrInvalidInput = errors.New("library: invalid input")
	ErrInternal     = errors.New("library: internal failure")
)

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsNotMember(err error) bool { return errors.Is(err, ErrNotMember) }
func IsInternal(err error) bool  { return errors.Is(err, ErrInternal) }
