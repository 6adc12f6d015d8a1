package ledger

import "errors"

var (
	ErrUnknownStudent = errors.New("unknown student")
	ErrInvalidDay     = errors.New("invalid day")
	ErrInvalidMeal    = errors.New("invalid meal")
	ErrInvalidMonth   = errors.New("invalid month")
	ErrEmptyClipboard = errors.New("clipboard is empty")
)
