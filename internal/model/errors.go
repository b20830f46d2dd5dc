package model

import (
	"errors"
)

var (
	ErrResultClosed    = errors.New("result already closed")
	ErrResultNotClosed = errors.New("result not closed")
)
