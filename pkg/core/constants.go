package core

import "errors"

// Errors
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrSymbolMismatch     = errors.New("symbol mismatch")
	ErrDuplicateOrderID   = errors.New("duplicate order id")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderNotCancelable = errors.New("order not cancelable")
	ErrInvalidSnapshot    = errors.New("invalid snapshot")
	ErrInvalidConfig      = errors.New("invalid engine config")
)
