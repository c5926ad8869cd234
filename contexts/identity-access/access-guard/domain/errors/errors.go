package errors

import "errors"

var (
	ErrMarketplacePaused = errors.New("marketplace is paused")
	ErrSellerPaused      = errors.New("seller is paused")
	ErrRoleRequired      = errors.New("caller lacks the required role")
	ErrUnknownRole       = errors.New("unknown role")
	ErrInvalidAccount    = errors.New("account reference is empty")
)
