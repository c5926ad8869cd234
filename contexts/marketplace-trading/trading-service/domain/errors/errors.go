package errors

import "errors"

var (
	// Validation failures, rejected before any state change.
	ErrPriceBelowFloor    = errors.New("unit price below minimum listing price")
	ErrZeroQuantity       = errors.New("quantity must be positive")
	ErrInvalidReference   = errors.New("asset or account reference is empty")
	ErrInvalidOfferAmount = errors.New("attached value below offer price")

	// State-consistency failures.
	ErrListingNotFound             = errors.New("listing does not exist")
	ErrListingConflict             = errors.New("asset already has an active listing")
	ErrOfferNotFound               = errors.New("offer does not exist")
	ErrInsufficientBalance         = errors.New("owner balance below requested listing quantity")
	ErrInsufficientListingQuantity = errors.New("requested quantity exceeds listing availability")
	ErrInvalidPurchasePrice        = errors.New("attached value below purchase price")
	ErrOfferPriceMismatch          = errors.New("escrowed amount does not match offer asking price")

	// Authorization failures.
	ErrNotListingOwner     = errors.New("caller is not the listing owner")
	ErrNotOfferParticipant = errors.New("caller is neither the offeror nor the listing owner")

	ErrReentrantCall            = errors.New("re-entrant marketplace call rejected")
	ErrRepositoryInvariantBroke = errors.New("repository invariant violated")
)
