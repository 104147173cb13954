package auction

import "errors"

var (
	ErrInvalidAmount    = errors.New("bid amount must be positive with at most one decimal place")
	ErrInvalidExpiry    = errors.New("expires_at must be in the future")
	ErrInvalidItemValue = errors.New("item value must be positive")

	ErrAuctionNotFound    = errors.New("auction not found")
	ErrAuctionExpired     = errors.New("auction has expired")
	ErrAuctionNotActive   = errors.New("auction is not active")
	ErrAuctionStillActive = errors.New("auction is still active")

	// ErrNoUniqueBids is a valid terminal settlement outcome, not a fault:
	// every bid amount collided, so the auction ends without a winner.
	ErrNoUniqueBids = errors.New("no unique bids found")

	// ErrAlreadyDistributed is informational: the pool prize one-shot already
	// fired and a repeat call had no effect.
	ErrAlreadyDistributed = errors.New("pool prize already distributed")
	ErrNoPoolPrize        = errors.New("no pool prize to distribute")

	// ErrInconsistent guards invariants that should be unreachable. It is
	// logged for investigation wherever it surfaces.
	ErrInconsistent = errors.New("settlement state inconsistent")
)
