package services

import "errors"

var (
	// ErrForbidden is returned when the acting user is neither a deal party
	// nor a channel team member allowed to perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrWalletMissing is returned when the action requires a connected TON
	// wallet and the user has none.
	ErrWalletMissing = errors.New("wallet address required")

	// ErrChainUnavailable covers lite server failures during deposit or
	// settlement verification. Callers should retry on the next sweep.
	ErrChainUnavailable = errors.New("chain unavailable")

	// ErrEscrowRejected means the contract reported the trigger as invalid
	// (getter still shows funded after the settle delay).
	ErrEscrowRejected = errors.New("escrow trigger rejected")

	// ErrWalletNotConfigured means the platform wallet seed is not set, so
	// no on-chain messages can be sent from this instance.
	ErrWalletNotConfigured = errors.New("platform wallet not configured")

	// ErrConflict signals a lost compare-and-set race. The deal or escrow
	// changed underneath the caller; re-read and retry if still relevant.
	ErrConflict = errors.New("concurrent update conflict")
)
