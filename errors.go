package treasury

import (
	"errors"
	"fmt"

	"github.com/xraph/treasury/costcalc"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("treasury: not found")
	ErrAlreadyExists = errors.New("treasury: already exists")
	ErrInvalidInput  = errors.New("treasury: invalid input")

	// Funds errors. ErrInsufficientFunds is returned before any mutation
	// occurred; ErrCaptureShortfall is returned after a partial settlement
	// and must be treated as settled-with-debt, never retried.
	ErrInsufficientFunds = errors.New("treasury: insufficient funds")
	ErrCaptureShortfall  = errors.New("treasury: capture shortfall (partially settled)")
	ErrDebtCeiling       = errors.New("treasury: debt ceiling exceeded")

	// Reservation errors
	ErrReservationNotFound     = errors.New("treasury: reservation not found")
	ErrInvalidReservationState = errors.New("treasury: reservation is in a terminal state")
	ErrReservationExpired      = errors.New("treasury: reservation expired")

	// Pricing errors. ErrUnknownRateCard aliases the costcalc sentinel so
	// callers can match it from either package.
	ErrUnknownRateCard = costcalc.ErrUnknownRateCard
	ErrUnknownToken    = errors.New("treasury: unknown token type")

	// Wallet errors
	ErrWalletNotFound = errors.New("treasury: wallet not found")

	// Exchange errors
	ErrSameToken = errors.New("treasury: exchange from and to tokens are identical")

	// Store errors
	ErrStoreNotReady     = errors.New("treasury: store not ready")
	ErrStoreClosed       = errors.New("treasury: store is closed")
	ErrTransactionFailed = errors.New("treasury: transaction failed")
	ErrMigrationFailed   = errors.New("treasury: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("treasury: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrWalletNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

// IsFundsError returns true if the error is about funds rather than usage.
// ErrInsufficientFunds implies no state was mutated; ErrCaptureShortfall
// implies a partial settlement was recorded.
func IsFundsError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrCaptureShortfall) ||
		errors.Is(err, ErrDebtCeiling)
}

// IsTerminalState returns true if the error indicates the reservation has
// already reached a terminal state and no further settlement is possible.
func IsTerminalState(err error) bool {
	return errors.Is(err, ErrInvalidReservationState) ||
		errors.Is(err, ErrReservationExpired)
}

// IsRetryable returns true if the error is temporary and the operation can be
// retried. Funds and state errors are never retryable: every one of them has
// a monetary consequence the caller must handle.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}
