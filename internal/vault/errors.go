package vault

import "errors"

var (
	// Validation errors: caller error, no state change, retriable with
	// corrected input.
	ErrZeroAmount = errors.New("vault: amount must be nonzero")
	ErrZeroShares = errors.New("vault: shares must be nonzero")

	// Authorization errors.
	ErrNotOwner     = errors.New("vault: caller is not the owner")
	ErrNotOperator  = errors.New("vault: caller is not the operator")
	ErrNotGuardian  = errors.New("vault: caller is not the guardian")
	ErrNotRequester = errors.New("vault: caller is not the requester")

	// Economic guards: intentional circuit breakers, wait or resubmit with
	// adjusted parameters.
	ErrSlippageExceeded   = errors.New("vault: payout below minimum")
	ErrInsufficientShares = errors.New("vault: insufficient share balance")

	// ErrNAVDepleted is returned when completing a withdrawal would debit
	// more than the current NAV. The request stays ready; retry after the
	// next NAV report.
	ErrNAVDepleted = errors.New("vault: nav below settled value")

	// ErrPaused blocks deposits and new withdrawal requests only;
	// completion, cancellation and operator maintenance stay available.
	ErrPaused = errors.New("vault: paused")

	// ErrReentrancy is returned when a mutating operation is entered while
	// another is in flight, including callbacks from external collaborators.
	ErrReentrancy = errors.New("vault: reentrant call")

	// ErrOverflow is returned when conversion math cannot represent the
	// result in 256 bits.
	ErrOverflow = errors.New("vault: arithmetic overflow")

	// ErrSwapFailed is returned when the swap collaborator produced no
	// output for a nonzero input.
	ErrSwapFailed = errors.New("vault: swap produced zero output")
)
