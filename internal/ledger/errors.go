package ledger

import "errors"

// Every failure surfaces as one of these kinds so the API layer can map it to
// an accurate response. Failed calls never leave partial writes behind.
var (
	ErrNotOperational      = errors.New("system is paused")
	ErrNotOwner            = errors.New("caller is not the owner")
	ErrUnauthorized        = errors.New("caller is not authorized")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrAirlineNotFound     = errors.New("airline not registered")
	ErrAirlineNotFunded    = errors.New("airline has not met the funding threshold")
	ErrPremiumExceeded     = errors.New("cumulative premium exceeds the cap")
	ErrInsufficientBalance = errors.New("no withdrawable balance")
	ErrOracleNotFound      = errors.New("oracle not registered")
	ErrOracleExists        = errors.New("oracle already registered")
	ErrFeeTooLow           = errors.New("registration fee below the required amount")
	ErrIndexNotHeld        = errors.New("oracle does not hold the request index")
	ErrNoOpenRequest       = errors.New("no status request for that index and flight")
	ErrInvalidStatus       = errors.New("unknown status code")
)
