package fraud

import "errors"

var (
	// Graph errors
	ErrGraphUnavailable = errors.New("graph endpoint unavailable")
	ErrMissingVertex    = errors.New("transaction endpoint vertex missing")

	// Rule errors
	ErrRuleNotFound = errors.New("rule not found")

	// Generator errors
	ErrGeneratorRunning    = errors.New("generator is already running")
	ErrGeneratorNotRunning = errors.New("generator is not running")
	ErrRateOutOfRange      = errors.New("target rate out of range")
	ErrNoAccounts          = errors.New("no account vertices available")

	// Metadata errors
	ErrUnknownRecord = errors.New("unknown metadata record")
)
