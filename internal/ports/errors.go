package ports

import (
	"errors"
	"fmt"
)

// Standard application-level errors.
// Adapters and services wrap underlying failures with these sentinels so
// callers can branch with errors.Is without knowing the layer that failed.
var (
	// ErrValidation marks bad input shape or range (non-positive quantity
	// or price, percentage outside (0,100], commission outside [0,100]).
	// Always caller-fixable, never retried internally.
	ErrValidation = errors.New("invalid request parameters")

	// ErrStateConflict marks an operation incompatible with the current
	// position state (closing a closed position, closing more than is
	// open, deactivating a symbol with open positions against it).
	ErrStateConflict = errors.New("operation conflicts with current state")

	// ErrNotFound marks a missing account, symbol or position.
	ErrNotFound = errors.New("resource not found")

	// ErrDependency marks a storage or quote-source failure. It is
	// propagated unchanged; the caller decides whether to retry the
	// whole command.
	ErrDependency = errors.New("dependency failure")

	// Storage specific; both match ErrDependency.
	ErrDBConnection = fmt.Errorf("database connection error: %w", ErrDependency)
	ErrQueryFailed  = fmt.Errorf("database query failed: %w", ErrDependency)

	// Quote source specific; both match ErrDependency.
	ErrQuoteUnavailable = fmt.Errorf("quote API is unavailable: %w", ErrDependency)
	ErrUnknownTicker    = fmt.Errorf("ticker not known to the quote API: %w", ErrDependency)
)
