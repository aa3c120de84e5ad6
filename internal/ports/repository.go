package ports

import (
	"context"
	"time"

	"cfdjournal/internal/domain"
)

// AccountRepository defines the interface for storing and retrieving
// trading accounts.
type AccountRepository interface {
	// CreateAccount saves a new account and returns its assigned ID.
	CreateAccount(ctx context.Context, acct *domain.Account) (int64, error)
	// FindAccountByID retrieves an account by ID. Returns nil, nil if not found.
	FindAccountByID(ctx context.Context, id int64) (*domain.Account, error)
	// FindAllAccounts retrieves all accounts, ordered by creation time.
	FindAllAccounts(ctx context.Context) ([]*domain.Account, error)
	// UpdateAccountCommissions replaces the account's commission settings.
	UpdateAccountCommissions(ctx context.Context, id int64, openClosePct, nightPct float64) error
}

// SymbolRepository defines the interface for storing and retrieving
// tradable symbols and their latest known prices.
type SymbolRepository interface {
	// CreateSymbol saves a new symbol and returns its assigned ID.
	CreateSymbol(ctx context.Context, sym *domain.Symbol) (int64, error)
	// FindSymbolByID retrieves a symbol by ID. Returns nil, nil if not found.
	FindSymbolByID(ctx context.Context, id int64) (*domain.Symbol, error)
	// FindActiveSymbols retrieves all symbols currently flagged active.
	FindActiveSymbols(ctx context.Context) ([]*domain.Symbol, error)
	// FindAllSymbols retrieves all symbols, ordered by ticker.
	FindAllSymbols(ctx context.Context) ([]*domain.Symbol, error)
	// UpdateLatestPrice stores the most recent quote for a symbol.
	UpdateLatestPrice(ctx context.Context, id int64, price float64, at time.Time) error
	// SetSymbolActive flips the symbol's active flag.
	SetSymbolActive(ctx context.Context, id int64, active bool) error
}

// PositionRepository defines the interface for storing positions and
// their append-only fill ledgers.
//
// AppendFill must commit the fill and the status transition as one unit:
// either both are durable or neither is. Two concurrent appends against
// the same position must not both succeed with conflicting ledgers.
type PositionRepository interface {
	// CreatePosition saves a new position together with its opening fill
	// and returns the position's assigned ID.
	CreatePosition(ctx context.Context, pos *domain.Position, opening *domain.Fill) (int64, error)
	// FindPositionByID retrieves a position by ID. Returns nil, nil if not found.
	FindPositionByID(ctx context.Context, id int64) (*domain.Position, error)
	// FindPositions retrieves positions filtered by status (empty status
	// means all), ordered by open time descending.
	FindPositions(ctx context.Context, status domain.PositionStatus) ([]*domain.Position, error)
	// ListFills retrieves the fills of a position ordered by execution
	// time ascending, ties broken by insertion order.
	ListFills(ctx context.Context, positionID int64) ([]*domain.Fill, error)
	// AppendFill appends one fill and updates the position status in the
	// same transaction. closedAt is stored only when status is closed.
	AppendFill(ctx context.Context, positionID int64, fill *domain.Fill, status domain.PositionStatus, closedAt time.Time) error
	// DeletePosition hard-removes a position and all its fills.
	DeletePosition(ctx context.Context, id int64) error
	// CountOpenBySymbol counts open positions referencing a symbol.
	CountOpenBySymbol(ctx context.Context, symbolID int64) (int, error)
}
