package app

import (
	"context"
	"fmt"
	"time"

	"cfdjournal/internal/analytics"
	"cfdjournal/internal/domain"
	"cfdjournal/internal/engine"
	"cfdjournal/internal/ports"
)

// minCloseQuantity is the smallest closing quantity a percentage close
// may produce.
const minCloseQuantity = 0.01

// JournalService orchestrates the journal's lifecycle operations: it
// validates commands, appends to the fill ledger through the repository
// and re-derives snapshots after every mutation. It holds no position
// state of its own; the ledger is the single source of truth.
type JournalService struct {
	logger    ports.Logger
	accounts  ports.AccountRepository
	symbols   ports.SymbolRepository
	positions ports.PositionRepository
}

// NewJournalService creates a new application service instance.
func NewJournalService(
	logger ports.Logger,
	accounts ports.AccountRepository,
	symbols ports.SymbolRepository,
	positions ports.PositionRepository,
) (*JournalService, error) {
	if logger == nil || accounts == nil || symbols == nil || positions == nil {
		return nil, fmt.Errorf("missing required dependencies for JournalService")
	}
	return &JournalService{
		logger:    logger,
		accounts:  accounts,
		symbols:   symbols,
		positions: positions,
	}, nil
}

// PositionDetail pairs a stored position with its derived snapshot.
type PositionDetail struct {
	Position *domain.Position
	Snapshot engine.Snapshot
}

// --- Account and symbol management ---

// CreateAccountRequest carries the inputs for CreateAccount.
type CreateAccountRequest struct {
	Name                   string
	StartBalance           float64
	OpenCloseCommissionPct float64
	NightCommissionPct     float64
}

// CreateAccount validates and stores a new trading account.
func (s *JournalService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("account name must not be empty: %w", ports.ErrValidation)
	}
	if req.StartBalance < 0 {
		return nil, fmt.Errorf("start balance must not be negative: %w", ports.ErrValidation)
	}
	if err := validateCommission(req.OpenCloseCommissionPct, req.NightCommissionPct); err != nil {
		return nil, err
	}

	acct := &domain.Account{
		Name:                   req.Name,
		StartBalance:           req.StartBalance,
		IsActive:               true,
		OpenCloseCommissionPct: req.OpenCloseCommissionPct,
		NightCommissionPct:     req.NightCommissionPct,
		CreatedAt:              time.Now().UTC(),
	}
	id, err := s.accounts.CreateAccount(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	acct.ID = id
	s.logger.Info(ctx, "account created", map[string]interface{}{"accountID": id, "name": acct.Name})
	return acct, nil
}

// UpdateAccountCommissions replaces an account's commission settings.
func (s *JournalService) UpdateAccountCommissions(ctx context.Context, id int64, openClosePct, nightPct float64) error {
	if err := validateCommission(openClosePct, nightPct); err != nil {
		return err
	}
	acct, err := s.accounts.FindAccountByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load account %d: %w", id, err)
	}
	if acct == nil {
		return fmt.Errorf("account %d: %w", id, ports.ErrNotFound)
	}
	if err := s.accounts.UpdateAccountCommissions(ctx, id, openClosePct, nightPct); err != nil {
		return fmt.Errorf("failed to update commissions for account %d: %w", id, err)
	}
	s.logger.Info(ctx, "account commissions updated", map[string]interface{}{
		"accountID": id, "openClosePct": openClosePct, "nightPct": nightPct,
	})
	return nil
}

// ListAccounts returns all accounts.
func (s *JournalService) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	accts, err := s.accounts.FindAllAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accts, nil
}

// CreateSymbol stores a new watchlist symbol.
func (s *JournalService) CreateSymbol(ctx context.Context, ticker, name string) (*domain.Symbol, error) {
	if ticker == "" {
		return nil, fmt.Errorf("ticker must not be empty: %w", ports.ErrValidation)
	}
	sym := &domain.Symbol{Ticker: ticker, Name: name, IsActive: true}
	id, err := s.symbols.CreateSymbol(ctx, sym)
	if err != nil {
		return nil, fmt.Errorf("failed to create symbol %s: %w", ticker, err)
	}
	sym.ID = id
	s.logger.Info(ctx, "symbol created", map[string]interface{}{"symbolID": id, "ticker": ticker})
	return sym, nil
}

// ListSymbols returns all symbols.
func (s *JournalService) ListSymbols(ctx context.Context) ([]*domain.Symbol, error) {
	syms, err := s.symbols.FindAllSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbols: %w", err)
	}
	return syms, nil
}

// SetSymbolActive flips a symbol's active flag. Deactivation is refused
// while open positions reference the symbol.
func (s *JournalService) SetSymbolActive(ctx context.Context, id int64, active bool) error {
	sym, err := s.symbols.FindSymbolByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load symbol %d: %w", id, err)
	}
	if sym == nil {
		return fmt.Errorf("symbol %d: %w", id, ports.ErrNotFound)
	}
	if !active {
		open, err := s.positions.CountOpenBySymbol(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count open positions for symbol %d: %w", id, err)
		}
		if open > 0 {
			return fmt.Errorf("symbol %s has %d open position(s): %w", sym.Ticker, open, ports.ErrStateConflict)
		}
	}
	if err := s.symbols.SetSymbolActive(ctx, id, active); err != nil {
		return fmt.Errorf("failed to update symbol %d: %w", id, err)
	}
	s.logger.Info(ctx, "symbol active flag updated", map[string]interface{}{"symbolID": id, "active": active})
	return nil
}

// --- Position lifecycle ---

// OpenPositionRequest carries the inputs for OpenPosition. OpenedAt is
// optional; the journal records trades after the fact, so a zero value
// defaults to now.
type OpenPositionRequest struct {
	AccountID int64
	SymbolID  int64
	TradeType domain.TradeType
	Quantity  float64
	Price     float64
	OpenedAt  time.Time
}

// OpenPosition creates a position in open status with its opening fill.
// The open commission is charged on the opened value using the account's
// current rate.
func (s *JournalService) OpenPosition(ctx context.Context, req OpenPositionRequest) (*domain.Position, error) {
	op := "OpenPosition"
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%s: quantity must be positive: %w", op, ports.ErrValidation)
	}
	if req.Price <= 0 {
		return nil, fmt.Errorf("%s: price must be positive: %w", op, ports.ErrValidation)
	}
	if req.TradeType != domain.Long && req.TradeType != domain.Short {
		return nil, fmt.Errorf("%s: trade type must be LONG or SHORT: %w", op, ports.ErrValidation)
	}

	acct, err := s.loadAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	sym, err := s.symbols.FindSymbolByID(ctx, req.SymbolID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load symbol %d: %w", op, req.SymbolID, err)
	}
	if sym == nil {
		return nil, fmt.Errorf("%s: symbol %d: %w", op, req.SymbolID, ports.ErrNotFound)
	}
	if !sym.IsActive {
		return nil, fmt.Errorf("%s: symbol %s is inactive: %w", op, sym.Ticker, ports.ErrStateConflict)
	}

	openedAt := req.OpenedAt
	if openedAt.IsZero() {
		openedAt = time.Now().UTC()
	}

	pos := &domain.Position{
		AccountID: req.AccountID,
		SymbolID:  req.SymbolID,
		Status:    domain.StatusOpen,
		OpenedAt:  openedAt,
	}
	fill := &domain.Fill{
		Side:       req.TradeType.OpeningSide(),
		Quantity:   req.Quantity,
		Price:      req.Price,
		OpenFee:    engine.OpenFee(req.Quantity*req.Price, acct.OpenCloseCommissionPct),
		ExecutedAt: openedAt,
	}

	id, err := s.positions.CreatePosition(ctx, pos, fill)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to persist position: %w", op, err)
	}
	pos.ID = id
	s.logger.Info(ctx, op+": position opened", map[string]interface{}{
		"positionID": id,
		"symbol":     sym.Ticker,
		"tradeType":  req.TradeType,
		"quantity":   req.Quantity,
		"price":      req.Price,
		"openFee":    fill.OpenFee,
	})
	return pos, nil
}

// AddToPosition appends an opening-side fill to an open position,
// charging the open commission on the added value.
func (s *JournalService) AddToPosition(ctx context.Context, positionID int64, quantity, price float64, executedAt time.Time) (*domain.Fill, error) {
	op := "AddToPosition"
	if quantity <= 0 {
		return nil, fmt.Errorf("%s: quantity must be positive: %w", op, ports.ErrValidation)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%s: price must be positive: %w", op, ports.ErrValidation)
	}

	pos, fills, err := s.loadOpenLedger(ctx, op, positionID)
	if err != nil {
		return nil, err
	}
	snap := engine.Reduce(pos, fills, 0)
	if snap.Degenerate {
		return nil, fmt.Errorf("%s: position %d has no fills: %w", op, positionID, ports.ErrStateConflict)
	}
	acct, err := s.loadAccount(ctx, pos.AccountID)
	if err != nil {
		return nil, err
	}

	if executedAt.IsZero() {
		executedAt = time.Now().UTC()
	}
	fill := &domain.Fill{
		PositionID: positionID,
		Side:       snap.TradeType.OpeningSide(),
		Quantity:   quantity,
		Price:      price,
		OpenFee:    engine.OpenFee(quantity*price, acct.OpenCloseCommissionPct),
		ExecutedAt: executedAt,
	}
	if err := s.positions.AppendFill(ctx, positionID, fill, domain.StatusOpen, time.Time{}); err != nil {
		return nil, fmt.Errorf("%s: failed to append fill to position %d: %w", op, positionID, err)
	}
	s.logger.Info(ctx, op+": fill appended", map[string]interface{}{
		"positionID": positionID, "quantity": quantity, "price": price, "openFee": fill.OpenFee,
	})
	return fill, nil
}

// ClosePositionRequest carries the inputs for ClosePosition. Percentage
// applies to the currently open (net) quantity. ClosedAt is optional and
// defaults to now.
type ClosePositionRequest struct {
	PositionID int64
	Price      float64
	Percentage float64 // (0, 100]
	ClosedAt   time.Time
}

// ClosePosition appends a closing-side fill for a percentage of the
// currently open quantity. At 100% the position transitions to closed;
// anything less leaves it open and partially closed. The closing fill
// carries the close commission and the prorated night fee.
func (s *JournalService) ClosePosition(ctx context.Context, req ClosePositionRequest) (engine.Snapshot, error) {
	op := "ClosePosition"
	if req.Price <= 0 {
		return engine.Snapshot{}, fmt.Errorf("%s: price must be positive: %w", op, ports.ErrValidation)
	}
	if req.Percentage <= 0 || req.Percentage > 100 {
		return engine.Snapshot{}, fmt.Errorf("%s: percentage must be in (0,100]: %w", op, ports.ErrValidation)
	}

	pos, fills, err := s.loadOpenLedger(ctx, op, req.PositionID)
	if err != nil {
		return engine.Snapshot{}, err
	}
	snap := engine.Reduce(pos, fills, 0)
	if snap.Degenerate || snap.NetQuantity <= 0 {
		return engine.Snapshot{}, fmt.Errorf("%s: position %d has no open quantity: %w", op, req.PositionID, ports.ErrStateConflict)
	}

	quantityToClose := snap.NetQuantity * req.Percentage / 100
	if quantityToClose < minCloseQuantity {
		return engine.Snapshot{}, fmt.Errorf("%s: closing quantity %.4f below minimum %.2f: %w",
			op, quantityToClose, minCloseQuantity, ports.ErrValidation)
	}

	acct, err := s.loadAccount(ctx, pos.AccountID)
	if err != nil {
		return engine.Snapshot{}, err
	}

	closedAt := req.ClosedAt
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	// The night fee for the whole open value is prorated by the closed
	// percentage and recorded on the closing fill.
	nightTotal := engine.NightFee(snap.NetQuantity*snap.OpenPrice, acct.NightCommissionPct, pos.OpenedAt, closedAt)
	fill := &domain.Fill{
		PositionID: req.PositionID,
		Side:       snap.TradeType.OpeningSide().Opposite(),
		Quantity:   quantityToClose,
		Price:      req.Price,
		CloseFee:   engine.CloseFee(quantityToClose*req.Price, acct.OpenCloseCommissionPct),
		NightFee:   nightTotal * req.Percentage / 100,
		ExecutedAt: closedAt,
	}

	status := domain.StatusOpen
	stampClosed := time.Time{}
	if req.Percentage >= 100 {
		status = domain.StatusClosed
		stampClosed = closedAt
	}

	if err := s.positions.AppendFill(ctx, req.PositionID, fill, status, stampClosed); err != nil {
		return engine.Snapshot{}, fmt.Errorf("%s: failed to append closing fill to position %d: %w", op, req.PositionID, err)
	}

	pos.Status = status
	pos.ClosedAt = stampClosed
	result := engine.Reduce(pos, append(fills, fill), s.markPrice(ctx, pos.SymbolID))
	s.logger.Info(ctx, op+": position close recorded", map[string]interface{}{
		"positionID": req.PositionID,
		"percentage": req.Percentage,
		"quantity":   quantityToClose,
		"price":      req.Price,
		"status":     status,
		"pnl":        result.PnL,
	})
	return result, nil
}

// DeletePosition hard-removes a position and its fills. Irreversible.
func (s *JournalService) DeletePosition(ctx context.Context, id int64) error {
	op := "DeletePosition"
	pos, err := s.positions.FindPositionByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: failed to load position %d: %w", op, id, err)
	}
	if pos == nil {
		return fmt.Errorf("%s: position %d: %w", op, id, ports.ErrNotFound)
	}
	if err := s.positions.DeletePosition(ctx, id); err != nil {
		return fmt.Errorf("%s: failed to delete position %d: %w", op, id, err)
	}
	s.logger.Info(ctx, op+": position deleted", map[string]interface{}{"positionID": id})
	return nil
}

// --- Reads ---

// GetSnapshot re-derives a position's snapshot from its fill ledger and
// the symbol's latest known price.
func (s *JournalService) GetSnapshot(ctx context.Context, id int64) (*PositionDetail, error) {
	pos, err := s.positions.FindPositionByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load position %d: %w", id, err)
	}
	if pos == nil {
		return nil, fmt.Errorf("position %d: %w", id, ports.ErrNotFound)
	}
	fills, err := s.positions.ListFills(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load fills for position %d: %w", id, err)
	}
	return &PositionDetail{
		Position: pos,
		Snapshot: engine.Reduce(pos, fills, s.markPrice(ctx, pos.SymbolID)),
	}, nil
}

// ListPositions returns positions with derived snapshots, optionally
// filtered by status (empty status means all).
func (s *JournalService) ListPositions(ctx context.Context, status domain.PositionStatus) ([]*PositionDetail, error) {
	positions, err := s.positions.FindPositions(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list positions: %w", err)
	}
	details := make([]*PositionDetail, 0, len(positions))
	for _, pos := range positions {
		fills, err := s.positions.ListFills(ctx, pos.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load fills for position %d: %w", pos.ID, err)
		}
		details = append(details, &PositionDetail{
			Position: pos,
			Snapshot: engine.Reduce(pos, fills, s.markPrice(ctx, pos.SymbolID)),
		})
	}
	return details, nil
}

// GetPerformance computes portfolio metrics over all closed positions.
func (s *JournalService) GetPerformance(ctx context.Context) (*analytics.PerformanceMetrics, error) {
	trades, err := s.closedTrades(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.Performance(trades), nil
}

// GetCalendarGrid computes per-day metrics for one month.
func (s *JournalService) GetCalendarGrid(ctx context.Context, year int, month time.Month) ([]*analytics.DayMetrics, error) {
	trades, err := s.closedTrades(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.CalendarGrid(trades, year, month), nil
}

// GetTimeMetrics computes hour-of-day and weekday P&L buckets.
func (s *JournalService) GetTimeMetrics(ctx context.Context) (analytics.TimeMetrics, error) {
	trades, err := s.closedTrades(ctx)
	if err != nil {
		return analytics.TimeMetrics{}, err
	}
	return analytics.TimeBasedMetrics(trades), nil
}

// GetMonthlyPnL computes the continuous monthly P&L series.
func (s *JournalService) GetMonthlyPnL(ctx context.Context) ([]analytics.MonthBucket, error) {
	trades, err := s.closedTrades(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.MonthlyPnL(trades, time.Now().UTC()), nil
}

// GetSymbolDistribution computes per-symbol trade statistics.
func (s *JournalService) GetSymbolDistribution(ctx context.Context) ([]analytics.SymbolStats, error) {
	trades, err := s.closedTrades(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.SymbolDistribution(trades), nil
}

// --- helpers ---

func (s *JournalService) closedTrades(ctx context.Context) ([]*analytics.TradeResult, error) {
	positions, err := s.positions.FindPositions(ctx, domain.StatusClosed)
	if err != nil {
		return nil, fmt.Errorf("failed to list closed positions: %w", err)
	}
	trades := make([]*analytics.TradeResult, 0, len(positions))
	for _, pos := range positions {
		fills, err := s.positions.ListFills(ctx, pos.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load fills for position %d: %w", pos.ID, err)
		}
		snap := engine.Reduce(pos, fills, 0)
		if snap.Degenerate {
			s.logger.Warn(ctx, "skipping closed position with empty ledger", map[string]interface{}{"positionID": pos.ID})
			continue
		}
		ticker := fmt.Sprintf("symbol-%d", pos.SymbolID)
		if sym, err := s.symbols.FindSymbolByID(ctx, pos.SymbolID); err == nil && sym != nil {
			ticker = sym.Ticker
		}
		trades = append(trades, &analytics.TradeResult{
			Symbol:    ticker,
			Quantity:  snap.OriginalQuantity,
			OpenPrice: snap.OpenPrice,
			PnL:       snap.PnL,
			Fees:      snap.Fees.Total,
			OpenedAt:  pos.OpenedAt,
			ClosedAt:  pos.ClosedAt,
		})
	}
	return trades, nil
}

func (s *JournalService) loadAccount(ctx context.Context, id int64) (*domain.Account, error) {
	acct, err := s.accounts.FindAccountByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", id, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %d: %w", id, ports.ErrNotFound)
	}
	if err := validateCommission(acct.OpenCloseCommissionPct, acct.NightCommissionPct); err != nil {
		return nil, fmt.Errorf("account %d has invalid commission settings: %w", id, err)
	}
	return acct, nil
}

// loadOpenLedger fetches a position that must exist and be open, plus its
// ordered fill ledger.
func (s *JournalService) loadOpenLedger(ctx context.Context, op string, id int64) (*domain.Position, []*domain.Fill, error) {
	pos, err := s.positions.FindPositionByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to load position %d: %w", op, id, err)
	}
	if pos == nil {
		return nil, nil, fmt.Errorf("%s: position %d: %w", op, id, ports.ErrNotFound)
	}
	if !pos.IsOpen() {
		return nil, nil, fmt.Errorf("%s: position %d is already closed: %w", op, id, ports.ErrStateConflict)
	}
	fills, err := s.positions.ListFills(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to load fills for position %d: %w", op, id, err)
	}
	return pos, fills, nil
}

// markPrice returns the symbol's latest known price, or 0 when no quote
// has been stored yet. Lookup failures degrade to "no mark" rather than
// failing the read.
func (s *JournalService) markPrice(ctx context.Context, symbolID int64) float64 {
	sym, err := s.symbols.FindSymbolByID(ctx, symbolID)
	if err != nil {
		s.logger.Warn(ctx, "failed to load symbol for mark price", map[string]interface{}{"symbolID": symbolID, "error": err.Error()})
		return 0
	}
	if sym == nil {
		return 0
	}
	return sym.MarkPrice()
}

func validateCommission(openClosePct, nightPct float64) error {
	if openClosePct < 0 || openClosePct > 100 {
		return fmt.Errorf("open/close commission must be within [0,100]: %w", ports.ErrValidation)
	}
	if nightPct < 0 || nightPct > 100 {
		return fmt.Errorf("night commission must be within [0,100]: %w", ports.ErrValidation)
	}
	return nil
}
