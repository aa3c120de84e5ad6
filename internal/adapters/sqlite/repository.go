package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cfdjournal/internal/domain"
	"cfdjournal/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.AccountRepository, ports.SymbolRepository
// and ports.PositionRepository using SQLite. Fill appends and status
// transitions commit in a single transaction, which is the atomicity
// contract the lifecycle controller relies on.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/journal.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// WAL for concurrent readers, foreign keys for the fills cascade.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db.SetMaxOpenConns(1) // the Go driver benefits from a single connection to SQLite
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		start_balance REAL NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		open_close_commission_pct REAL NOT NULL,
		night_commission_pct REAL NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS symbols (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticker TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		latest_price REAL DEFAULT NULL,
		priced_at TIMESTAMP DEFAULT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		symbol_id INTEGER NOT NULL REFERENCES symbols(id),
		status TEXT NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS fills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		position_id INTEGER NOT NULL REFERENCES positions(id) ON DELETE CASCADE,
		side TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		open_fee REAL NOT NULL DEFAULT 0,
		close_fee REAL NOT NULL DEFAULT 0,
		night_fee REAL NOT NULL DEFAULT 0,
		executed_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_positions_symbol_status ON positions (symbol_id, status);
	CREATE INDEX IF NOT EXISTS idx_positions_status_closed ON positions (status, closed_at);
	CREATE INDEX IF NOT EXISTS idx_fills_position_time ON fills (position_id, executed_at);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- AccountRepository implementation ---

// CreateAccount saves a new account and returns its assigned ID.
func (r *Repository) CreateAccount(ctx context.Context, acct *domain.Account) (int64, error) {
	const query = `
	INSERT INTO accounts (name, start_balance, is_active, open_close_commission_pct, night_commission_pct, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		acct.Name, acct.StartBalance, acct.IsActive, acct.OpenCloseCommissionPct, acct.NightCommissionPct, acct.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert account %s: %w: %w", acct.Name, ports.ErrQueryFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for account %s: %w", acct.Name, err)
	}
	acct.ID = id
	r.logger.Debug(ctx, "account created", map[string]interface{}{"accountID": id})
	return id, nil
}

// FindAccountByID retrieves an account by ID. Returns nil, nil if not found.
func (r *Repository) FindAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	const query = `
	SELECT id, name, start_balance, is_active, open_close_commission_pct, night_commission_pct, created_at
	FROM accounts WHERE id = ?`

	acct, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query account %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return acct, nil
}

// FindAllAccounts retrieves all accounts, ordered by creation time.
func (r *Repository) FindAllAccounts(ctx context.Context) ([]*domain.Account, error) {
	const query = `
	SELECT id, name, start_balance, is_active, open_close_commission_pct, night_commission_pct, created_at
	FROM accounts ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account rows: %w", err)
	}
	return accounts, nil
}

// UpdateAccountCommissions replaces the account's commission settings.
func (r *Repository) UpdateAccountCommissions(ctx context.Context, id int64, openClosePct, nightPct float64) error {
	const query = `UPDATE accounts SET open_close_commission_pct = ?, night_commission_pct = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, openClosePct, nightPct, id)
	if err != nil {
		return fmt.Errorf("failed to update commissions for account %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for account %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("account %d not found for update: %w", id, ports.ErrNotFound)
	}
	return nil
}

// --- SymbolRepository implementation ---

// CreateSymbol saves a new symbol and returns its assigned ID.
func (r *Repository) CreateSymbol(ctx context.Context, sym *domain.Symbol) (int64, error) {
	const query = `INSERT INTO symbols (ticker, name, is_active) VALUES (?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, sym.Ticker, sym.Name, sym.IsActive)
	if err != nil {
		return 0, fmt.Errorf("failed to insert symbol %s: %w: %w", sym.Ticker, ports.ErrQueryFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for symbol %s: %w", sym.Ticker, err)
	}
	sym.ID = id
	r.logger.Debug(ctx, "symbol created", map[string]interface{}{"symbolID": id, "ticker": sym.Ticker})
	return id, nil
}

// FindSymbolByID retrieves a symbol by ID. Returns nil, nil if not found.
func (r *Repository) FindSymbolByID(ctx context.Context, id int64) (*domain.Symbol, error) {
	const query = `
	SELECT id, ticker, name, latest_price, priced_at, is_active
	FROM symbols WHERE id = ?`

	sym, err := scanSymbol(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query symbol %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return sym, nil
}

// FindActiveSymbols retrieves all symbols currently flagged active.
func (r *Repository) FindActiveSymbols(ctx context.Context) ([]*domain.Symbol, error) {
	const query = `
	SELECT id, ticker, name, latest_price, priced_at, is_active
	FROM symbols WHERE is_active = 1 ORDER BY ticker`
	return r.querySymbols(ctx, query)
}

// FindAllSymbols retrieves all symbols, ordered by ticker.
func (r *Repository) FindAllSymbols(ctx context.Context) ([]*domain.Symbol, error) {
	const query = `
	SELECT id, ticker, name, latest_price, priced_at, is_active
	FROM symbols ORDER BY ticker`
	return r.querySymbols(ctx, query)
}

func (r *Repository) querySymbols(ctx context.Context, query string) ([]*domain.Symbol, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	symbols := make([]*domain.Symbol, 0)
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbol rows: %w", err)
	}
	return symbols, nil
}

// UpdateLatestPrice stores the most recent quote for a symbol.
func (r *Repository) UpdateLatestPrice(ctx context.Context, id int64, price float64, at time.Time) error {
	const query = `UPDATE symbols SET latest_price = ?, priced_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, price, at, id)
	if err != nil {
		return fmt.Errorf("failed to update price for symbol %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for symbol %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("symbol %d not found for price update: %w", id, ports.ErrNotFound)
	}
	return nil
}

// SetSymbolActive flips the symbol's active flag.
func (r *Repository) SetSymbolActive(ctx context.Context, id int64, active bool) error {
	const query = `UPDATE symbols SET is_active = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to update symbol %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for symbol %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("symbol %d not found for update: %w", id, ports.ErrNotFound)
	}
	return nil
}

// --- PositionRepository implementation ---

// CreatePosition saves a new position together with its opening fill in
// one transaction and returns the position's assigned ID.
func (r *Repository) CreatePosition(ctx context.Context, pos *domain.Position, opening *domain.Fill) (int64, error) {
	if err := validateFill(opening); err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w: %w", ports.ErrQueryFailed, err)
	}
	defer tx.Rollback()

	const posQuery = `
	INSERT INTO positions (account_id, symbol_id, status, opened_at)
	VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, posQuery, pos.AccountID, pos.SymbolID, pos.Status, pos.OpenedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position: %w: %w", ports.ErrQueryFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position: %w", err)
	}

	opening.PositionID = id
	if err := insertFill(ctx, tx, opening); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit position create: %w: %w", ports.ErrQueryFailed, err)
	}
	pos.ID = id
	r.logger.Debug(ctx, "position created", map[string]interface{}{"positionID": id})
	return id, nil
}

// FindPositionByID retrieves a position by ID. Returns nil, nil if not found.
func (r *Repository) FindPositionByID(ctx context.Context, id int64) (*domain.Position, error) {
	const query = `
	SELECT id, account_id, symbol_id, status, opened_at, closed_at
	FROM positions WHERE id = ?`

	pos, err := scanPosition(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query position %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	return pos, nil
}

// FindPositions retrieves positions filtered by status (empty status means
// all), ordered by open time descending.
func (r *Repository) FindPositions(ctx context.Context, status domain.PositionStatus) ([]*domain.Position, error) {
	query := `
	SELECT id, account_id, symbol_id, status, opened_at, closed_at
	FROM positions`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY opened_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// ListFills retrieves the fills of a position ordered by execution time
// ascending, ties broken by insertion order.
func (r *Repository) ListFills(ctx context.Context, positionID int64) ([]*domain.Fill, error) {
	const query = `
	SELECT id, position_id, side, quantity, price, open_fee, close_fee, night_fee, executed_at
	FROM fills WHERE position_id = ? ORDER BY executed_at, id`

	rows, err := r.db.QueryContext(ctx, query, positionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fills for position %d: %w: %w", positionID, ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	fills := make([]*domain.Fill, 0)
	for rows.Next() {
		fill, err := scanFill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fill: %w", err)
		}
		fills = append(fills, fill)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fill rows: %w", err)
	}
	return fills, nil
}

// AppendFill appends one fill and updates the position status in the same
// transaction. closedAt is stored only when status is closed.
func (r *Repository) AppendFill(ctx context.Context, positionID int64, fill *domain.Fill, status domain.PositionStatus, closedAt time.Time) error {
	if err := validateFill(fill); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", ports.ErrQueryFailed, err)
	}
	defer tx.Rollback()

	fill.PositionID = positionID
	if err := insertFill(ctx, tx, fill); err != nil {
		return err
	}

	var closed sql.NullTime
	if status == domain.StatusClosed && !closedAt.IsZero() {
		closed = sql.NullTime{Time: closedAt, Valid: true}
	}
	const query = `UPDATE positions SET status = ?, closed_at = ? WHERE id = ?`
	result, err := tx.ExecContext(ctx, query, status, closed, positionID)
	if err != nil {
		return fmt.Errorf("failed to update position %d status: %w: %w", positionID, ports.ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position %d: %w", positionID, err)
	}
	if affected == 0 {
		return fmt.Errorf("position %d not found for fill append: %w", positionID, ports.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fill append: %w: %w", ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "fill appended", map[string]interface{}{"positionID": positionID, "status": status})
	return nil
}

// DeletePosition hard-removes a position and all its fills.
func (r *Repository) DeletePosition(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", ports.ErrQueryFailed, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM fills WHERE position_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete fills for position %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete position %d: %w: %w", id, ports.ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for position %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("position %d not found for delete: %w", id, ports.ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit position delete: %w: %w", ports.ErrQueryFailed, err)
	}
	r.logger.Debug(ctx, "position deleted", map[string]interface{}{"positionID": id})
	return nil
}

// CountOpenBySymbol counts open positions referencing a symbol.
func (r *Repository) CountOpenBySymbol(ctx context.Context, symbolID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM positions WHERE symbol_id = ? AND status = ?`
	var count int
	if err := r.db.QueryRowContext(ctx, query, symbolID, domain.StatusOpen).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count open positions for symbol %d: %w: %w", symbolID, ports.ErrQueryFailed, err)
	}
	return count, nil
}

// --- Helpers ---

// validateFill enforces the ledger's append contract.
func validateFill(fill *domain.Fill) error {
	if fill == nil {
		return fmt.Errorf("fill is required: %w", ports.ErrValidation)
	}
	if fill.Quantity <= 0 {
		return fmt.Errorf("fill quantity must be positive: %w", ports.ErrValidation)
	}
	if fill.Price <= 0 {
		return fmt.Errorf("fill price must be positive: %w", ports.ErrValidation)
	}
	if !fill.Side.IsValid() {
		return fmt.Errorf("fill side must be BUY or SELL: %w", ports.ErrValidation)
	}
	return nil
}

func insertFill(ctx context.Context, tx *sql.Tx, fill *domain.Fill) error {
	const query = `
	INSERT INTO fills (position_id, side, quantity, price, open_fee, close_fee, night_fee, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query,
		fill.PositionID, fill.Side, fill.Quantity, fill.Price,
		fill.OpenFee, fill.CloseFee, fill.NightFee, fill.ExecutedAt)
	if err != nil {
		return fmt.Errorf("failed to insert fill for position %d: %w: %w", fill.PositionID, ports.ErrQueryFailed, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for fill: %w", err)
	}
	fill.ID = id
	return nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(s scanner) (*domain.Account, error) {
	a := &domain.Account{}
	err := s.Scan(&a.ID, &a.Name, &a.StartBalance, &a.IsActive,
		&a.OpenCloseCommissionPct, &a.NightCommissionPct, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func scanSymbol(s scanner) (*domain.Symbol, error) {
	sym := &domain.Symbol{}
	var price sql.NullFloat64
	var pricedAt sql.NullTime
	err := s.Scan(&sym.ID, &sym.Ticker, &sym.Name, &price, &pricedAt, &sym.IsActive)
	if err != nil {
		return nil, err
	}
	if price.Valid {
		v := price.Float64
		sym.LatestPrice = &v
	}
	if pricedAt.Valid {
		sym.PricedAt = pricedAt.Time
	}
	return sym, nil
}

func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var closedAt sql.NullTime
	var status string
	err := s.Scan(&p.ID, &p.AccountID, &p.SymbolID, &status, &p.OpenedAt, &closedAt)
	if err != nil {
		return nil, err
	}
	if closedAt.Valid {
		p.ClosedAt = closedAt.Time
	}
	p.Status = domain.PositionStatus(status)
	return p, nil
}

func scanFill(s scanner) (*domain.Fill, error) {
	f := &domain.Fill{}
	var side string
	err := s.Scan(&f.ID, &f.PositionID, &side, &f.Quantity, &f.Price,
		&f.OpenFee, &f.CloseFee, &f.NightFee, &f.ExecutedAt)
	if err != nil {
		return nil, err
	}
	f.Side = domain.Side(side)
	return f, nil
}
