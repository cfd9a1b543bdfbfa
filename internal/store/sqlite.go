// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"basket-trader/internal/engine"
	errs "basket-trader/internal/errors"
	"basket-trader/internal/models"
)

const dayFormat = "2006-01-02"

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Baskets and their weighted constituents
	CREATE TABLE IF NOT EXISTS baskets (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS basket_constituents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		basket_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		weight TEXT NOT NULL,
		UNIQUE(basket_id, symbol, exchange),
		FOREIGN KEY (basket_id) REFERENCES baskets(id) ON DELETE CASCADE
	);

	-- Investments and the holdings they own
	CREATE TABLE IF NOT EXISTS investments (
		id TEXT PRIMARY KEY,
		basket_id TEXT NOT NULL,
		invested_amount TEXT NOT NULL,
		current_value TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		last_rebalanced_at DATETIME,
		FOREIGN KEY (basket_id) REFERENCES baskets(id)
	);

	CREATE TABLE IF NOT EXISTS holdings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		investment_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		exchange TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		average_price TEXT NOT NULL,
		UNIQUE(investment_id, symbol, exchange),
		FOREIGN KEY (investment_id) REFERENCES investments(id) ON DELETE CASCADE
	);

	-- SIP schedules
	CREATE TABLE IF NOT EXISTS sip_schedules (
		id TEXT PRIMARY KEY,
		basket_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		frequency TEXT NOT NULL,
		day_of_week INTEGER NOT NULL DEFAULT 1,
		day_of_month INTEGER NOT NULL DEFAULT 1,
		start_date TEXT NOT NULL,
		end_date TEXT,
		next_execution_date TEXT NOT NULL,
		status TEXT NOT NULL,
		completed_installments INTEGER NOT NULL DEFAULT 0,
		total_invested TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (basket_id) REFERENCES baskets(id)
	);

	-- SIP execution log; the unique pair is the already-ran-today guard
	CREATE TABLE IF NOT EXISTS sip_executions (
		id TEXT PRIMARY KEY,
		sip_id TEXT NOT NULL,
		execution_date TEXT NOT NULL,
		amount TEXT NOT NULL,
		order_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		UNIQUE(sip_id, execution_date),
		FOREIGN KEY (sip_id) REFERENCES sip_schedules(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_constituents_basket ON basket_constituents(basket_id, position);
	CREATE INDEX IF NOT EXISTS idx_holdings_investment ON holdings(investment_id);
	CREATE INDEX IF NOT EXISTS idx_sip_status ON sip_schedules(status);
	CREATE INDEX IF NOT EXISTS idx_sip_executions_sip ON sip_executions(sip_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveBasket upserts a basket and its constituents. The weight invariant
// is re-validated here: a violating basket is never persisted.
func (s *SQLiteStore) SaveBasket(ctx context.Context, basket *models.Basket) error {
	if err := engine.ValidateWeights(*basket); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO baskets (id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		basket.ID, basket.Name, basket.CreatedAt, basket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving basket: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM basket_constituents WHERE basket_id = ?`, basket.ID); err != nil {
		return fmt.Errorf("clearing constituents: %w", err)
	}
	for i, c := range basket.Constituents {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO basket_constituents (basket_id, position, symbol, exchange, weight)
			VALUES (?, ?, ?, ?, ?)`,
			basket.ID, i, c.Symbol, string(c.Exchange), c.WeightPercent.String())
		if err != nil {
			return fmt.Errorf("saving constituent %s: %w", c.Symbol, err)
		}
	}

	return tx.Commit()
}

// GetBasket returns a basket with its constituents in stored order.
func (s *SQLiteStore) GetBasket(ctx context.Context, id string) (*models.Basket, error) {
	return s.getBasketWhere(ctx, "id = ?", id)
}

// GetBasketByName returns a basket by its unique name.
func (s *SQLiteStore) GetBasketByName(ctx context.Context, name string) (*models.Basket, error) {
	return s.getBasketWhere(ctx, "name = ?", name)
}

func (s *SQLiteStore) getBasketWhere(ctx context.Context, where string, arg interface{}) (*models.Basket, error) {
	var b models.Basket
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM baskets WHERE `+where, arg).
		Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errs.ErrBasketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}

	constituents, err := s.loadConstituents(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Constituents = constituents
	return &b, nil
}

func (s *SQLiteStore) loadConstituents(ctx context.Context, basketID string) ([]models.Constituent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, exchange, weight FROM basket_constituents
		WHERE basket_id = ? ORDER BY position`, basketID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []models.Constituent
	for rows.Next() {
		var c models.Constituent
		var exchange, weight string
		if err := rows.Scan(&c.Symbol, &exchange, &weight); err != nil {
			return nil, err
		}
		w, err := decimal.NewFromString(weight)
		if err != nil {
			return nil, fmt.Errorf("parsing weight for %s: %w", c.Symbol, err)
		}
		c.Exchange = models.Exchange(exchange)
		c.WeightPercent = w
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListBaskets returns all baskets with their constituents.
func (s *SQLiteStore) ListBaskets(ctx context.Context) ([]models.Basket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at, updated_at FROM baskets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	defer rows.Close()

	var baskets []models.Basket
	for rows.Next() {
		var b models.Basket
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		baskets = append(baskets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range baskets {
		constituents, err := s.loadConstituents(ctx, baskets[i].ID)
		if err != nil {
			return nil, err
		}
		baskets[i].Constituents = constituents
	}
	return baskets, nil
}

// DeleteBasket removes a basket and its constituents.
func (s *SQLiteStore) DeleteBasket(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM baskets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrBasketNotFound
	}
	return nil
}

// SaveInvestment upserts an investment and replaces its holdings.
func (s *SQLiteStore) SaveInvestment(ctx context.Context, inv *models.Investment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	defer tx.Rollback()

	var lastRebalanced interface{}
	if inv.LastRebalancedAt != nil {
		lastRebalanced = *inv.LastRebalancedAt
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO investments (id, basket_id, invested_amount, current_value, created_at, updated_at, last_rebalanced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			invested_amount = excluded.invested_amount,
			current_value = excluded.current_value,
			updated_at = excluded.updated_at,
			last_rebalanced_at = excluded.last_rebalanced_at`,
		inv.ID, inv.BasketID, inv.InvestedAmount.String(), inv.CurrentValue.String(),
		inv.CreatedAt, inv.UpdatedAt, lastRebalanced)
	if err != nil {
		return fmt.Errorf("saving investment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE investment_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("clearing holdings: %w", err)
	}
	for _, h := range inv.Holdings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holdings (investment_id, symbol, exchange, quantity, average_price)
			VALUES (?, ?, ?, ?, ?)`,
			inv.ID, h.Symbol, string(h.Exchange), h.Quantity, h.AveragePrice.String())
		if err != nil {
			return fmt.Errorf("saving holding %s: %w", h.Symbol, err)
		}
	}

	return tx.Commit()
}

// GetInvestment returns an investment with its holdings.
func (s *SQLiteStore) GetInvestment(ctx context.Context, id string) (*models.Investment, error) {
	return s.getInvestmentWhere(ctx, "id = ?", id)
}

// GetInvestmentByBasket returns the investment into a basket, if any.
func (s *SQLiteStore) GetInvestmentByBasket(ctx context.Context, basketID string) (*models.Investment, error) {
	return s.getInvestmentWhere(ctx, "basket_id = ?", basketID)
}

func (s *SQLiteStore) getInvestmentWhere(ctx context.Context, where string, arg interface{}) (*models.Investment, error) {
	var inv models.Investment
	var invested, current string
	var lastRebalanced sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, basket_id, invested_amount, current_value, created_at, updated_at, last_rebalanced_at
		FROM investments WHERE `+where, arg).
		Scan(&inv.ID, &inv.BasketID, &invested, &current, &inv.CreatedAt, &inv.UpdatedAt, &lastRebalanced)
	if err == sql.ErrNoRows {
		return nil, errs.ErrInvestmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}

	if inv.InvestedAmount, err = decimal.NewFromString(invested); err != nil {
		return nil, fmt.Errorf("parsing invested amount: %w", err)
	}
	if inv.CurrentValue, err = decimal.NewFromString(current); err != nil {
		return nil, fmt.Errorf("parsing current value: %w", err)
	}
	if lastRebalanced.Valid {
		t := lastRebalanced.Time
		inv.LastRebalancedAt = &t
	}

	holdings, err := s.loadHoldings(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Holdings = holdings
	return &inv, nil
}

func (s *SQLiteStore) loadHoldings(ctx context.Context, investmentID string) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, exchange, quantity, average_price FROM holdings
		WHERE investment_id = ? ORDER BY symbol`, investmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []models.Holding
	for rows.Next() {
		var h models.Holding
		var exchange, avg string
		if err := rows.Scan(&h.Symbol, &exchange, &h.Quantity, &avg); err != nil {
			return nil, err
		}
		price, err := decimal.NewFromString(avg)
		if err != nil {
			return nil, fmt.Errorf("parsing average price for %s: %w", h.Symbol, err)
		}
		h.Exchange = models.Exchange(exchange)
		h.AveragePrice = price
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListInvestments returns all investments with holdings.
func (s *SQLiteStore) ListInvestments(ctx context.Context) ([]models.Investment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM investments ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Investment, 0, len(ids))
	for _, id := range ids {
		inv, err := s.GetInvestment(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, nil
}

// DeleteInvestment removes an investment and its holdings.
func (s *SQLiteStore) DeleteInvestment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM investments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrInvestmentNotFound
	}
	return nil
}

// SaveSIP upserts a SIP schedule.
func (s *SQLiteStore) SaveSIP(ctx context.Context, sip *models.SIPSchedule) error {
	var endDate interface{}
	if sip.EndDate != nil {
		endDate = sip.EndDate.Format(dayFormat)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sip_schedules (id, basket_id, amount, frequency, day_of_week, day_of_month,
			start_date, end_date, next_execution_date, status, completed_installments,
			total_invested, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			next_execution_date = excluded.next_execution_date,
			status = excluded.status,
			completed_installments = excluded.completed_installments,
			total_invested = excluded.total_invested,
			end_date = excluded.end_date,
			updated_at = excluded.updated_at`,
		sip.ID, sip.BasketID, sip.Amount.String(), string(sip.Frequency),
		int(sip.DayOfWeek), sip.DayOfMonth,
		sip.StartDate.Format(dayFormat), endDate,
		sip.NextExecutionDate.Format(dayFormat), string(sip.Status),
		sip.CompletedInstallments, sip.TotalInvested.String(),
		sip.CreatedAt, sip.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving SIP schedule: %w", err)
	}
	return nil
}

// GetSIP returns a SIP schedule by ID.
func (s *SQLiteStore) GetSIP(ctx context.Context, id string) (*models.SIPSchedule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, basket_id, amount, frequency, day_of_week, day_of_month,
			start_date, end_date, next_execution_date, status, completed_installments,
			total_invested, created_at, updated_at
		FROM sip_schedules WHERE id = ?`, id)

	sip, err := scanSIP(row)
	if err == sql.ErrNoRows {
		return nil, errs.ErrSIPNotFound
	}
	return sip, err
}

// ListSIPs returns SIP schedules, optionally filtered by status.
func (s *SQLiteStore) ListSIPs(ctx context.Context, status models.SIPStatus) ([]models.SIPSchedule, error) {
	query := `
		SELECT id, basket_id, amount, frequency, day_of_week, day_of_month,
			start_date, end_date, next_execution_date, status, completed_installments,
			total_invested, created_at, updated_at
		FROM sip_schedules`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	defer rows.Close()

	var out []models.SIPSchedule
	for rows.Next() {
		sip, err := scanSIP(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sip)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSIP(row rowScanner) (*models.SIPSchedule, error) {
	var sip models.SIPSchedule
	var amount, totalInvested, frequency, status, startDate, nextDate string
	var endDate sql.NullString
	var dayOfWeek int

	err := row.Scan(&sip.ID, &sip.BasketID, &amount, &frequency, &dayOfWeek, &sip.DayOfMonth,
		&startDate, &endDate, &nextDate, &status, &sip.CompletedInstallments,
		&totalInvested, &sip.CreatedAt, &sip.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if sip.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parsing SIP amount: %w", err)
	}
	if sip.TotalInvested, err = decimal.NewFromString(totalInvested); err != nil {
		return nil, fmt.Errorf("parsing SIP total invested: %w", err)
	}
	if sip.StartDate, err = time.Parse(dayFormat, startDate); err != nil {
		return nil, fmt.Errorf("parsing SIP start date: %w", err)
	}
	if sip.NextExecutionDate, err = time.Parse(dayFormat, nextDate); err != nil {
		return nil, fmt.Errorf("parsing SIP next execution date: %w", err)
	}
	if endDate.Valid {
		t, err := time.Parse(dayFormat, endDate.String)
		if err != nil {
			return nil, fmt.Errorf("parsing SIP end date: %w", err)
		}
		sip.EndDate = &t
	}
	sip.Frequency = models.SIPFrequency(frequency)
	sip.Status = models.SIPStatus(status)
	sip.DayOfWeek = time.Weekday(dayOfWeek)
	return &sip, nil
}

// RecordSIPExecution inserts an execution record. A second record for
// the same schedule and day violates the unique pair and is reported as
// ErrAlreadyExecutedToday.
func (s *SQLiteStore) RecordSIPExecution(ctx context.Context, exec *models.SIPExecution) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sip_executions (id, sip_id, execution_date, amount, order_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.SIPID, exec.ExecutionDate.Format(dayFormat),
		exec.Amount.String(), exec.OrderCount, exec.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errs.ErrAlreadyExecutedToday
		}
		return fmt.Errorf("recording SIP execution: %w", err)
	}
	return nil
}

// HasSIPExecution reports whether an execution record exists for the day.
func (s *SQLiteStore) HasSIPExecution(ctx context.Context, sipID string, day time.Time) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM sip_executions WHERE sip_id = ? AND execution_date = ?`,
		sipID, day.Format(dayFormat)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("%w: %v", errs.ErrDatabaseError, err)
	}
	return count > 0, nil
}
