package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbot/internal/config"
	"arbot/internal/model"
)

// Repository defines the standard interface for trade-log persistence.
type Repository interface {
	Migrate(ctx context.Context) error
	LogTrade(ctx context.Context, trade model.TradeRecord) error
	Close()
}

// PostgresRepository persists trade records via a pgx connection pool.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects to the configured database.
func NewPostgresRepository(ctx context.Context, cfg config.DatabaseConfig) (*PostgresRepository, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Migrate ensures the trades table exists.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id SERIAL PRIMARY KEY,
		executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		trading_pair VARCHAR(20) NOT NULL,
		buy_venue VARCHAR(50) NOT NULL,
		sell_venue VARCHAR(50) NOT NULL,
		buy_price NUMERIC(20, 8) NOT NULL,
		sell_price NUMERIC(20, 8) NOT NULL,
		amount NUMERIC(20, 8) NOT NULL,
		profit NUMERIC(20, 8) NOT NULL,
		profit_percent NUMERIC(20, 8) NOT NULL,
		outcome VARCHAR(20) NOT NULL
	);`
	_, err := r.Pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate trades table: %w", err)
	}
	return nil
}

// LogTrade appends one finalized trade to the log.
func (r *PostgresRepository) LogTrade(ctx context.Context, trade model.TradeRecord) error {
	const query = `
	INSERT INTO trades (
		executed_at, trading_pair, buy_venue, sell_venue,
		buy_price, sell_price, amount, profit, profit_percent, outcome
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.Pool.Exec(ctx, query,
		trade.Timestamp, trade.TradingPair, trade.BuyVenue, trade.SellVenue,
		trade.BuyPrice, trade.SellPrice, trade.Amount, trade.Profit,
		trade.ProfitPercent, trade.Outcome)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}
