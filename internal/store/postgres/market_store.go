package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/futarchybot/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Token family
// bundles are stored as JSONB since they travel as a unit.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, question, proposal, router, swap_spender, currency, company`

// Upsert inserts or replaces a market configuration.
func (s *MarketStore) Upsert(ctx context.Context, m domain.MarketConfig) error {
	currency, err := json.Marshal(m.Currency)
	if err != nil {
		return fmt.Errorf("postgres: encode currency tokens for %s: %w", m.ID, err)
	}
	company, err := json.Marshal(m.Company)
	if err != nil {
		return fmt.Errorf("postgres: encode company tokens for %s: %w", m.ID, err)
	}

	const query = `
		INSERT INTO markets (id, question, proposal, router, swap_spender, currency, company, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			question     = EXCLUDED.question,
			proposal     = EXCLUDED.proposal,
			router       = EXCLUDED.router,
			swap_spender = EXCLUDED.swap_spender,
			currency     = EXCLUDED.currency,
			company      = EXCLUDED.company,
			updated_at   = NOW()`

	_, err = s.pool.Exec(ctx, query,
		m.ID, m.Question, m.Proposal, m.Router, m.SwapSpender, currency, company,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// Get returns the market configuration with the given ID.
func (s *MarketStore) Get(ctx context.Context, id string) (domain.MarketConfig, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketConfig{}, domain.ErrNotFound
		}
		return domain.MarketConfig{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns all stored market configurations, newest first.
func (s *MarketStore) List(ctx context.Context) ([]domain.MarketConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.MarketConfig
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

func scanMarket(row pgx.Row) (domain.MarketConfig, error) {
	var m domain.MarketConfig
	var currency, company []byte
	err := row.Scan(&m.ID, &m.Question, &m.Proposal, &m.Router, &m.SwapSpender, &currency, &company)
	if err != nil {
		return domain.MarketConfig{}, err
	}
	if err := json.Unmarshal(currency, &m.Currency); err != nil {
		return domain.MarketConfig{}, fmt.Errorf("decode currency tokens: %w", err)
	}
	if err := json.Unmarshal(company, &m.Company); err != nil {
		return domain.MarketConfig{}, fmt.Errorf("decode company tokens: %w", err)
	}
	return m, nil
}
