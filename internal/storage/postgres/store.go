package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"autoRepay/internal/model"
)

// Schema creates the tables the bot writes to.
const Schema = `
CREATE TABLE IF NOT EXISTS indexer_state (
	name TEXT PRIMARY KEY,
	last_block BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS health_factor_settings (
	user_address TEXT PRIMARY KEY,
	seq BIGSERIAL,
	min_hf NUMERIC NOT NULL,
	target_hf NUMERIC NOT NULL,
	max_hf NUMERIC NOT NULL,
	rate_mode SMALLINT NOT NULL,
	borrow_asset TEXT NOT NULL,
	collateral_asset TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS rebalance_outcomes (
	id BIGSERIAL PRIMARY KEY,
	user_address TEXT NOT NULL,
	direction TEXT NOT NULL,
	collateral_asset TEXT NOT NULL,
	debt_asset TEXT NOT NULL,
	status TEXT NOT NULL,
	attempts INT NOT NULL,
	amounts TEXT[] NOT NULL,
	use_flashloan BOOLEAN NOT NULL,
	tx_hash TEXT,
	error TEXT,
	recorded_at TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for thresholds, scanner progress and
// rebalance outcomes.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

// PutOutcome inserts one rebalance outcome.
func (s *Store) PutOutcome(ctx context.Context, o model.Outcome) error {
	recordedAt, err := time.Parse(time.RFC3339Nano, o.RecordedAt)
	if err != nil {
		recordedAt = time.Now().UTC()
	}
	amounts := o.Amounts
	if amounts == nil {
		amounts = []string{}
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO rebalance_outcomes (
			user_address, direction, collateral_asset, debt_asset, status, attempts,
			amounts, use_flashloan, tx_hash, error, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
	`,
		o.User,
		string(o.Direction),
		o.CollateralAsset,
		o.DebtAsset,
		o.Status,
		o.Attempts,
		amounts,
		o.UseFlashloan,
		o.TxHash,
		o.Error,
		recordedAt,
	)
	return err
}

// UpsertThresholds inserts or updates borrower thresholds.
func (s *Store) UpsertThresholds(ctx context.Context, settings []model.UserSetting) error {
	if len(settings) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, setting := range settings {
		th := setting.Thresholds
		batch.Queue(`
			INSERT INTO health_factor_settings (
				user_address, min_hf, target_hf, max_hf, rate_mode, borrow_asset, collateral_asset, updated_at
			) VALUES ($1, $2::numeric, $3::numeric, $4::numeric, $5, $6, $7, now())
			ON CONFLICT (user_address)
			DO UPDATE SET
				min_hf = EXCLUDED.min_hf,
				target_hf = EXCLUDED.target_hf,
				max_hf = EXCLUDED.max_hf,
				rate_mode = EXCLUDED.rate_mode,
				borrow_asset = EXCLUDED.borrow_asset,
				collateral_asset = EXCLUDED.collateral_asset,
				updated_at = now()
		`,
			setting.User.Hex(),
			numericText(th.Min),
			numericText(th.Target),
			numericText(th.Max),
			int16(th.RateMode),
			th.BorrowAsset.Hex(),
			th.CollateralAsset.Hex(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range settings {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadThresholds returns every stored borrower in first-seen order.
func (s *Store) LoadThresholds(ctx context.Context) ([]model.UserSetting, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_address, min_hf::text, target_hf::text, max_hf::text, rate_mode, borrow_asset, collateral_asset
		FROM health_factor_settings
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserSetting
	for rows.Next() {
		var (
			user, minHF, targetHF, maxHF, borrow, collateral string
			rateMode                                         int16
		)
		if err := rows.Scan(&user, &minHF, &targetHF, &maxHF, &rateMode, &borrow, &collateral); err != nil {
			return nil, err
		}
		th := model.UserThresholds{
			RateMode:        model.RateMode(rateMode),
			BorrowAsset:     common.HexToAddress(borrow),
			CollateralAsset: common.HexToAddress(collateral),
		}
		if th.Min, err = parseNumeric(minHF); err != nil {
			return nil, fmt.Errorf("min_hf for %s: %w", user, err)
		}
		if th.Target, err = parseNumeric(targetHF); err != nil {
			return nil, fmt.Errorf("target_hf for %s: %w", user, err)
		}
		if th.Max, err = parseNumeric(maxHF); err != nil {
			return nil, fmt.Errorf("max_hf for %s: %w", user, err)
		}
		out = append(out, model.UserSetting{User: common.HexToAddress(user), Thresholds: th})
	}
	return out, rows.Err()
}

// LoadState returns the last processed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = EXCLUDED.last_block, updated_at = now()
	`, name, int64(block))
	return err
}

func numericText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseNumeric(text string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric %q", text)
	}
	return v, nil
}
