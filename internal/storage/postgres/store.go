package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"volumeScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pool_metadata (
	chain_id           BIGINT      NOT NULL,
	pool_address       TEXT        NOT NULL,
	token0             TEXT        NOT NULL,
	token1             TEXT        NOT NULL,
	fee                INTEGER     NOT NULL,
	fee_tier           TEXT        NOT NULL,
	common_token       TEXT        NOT NULL,
	other_token        TEXT        NOT NULL,
	common_token_index SMALLINT    NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_address)
);
CREATE TABLE IF NOT EXISTS token_metadata (
	chain_id      BIGINT      NOT NULL,
	token_address TEXT        NOT NULL,
	name          TEXT        NOT NULL,
	symbol        TEXT        NOT NULL,
	decimals      SMALLINT    NOT NULL,
	fetched_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, token_address)
);
`

// Store persists immutable pool and token metadata so restarts skip contract reads.
type Store struct {
	pool    *pgxpool.Pool
	chainID uint64
}

func NewStore(ctx context.Context, dsn string, chainID uint64) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, chainID: chainID}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the metadata tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) LoadPool(ctx context.Context, address string) (model.PoolInfo, bool, error) {
	var info model.PoolInfo
	var index int16
	row := s.pool.QueryRow(ctx, `
		SELECT pool_address, token0, token1, fee, fee_tier, common_token, other_token, common_token_index
		FROM pool_metadata WHERE chain_id=$1 AND pool_address=$2
	`, int64(s.chainID), strings.ToLower(address))
	if err := row.Scan(&info.Address, &info.Token0, &info.Token1, &info.Fee, &info.FeeTier, &info.CommonToken, &info.OtherToken, &index); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolInfo{}, false, nil
		}
		return model.PoolInfo{}, false, err
	}
	info.CommonTokenIndex = int(index)
	info.IsCommonPool = true
	return info, true, nil
}

// SavePool upserts a common-token pool.
func (s *Store) SavePool(ctx context.Context, info model.PoolInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pool_metadata (
			chain_id, pool_address, token0, token1, fee, fee_tier, common_token, other_token, common_token_index
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (chain_id, pool_address)
		DO UPDATE SET
			token0 = EXCLUDED.token0,
			token1 = EXCLUDED.token1,
			fee = EXCLUDED.fee,
			fee_tier = EXCLUDED.fee_tier,
			common_token = EXCLUDED.common_token,
			other_token = EXCLUDED.other_token,
			common_token_index = EXCLUDED.common_token_index,
			updated_at = now()
	`,
		int64(s.chainID),
		strings.ToLower(info.Address),
		info.Token0,
		info.Token1,
		int64(info.Fee),
		info.FeeTier,
		info.CommonToken,
		info.OtherToken,
		int16(info.CommonTokenIndex),
	)
	return err
}

func (s *Store) LoadToken(ctx context.Context, address string) (model.TokenInfo, bool, error) {
	var info model.TokenInfo
	var decimals int16
	var fetchedAt time.Time
	row := s.pool.QueryRow(ctx, `
		SELECT token_address, name, symbol, decimals, fetched_at
		FROM token_metadata WHERE chain_id=$1 AND token_address=$2
	`, int64(s.chainID), strings.ToLower(address))
	if err := row.Scan(&info.Address, &info.Name, &info.Symbol, &decimals, &fetchedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TokenInfo{}, false, nil
		}
		return model.TokenInfo{}, false, err
	}
	info.Decimals = uint8(decimals)
	info.LastUpdated = fetchedAt
	return info, true, nil
}

// SaveToken upserts token metadata read from chain.
func (s *Store) SaveToken(ctx context.Context, info model.TokenInfo) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO token_metadata (chain_id, token_address, name, symbol, decimals, fetched_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (chain_id, token_address)
		DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = now()
	`,
		int64(s.chainID),
		strings.ToLower(info.Address),
		info.Name,
		info.Symbol,
		int16(info.Decimals),
		info.LastUpdated,
	)
	return err
}
