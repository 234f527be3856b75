package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vaultScope/internal/analyze"
)

// Store provides Postgres persistence for runs and positions.
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

// PutReport records the run row and upserts every position it produced.
func (s *Store) PutReport(ctx context.Context, report *analyze.Report) error {
	if err := s.insertRun(ctx, report); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := s.upsertPositions(ctx, report); err != nil {
		return fmt.Errorf("upsert positions: %w", err)
	}
	return nil
}

func (s *Store) insertRun(ctx context.Context, report *analyze.Report) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analysis_runs (
			run_id, chain_id, vault, head_block, from_block, to_block,
			range_count, fallback_window, inferred, truncated,
			scanned_chunks, skipped_chunks, unknown_count, position_count,
			generated_at, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
	`,
		report.RunID.String(),
		int64(report.ChainID),
		report.Vault.Hex(),
		int64(report.Head),
		int64(report.FromBlock),
		int64(report.ToBlock),
		len(report.Ranges),
		report.FallbackWindow,
		report.Inferred,
		report.Truncated,
		report.ScannedChunks,
		report.SkippedChunks,
		report.UnknownCount,
		len(report.Positions),
		report.GeneratedAt,
	)
	return err
}

func (s *Store) upsertPositions(ctx context.Context, report *analyze.Report) error {
	if len(report.Positions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, position := range report.Positions {
		batch.Queue(`
			INSERT INTO vault_positions (
				chain_id, vault, address,
				total_deposits, total_withdrawals, net_position, net_shares,
				first_activity_ts, last_activity_ts,
				deposit_count, withdrawal_count,
				last_run_id, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (chain_id, vault, address)
			DO UPDATE SET
				total_deposits = EXCLUDED.total_deposits,
				total_withdrawals = EXCLUDED.total_withdrawals,
				net_position = EXCLUDED.net_position,
				net_shares = EXCLUDED.net_shares,
				first_activity_ts = LEAST(vault_positions.first_activity_ts, EXCLUDED.first_activity_ts),
				last_activity_ts = GREATEST(vault_positions.last_activity_ts, EXCLUDED.last_activity_ts),
				deposit_count = EXCLUDED.deposit_count,
				withdrawal_count = EXCLUDED.withdrawal_count,
				last_run_id = EXCLUDED.last_run_id,
				updated_at = now()
		`,
			int64(report.ChainID),
			report.Vault.Hex(),
			position.Address.Hex(),
			position.TotalDeposits.String(),
			position.TotalWithdrawals.String(),
			position.NetPosition().String(),
			position.NetShares.String(),
			int64(position.FirstActivity),
			int64(position.LastActivity),
			int64(position.DepositCount),
			int64(position.WithdrawalCount),
			report.RunID.String(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range report.Positions {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_analyzed_block for a vault.
func (s *Store) LoadState(ctx context.Context, vault string) (uint64, bool, error) {
	if vault == "" {
		return 0, false, fmt.Errorf("vault required")
	}
	var block uint64
	row := s.pool.QueryRow(ctx, `SELECT last_analyzed_block FROM analyzer_state WHERE vault=$1`, vault)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return block, true, nil
}

// SaveState upserts last_analyzed_block for a vault.
func (s *Store) SaveState(ctx context.Context, vault string, block uint64) error {
	if vault == "" {
		return fmt.Errorf("vault required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO analyzer_state (vault, last_analyzed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (vault) DO UPDATE
		SET last_analyzed_block = EXCLUDED.last_analyzed_block, updated_at = now()
	`, vault, block)
	return err
}
