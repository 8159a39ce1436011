package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var UnexpectedDatabaseError = errors.New("unexpected-database-error")

type PostgresSessionRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresSessionRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresSessionRepo{pool: pool}, nil
}

// UpsertWalletSession records a wallet login, refreshing last_login on repeat
// connects.
func (r *PostgresSessionRepo) UpsertWalletSession(ctx context.Context, address string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO player_sessions(wallet_address, last_login, is_active)
		 VALUES($1, now(), true)
		 ON CONFLICT (wallet_address)
		 DO UPDATE SET last_login = now(), is_active = true`,
		address,
	)

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
	}
	return nil
}

func (r *PostgresSessionRepo) Close() {
	r.pool.Close()
}
