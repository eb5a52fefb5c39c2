package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/partygames/internal/apperror"
)

//go:embed schema.sql
var schema string

// ConnectDB opens a pool against connStr and pings it.
func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return pgx.BeginTxFunc(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		return nil
	})
}

const uniqueViolation = "23505"

// constraintReasons maps unique constraints to the conflict reason they signal.
var constraintReasons = map[string]string{
	"user_purchases_one_open":            apperror.ReasonPurchaseOpen,
	"game_sessions_display_link_key":     apperror.ReasonLinkCollision,
	"game_sessions_contestants_link_key": apperror.ReasonLinkCollision,
	"game_sessions_purchase_id_key":      apperror.ReasonPurchaseInUse,
	"contestants_session_name_key":       apperror.ReasonContestantNameTaken,
}

// mapError turns driver errors into typed rejections where the core cares.
func mapError(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != "" {
		return apperror.Wrap(err, apperror.KindNotFound, notFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if reason, ok := constraintReasons[pgErr.ConstraintName]; ok {
			return apperror.Wrap(err, apperror.KindConflict, reason)
		}
	}
	return err
}
