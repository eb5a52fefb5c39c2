package database

import (
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the persistence collaborator backed by a pgx pool.
// Conditional updates carry their precondition in the WHERE clause so a lost race
// surfaces as zero affected rows rather than a silent overwrite.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Pool exposes the underlying pool.
func (db *Postgres) Pool() *pgxpool.Pool {
	return db.pool
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// prefixed qualifies every column of a comma-separated list with prefix.
func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}
