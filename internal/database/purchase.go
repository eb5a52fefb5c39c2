package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/models"
)

const purchaseColumns = `id, user_id, package_id, is_completed, purchased_at, expires_at, completed_at`

func scanPurchase(row rowScanner) (*models.UserPurchase, error) {
	var p models.UserPurchase
	err := row.Scan(&p.ID, &p.UserID, &p.PackageID, &p.IsCompleted, &p.PurchasedAt, &p.ExpiresAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePurchase inserts a purchase. A second open purchase for the same
// (user, package) violates user_purchases_one_open and maps to conflict/purchase_open.
func (db *Postgres) CreatePurchase(ctx context.Context, p *models.UserPurchase) error {
	if p.ID == uuid.Nil {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate purchase id: %w", err)
		}
		p.ID = id
	}
	q := `INSERT INTO user_purchases (` + purchaseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	err := pgx.BeginTxFunc(ctx, db.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q,
			p.ID, p.UserID, p.PackageID, p.IsCompleted, p.PurchasedAt, p.ExpiresAt, p.CompletedAt,
		)
		return execErr
	})
	if err != nil {
		return mapError(err, "")
	}
	return nil
}

func (db *Postgres) GetPurchase(ctx context.Context, id uuid.UUID) (*models.UserPurchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM user_purchases WHERE id=$1`
	p, err := scanPurchase(db.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, mapError(err, apperror.ReasonPurchaseNotFound)
	}
	return p, nil
}

// FindOpenPurchase returns the non-completed purchase of (user, package), if any.
func (db *Postgres) FindOpenPurchase(ctx context.Context, userID, packageID uuid.UUID) (*models.UserPurchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM user_purchases
	WHERE user_id=$1 AND package_id=$2 AND NOT is_completed`
	p, err := scanPurchase(db.pool.QueryRow(ctx, q, userID, packageID))
	if err != nil {
		return nil, mapError(err, apperror.ReasonPurchaseNotFound)
	}
	return p, nil
}

// SetPurchaseExpiry persists a derived deadline. An existing deadline is never replaced.
func (db *Postgres) SetPurchaseExpiry(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	q := `UPDATE user_purchases SET expires_at=$2 WHERE id=$1 AND expires_at IS NULL`
	_, err := db.pool.Exec(ctx, q, id, expiresAt)
	return err
}

// CompletePurchase marks the purchase completed if it is not already. It reports whether
// this call made the transition.
func (db *Postgres) CompletePurchase(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	q := `UPDATE user_purchases SET is_completed=TRUE, completed_at=$2 WHERE id=$1 AND NOT is_completed`
	tag, err := db.pool.Exec(ctx, q, id, at)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := db.GetPurchase(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// ListOverduePurchases returns open purchases whose deadline passed, or whose deadline
// was never stored and whose purchase instant is before purchasedBefore.
func (db *Postgres) ListOverduePurchases(ctx context.Context, now, purchasedBefore time.Time, limit int) ([]models.UserPurchase, error) {
	q := `SELECT ` + purchaseColumns + ` FROM user_purchases
	WHERE NOT is_completed
	  AND (expires_at <= $1 OR (expires_at IS NULL AND purchased_at <= $2))
	ORDER BY purchased_at
	LIMIT $3`
	rows, err := db.pool.Query(ctx, q, now, purchasedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
