package models

import (
	"time"

	"github.com/google/uuid"
)

// UserPurchase is a time-bounded access grant for one package.
// At most one non-completed purchase exists per (UserID, PackageID).
type UserPurchase struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	PackageID   uuid.UUID  `json:"package_id"`
	IsCompleted bool       `json:"is_completed"`
	PurchasedAt time.Time  `json:"purchased_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
