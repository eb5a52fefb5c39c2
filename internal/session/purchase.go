package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jason-s-yu/partygames/internal/apperror"
	"github.com/jason-s-yu/partygames/internal/models"
	"github.com/sirupsen/logrus"
)

// GrantPurchase records a purchase handed over by the payment side. A user holds at most
// one open purchase per package; an open one whose window already passed is completed
// first so it does not block the new grant.
func (s *Service) GrantPurchase(ctx context.Context, userID, packageID uuid.UUID) (*models.UserPurchase, error) {
	pkg, err := s.getPackage(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, apperror.Validation(apperror.ReasonPackageInactive, "package %s is not active", pkg.ID)
	}

	open, err := s.store.FindOpenPurchase(ctx, userID, packageID)
	switch {
	case err == nil:
		open, _, err = s.reconcilePurchase(ctx, open)
		if err != nil {
			return nil, err
		}
		if !open.IsCompleted {
			return nil, apperror.Conflict(apperror.ReasonPurchaseOpen, "purchase %s for this package is still open", open.ID)
		}
	case apperror.KindOf(err) != apperror.KindNotFound:
		return nil, err
	}

	now := s.now()
	expiresAt := s.policy.PurchaseExpiresAt(now)
	p := &models.UserPurchase{
		ID:          uuid.New(),
		UserID:      userID,
		PackageID:   packageID,
		PurchasedAt: now,
		ExpiresAt:   &expiresAt,
	}
	if err := s.store.CreatePurchase(ctx, p); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"purchase_id": p.ID,
		"user_id":     userID,
		"package_id":  packageID,
	}).Info("purchase granted")
	return p, nil
}

// GetPurchase returns a purchase with its expiry applied.
func (s *Service) GetPurchase(ctx context.Context, purchaseID uuid.UUID) (*models.UserPurchase, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	p, _, err = s.reconcilePurchase(ctx, p)
	return p, err
}

// CompletePurchase finalizes a purchase on explicit use. Completing twice is not an error.
func (s *Service) CompletePurchase(ctx context.Context, purchaseID uuid.UUID) (*models.UserPurchase, error) {
	if _, err := s.store.CompletePurchase(ctx, purchaseID, s.now()); err != nil {
		return nil, err
	}
	return s.store.GetPurchase(ctx, purchaseID)
}
