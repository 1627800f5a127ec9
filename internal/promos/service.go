package promos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/db/models"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
)

// Service defines promo code operations.
type Service interface {
	Create(ctx context.Context, input CreatePromoInput) (*models.PromoCode, error)
	Update(ctx context.Context, id uuid.UUID, input UpdatePromoInput) (*models.PromoCode, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
	Check(ctx context.Context, code string, now time.Time) (*models.PromoCode, error)
	Redeem(ctx context.Context, tx *gorm.DB, code string, now time.Time) (*models.PromoCode, error)
}

type service struct {
	repo Repository
}

// CreatePromoInput captures the fields required to mint a promo code.
// CreatedBy records which organizer or admin minted it.
type CreatePromoInput struct {
	Code            string
	DiscountPercent decimal.Decimal
	ValidFrom       time.Time
	ValidUntil      time.Time
	UsageLimit      int
	CreatedBy       uuid.UUID
}

// UpdatePromoInput carries optional promo fields to change.
type UpdatePromoInput struct {
	IsActive   *bool
	ValidUntil *time.Time
	UsageLimit *int
}

// NewService wires a promo service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreatePromoInput) (*models.PromoCode, error) {
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	if !input.DiscountPercent.IsPositive() || input.DiscountPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be in (0, 100]")
	}
	if input.UsageLimit <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be positive")
	}
	if !input.ValidUntil.After(input.ValidFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validity window is inverted")
	}

	promo := &models.PromoCode{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: input.DiscountPercent,
		IsActive:        true,
		ValidFrom:       input.ValidFrom,
		ValidUntil:      input.ValidUntil,
		UsageLimit:      input.UsageLimit,
	}
	if input.CreatedBy != uuid.Nil {
		promo.CreatedBy = &input.CreatedBy
	}
	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "create promo code")
	}
	return promo, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdatePromoInput) (*models.PromoCode, error) {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.IsActive != nil {
		promo.IsActive = *input.IsActive
	}
	if input.ValidUntil != nil {
		promo.ValidUntil = *input.ValidUntil
	}
	if input.UsageLimit != nil {
		if *input.UsageLimit < promo.UsedCount {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "usage limit below current usage")
		}
		promo.UsageLimit = *input.UsageLimit
	}
	if err := s.repo.Update(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update promo code")
	}
	return promo, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo id required")
	}
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	return promo, nil
}

func (s *service) List(ctx context.Context) ([]models.PromoCode, error) {
	promos, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promo codes")
	}
	return promos, nil
}

// Check loads a code and verifies it could be redeemed right now. The usage
// budget it reports is advisory; Redeem re-checks it atomically.
func (s *service) Check(ctx context.Context, code string, now time.Time) (*models.PromoCode, error) {
	promo, err := s.findUsable(ctx, nil, code, now)
	if err != nil {
		return nil, err
	}
	return promo, nil
}

// Redeem validates the code and spends one use via a conditional increment
// inside the caller's transaction. Exactly usage_limit redemptions can ever
// succeed, no matter how many race.
func (s *service) Redeem(ctx context.Context, tx *gorm.DB, code string, now time.Time) (*models.PromoCode, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	promo, err := s.findUsable(ctx, tx, code, now)
	if err != nil {
		return nil, err
	}

	affected, err := s.repo.WithTx(tx).IncrementUsage(ctx, promo.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem promo code")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUsageLimit, "promo code usage limit reached").
			WithDetails(map[string]any{"code": promo.Code})
	}
	promo.UsedCount++
	return promo, nil
}

func (s *service) findUsable(ctx context.Context, tx *gorm.DB, code string, now time.Time) (*models.PromoCode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	repo := s.repo
	if tx != nil {
		repo = s.repo.WithTx(tx)
	}
	promo, err := repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	if !promo.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code is inactive")
	}
	if now.Before(promo.ValidFrom) || now.After(promo.ValidUntil) {
		return nil, pkgerrors.New(pkgerrors.CodePromoInvalid, "promo code outside validity window")
	}
	if promo.UsedCount >= promo.UsageLimit {
		return nil, pkgerrors.New(pkgerrors.CodeUsageLimit, "promo code usage limit reached")
	}
	return promo, nil
}
