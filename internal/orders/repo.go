package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

// PromoFields carries the pricing columns set once when a promo is applied.
type PromoFields struct {
	PromoCodeID    uuid.UUID
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
}

// Repository exposes order persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLines(ctx context.Context, lines []models.OrderLine) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error)
	UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, stamp time.Time) (int64, error)
	ApplyPromoIf(ctx context.Context, id uuid.UUID, fields PromoFields) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) CreateLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("Lines").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatusIf flips status only when the row is still in the expected
// state, stamping the matching timestamp column. Zero rows affected means a
// concurrent transition won.
func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, stamp time.Time) (int64, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": stamp,
	}
	switch to {
	case enums.OrderStatusConfirmed:
		updates["confirmed_at"] = stamp
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = stamp
	}
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// ApplyPromoIf sets the promo pricing fields only while the order is still
// pending and unpromoted.
func (r *repository) ApplyPromoIf(ctx context.Context, id uuid.UUID, fields PromoFields) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND promo_code_id IS NULL", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"promo_code_id":   fields.PromoCodeID,
			"discount_amount": fields.DiscountAmount,
			"final_price":     fields.FinalPrice,
			"updated_at":      time.Now(),
		})
	return result.RowsAffected, result.Error
}
