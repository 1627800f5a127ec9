package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dalgayunus/iTicket/pkg/enums"
)

// Order is a customer's purchase of one or more ticket lines.
// TotalPrice is fixed at creation; DiscountAmount and FinalPrice are
// set once when a promo is applied and never recomputed afterwards.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status         enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalPrice     decimal.Decimal   `gorm:"column:total_price;type:numeric(12,2);not null"`
	DiscountAmount *decimal.Decimal  `gorm:"column:discount_amount;type:numeric(12,2)"`
	FinalPrice     *decimal.Decimal  `gorm:"column:final_price;type:numeric(12,2)"`
	PromoCodeID    *uuid.UUID        `gorm:"column:promo_code_id;type:uuid"`
	Lines          []OrderLine       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt    *time.Time        `gorm:"column:confirmed_at"`
	CancelledAt    *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// ChargeAmount is what actually hits the wallet: the promo-adjusted
// price when one was applied, the full total otherwise.
func (o Order) ChargeAmount() decimal.Decimal {
	if o.FinalPrice != nil {
		return *o.FinalPrice
	}
	return o.TotalPrice
}
