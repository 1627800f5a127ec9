package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TicketType is a sellable tier for one event (standard, VIP, ...).
// QuantityAvailable only moves through conditional updates so the
// tier can never be oversold.
type TicketType struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	EventID           uuid.UUID        `gorm:"column:event_id;type:uuid;not null;index"`
	Name              string           `gorm:"column:name;type:text;not null"`
	Price             decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	DiscountPercent   *decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2)"`
	QuantityTotal     int              `gorm:"column:quantity_total;not null"`
	QuantityAvailable int              `gorm:"column:quantity_available;not null"`
	CreatedAt         time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

// EffectivePrice applies the tier discount, when present, to the list price.
func (t TicketType) EffectivePrice() decimal.Decimal {
	if t.DiscountPercent == nil || t.DiscountPercent.IsZero() {
		return t.Price
	}
	discount := t.Price.Mul(*t.DiscountPercent).Div(decimal.NewFromInt(100)).Round(2)
	return t.Price.Sub(discount)
}
