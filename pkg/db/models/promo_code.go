package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PromoCode is a percentage discount with a bounded validity window and
// a usage budget. UsedCount only moves through a conditional increment
// guarded by UsageLimit.
type PromoCode struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code            string          `gorm:"column:code;type:text;not null;uniqueIndex"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null"`
	IsActive        bool            `gorm:"column:is_active;not null;default:true"`
	ValidFrom       time.Time       `gorm:"column:valid_from;not null"`
	ValidUntil      time.Time       `gorm:"column:valid_until;not null"`
	UsageLimit      int             `gorm:"column:usage_limit;not null"`
	UsedCount       int             `gorm:"column:used_count;not null;default:0"`
	CreatedBy       *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// IsUsable reports whether the code could be redeemed at the given
// instant. The usage budget is re-checked atomically at redemption.
func (p PromoCode) IsUsable(now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidUntil) {
		return false
	}
	return p.UsedCount < p.UsageLimit
}
