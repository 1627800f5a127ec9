package tickets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/db/models"
)

// ListFilter narrows a tier listing.
type ListFilter struct {
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	AvailableOnly bool
}

// Repository exposes ticket tier persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a tickets repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, tier *models.TicketType) error {
	return r.db.WithContext(ctx).Create(tier).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.TicketType, error) {
	var tier models.TicketType
	if err := r.db.WithContext(ctx).First(&tier, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tier, nil
}

func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID, filter ListFilter) ([]models.TicketType, error) {
	query := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("price ASC")

	if filter.MinPrice != nil {
		query = query.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.AvailableOnly {
		query = query.Where("quantity_available > 0")
	}

	var tiers []models.TicketType
	if err := query.Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}

// ListMostDiscounted returns tiers of published events ordered by the
// steepest tier discount first.
func (r *Repository) ListMostDiscounted(ctx context.Context, limit int) ([]models.TicketType, error) {
	var tiers []models.TicketType
	err := r.db.WithContext(ctx).
		Joins("JOIN events ON events.id = ticket_types.event_id").
		Where("events.is_published = ?", true).
		Where("ticket_types.discount_percent IS NOT NULL").
		Where("ticket_types.discount_percent > 0").
		Order("ticket_types.discount_percent DESC").
		Order("ticket_types.price ASC").
		Limit(limit).
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

// UpdateFields applies the provided column map to the tier.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).
		Model(&models.TicketType{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// GrowCapacity raises both the total and available quantity by delta in one
// conditional update.
func (r *Repository) GrowCapacity(ctx context.Context, id uuid.UUID, delta int) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.TicketType{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"quantity_total":     gorm.Expr("quantity_total + ?", delta),
			"quantity_available": gorm.Expr("quantity_available + ?", delta),
			"updated_at":         time.Now(),
		})
	return res.RowsAffected, res.Error
}

// HasOrders reports whether any order line references the tier.
func (r *Repository) HasOrders(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("ticket_type_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.TicketType{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// FindForPurchase loads the requested tiers and their events inside the
// order-creation transaction.
func (r *Repository) FindForPurchase(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.TicketType, map[uuid.UUID]models.Event, error) {
	db := r.db
	if tx != nil {
		db = tx
	}

	var tiers []models.TicketType
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&tiers).Error; err != nil {
		return nil, nil, err
	}
	tierMap := make(map[uuid.UUID]models.TicketType, len(tiers))
	eventIDs := make([]uuid.UUID, 0, len(tiers))
	for _, tier := range tiers {
		tierMap[tier.ID] = tier
		eventIDs = append(eventIDs, tier.EventID)
	}

	eventMap := make(map[uuid.UUID]models.Event, len(eventIDs))
	if len(eventIDs) > 0 {
		var events []models.Event
		if err := db.WithContext(ctx).Where("id IN ?", eventIDs).Find(&events).Error; err != nil {
			return nil, nil, err
		}
		for _, event := range events {
			eventMap[event.ID] = event
		}
	}
	return tierMap, eventMap, nil
}
