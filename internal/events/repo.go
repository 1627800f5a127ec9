package events

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

// ListFilter narrows the public event listing.
type ListFilter struct {
	Query      string
	CategoryID *uuid.UUID
	City       string
	Language   *enums.EventLanguage
	From       *time.Time
	To         *time.Time
}

// Repository exposes event persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs an events repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create persists the event and its event_categories join rows. The
// category rows themselves are never written from here.
func (r *Repository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Omit("Categories.*").Create(event).Error
}

func (r *Repository) Save(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(event).Error
}

// ReplaceCategories swaps the event's category set for the given one.
func (r *Repository) ReplaceCategories(ctx context.Context, event *models.Event, cats []models.Category) error {
	return r.db.WithContext(ctx).Model(event).Association("Categories").Replace(cats)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := r.db.WithContext(ctx).
		Preload("TicketTypes").
		Preload("Categories").
		First(&event, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// ListPublished returns upcoming published events filtered and cursor-paged.
func (r *Repository) ListPublished(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Event, error) {
	query := r.db.WithContext(ctx).
		Preload("Categories").
		Where("is_published = ?", true).
		Order("created_at DESC").
		Order("events.id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit))

	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(venue) LIKE ?", like, like)
	}
	if filter.CategoryID != nil {
		query = query.
			Joins("JOIN event_categories ON event_categories.event_id = events.id").
			Where("event_categories.category_id = ?", *filter.CategoryID)
	}
	if filter.City != "" {
		query = query.Where("LOWER(city) = LOWER(?)", filter.City)
	}
	if filter.Language != nil {
		query = query.Where("language = ?", *filter.Language)
	}
	if filter.From != nil {
		query = query.Where("starts_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("starts_at <= ?", *filter.To)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("created_at < ? OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// ListByOrganizer returns the organizer's events, drafts included.
func (r *Repository) ListByOrganizer(ctx context.Context, organizerID uuid.UUID, params pagination.Params) ([]models.Event, error) {
	query := r.db.WithContext(ctx).
		Preload("Categories").
		Where("organizer_id = ?", organizerID).
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

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// SetPublished flips the publish flag.
func (r *Repository) SetPublished(ctx context.Context, id uuid.UUID, published bool) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_published": published, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// HasOrders reports whether any order line references the event.
func (r *Repository) HasOrders(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLine{}).
		Where("event_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Event{}, "id = ?", id)
	return res.RowsAffected, res.Error
}
