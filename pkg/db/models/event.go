package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dalgayunus/iTicket/pkg/enums"
)

// Event is a scheduled happening tickets are sold for. Categories is a
// many-to-many through event_categories; every event carries at least one.
type Event struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrganizerID uuid.UUID           `gorm:"column:organizer_id;type:uuid;not null;index"`
	Categories  []Category          `gorm:"many2many:event_categories;constraint:OnDelete:CASCADE"`
	Title       string              `gorm:"column:title;type:text;not null"`
	Description string              `gorm:"column:description;type:text;not null;default:''"`
	Venue       string              `gorm:"column:venue;type:text;not null"`
	City        string              `gorm:"column:city;type:text;not null;default:''"`
	Language    enums.EventLanguage `gorm:"column:language;type:text;not null;default:'EN'"`
	StartsAt    time.Time           `gorm:"column:starts_at;not null;index"`
	EndsAt      *time.Time          `gorm:"column:ends_at"`
	IsPublished bool                `gorm:"column:is_published;not null;default:false"`
	TicketTypes []TicketType        `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
