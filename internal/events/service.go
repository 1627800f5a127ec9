package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

// Actor identifies who is performing an event mutation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateEventInput holds the validated payload to create an event.
type CreateEventInput struct {
	CategoryIDs []uuid.UUID
	Title       string
	Description string
	Venue       string
	City        string
	Language    enums.EventLanguage
	StartsAt    time.Time
	EndsAt      *time.Time
}

// UpdateEventInput holds optional mutation values for an event. A non-nil
// CategoryIDs replaces the event's whole category set.
type UpdateEventInput struct {
	CategoryIDs []uuid.UUID
	Title       *string
	Description *string
	Venue       *string
	City        *string
	Language    *enums.EventLanguage
	StartsAt    *time.Time
	EndsAt      *time.Time
}

type categoryLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
}

// Service exposes organizer event management and the public catalog.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateEventInput) (*models.Event, error)
	Update(ctx context.Context, actor Actor, eventID uuid.UUID, input UpdateEventInput) (*models.Event, error)
	Publish(ctx context.Context, actor Actor, eventID uuid.UUID) (*models.Event, error)
	Unpublish(ctx context.Context, actor Actor, eventID uuid.UUID) (*models.Event, error)
	Delete(ctx context.Context, actor Actor, eventID uuid.UUID) error
	Get(ctx context.Context, eventID uuid.UUID) (*models.Event, error)
	ListPublished(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Event, string, error)
	ListMine(ctx context.Context, actor Actor, params pagination.Params) ([]models.Event, string, error)
}

type service struct {
	repo       *Repository
	categories categoryLoader
	now        func() time.Time
}

// NewService constructs an event service instance.
func NewService(repo *Repository, categories categoryLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("event repository required")
	}
	if categories == nil {
		return nil, fmt.Errorf("category loader required")
	}
	return &service{repo: repo, categories: categories, now: time.Now}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateEventInput) (*models.Event, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	title := strings.TrimSpace(input.Title)
	venue := strings.TrimSpace(input.Venue)
	if title == "" || venue == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and venue are required")
	}
	if input.StartsAt.Before(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event must start in the future")
	}
	if input.EndsAt != nil && input.EndsAt.Before(input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event cannot end before it starts")
	}
	language := input.Language
	if language == "" {
		language = enums.EventLanguageEN
	}
	if !language.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported event language")
	}
	cats, err := s.resolveCategories(ctx, input.CategoryIDs)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:          uuid.New(),
		OrganizerID: actor.UserID,
		Categories:  cats,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Venue:       venue,
		City:        strings.TrimSpace(input.City),
		Language:    language,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create event")
	}
	return event, nil
}

func (s *service) Update(ctx context.Context, actor Actor, eventID uuid.UUID, input UpdateEventInput) (*models.Event, error) {
	event, err := s.loadOwned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}

	if input.CategoryIDs != nil {
		cats, err := s.resolveCategories(ctx, input.CategoryIDs)
		if err != nil {
			return nil, err
		}
		if err := s.repo.ReplaceCategories(ctx, event, cats); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update event categories")
		}
		event.Categories = cats
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		event.Title = title
	}
	if input.Description != nil {
		event.Description = strings.TrimSpace(*input.Description)
	}
	if input.Venue != nil {
		venue := strings.TrimSpace(*input.Venue)
		if venue == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "venue cannot be empty")
		}
		event.Venue = venue
	}
	if input.City != nil {
		event.City = strings.TrimSpace(*input.City)
	}
	if input.Language != nil {
		if !input.Language.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported event language")
		}
		event.Language = *input.Language
	}
	if input.StartsAt != nil {
		if input.StartsAt.Before(s.now()) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "event must start in the future")
		}
		event.StartsAt = *input.StartsAt
	}
	if input.EndsAt != nil {
		event.EndsAt = input.EndsAt
	}
	if event.EndsAt != nil && event.EndsAt.Before(event.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event cannot end before it starts")
	}

	if err := s.repo.Save(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update event")
	}
	return event, nil
}

// Publish makes the event visible to the catalog. At least one ticket tier
// must exist so a published event is always purchasable.
func (s *service) Publish(ctx context.Context, actor Actor, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.loadOwned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if len(event.TicketTypes) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event needs at least one ticket tier to publish")
	}
	if event.StartsAt.Before(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "event already started")
	}
	if _, err := s.repo.SetPublished(ctx, event.ID, true); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish event")
	}
	event.IsPublished = true
	return event, nil
}

func (s *service) Unpublish(ctx context.Context, actor Actor, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.loadOwned(ctx, actor, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.SetPublished(ctx, event.ID, false); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unpublish event")
	}
	event.IsPublished = false
	return event, nil
}

// Delete removes an event that never sold a ticket.
func (s *service) Delete(ctx context.Context, actor Actor, eventID uuid.UUID) error {
	event, err := s.loadOwned(ctx, actor, eventID)
	if err != nil {
		return err
	}
	sold, err := s.repo.HasOrders(ctx, event.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check event orders")
	}
	if sold {
		return pkgerrors.New(pkgerrors.CodeConflict, "event has orders attached")
	}
	if _, err := s.repo.Delete(ctx, event.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete event")
	}
	return nil
}

func (s *service) Get(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	event, err := s.repo.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	return event, nil
}

func (s *service) ListPublished(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Event, string, error) {
	rows, err := s.repo.ListPublished(ctx, filter, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list events")
	}
	return paginate(rows, params)
}

func (s *service) ListMine(ctx context.Context, actor Actor, params pagination.Params) ([]models.Event, string, error) {
	if actor.UserID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByOrganizer(ctx, actor.UserID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list organizer events")
	}
	return paginate(rows, params)
}

func paginate(rows []models.Event, params pagination.Params) ([]models.Event, string, error) {
	page, next := pagination.TrimPage(rows, params.Limit, func(e models.Event) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return page, next, nil
}

// resolveCategories validates and loads the requested category set.
// At least one category is required and duplicates are collapsed.
func (s *service) resolveCategories(ctx context.Context, ids []uuid.UUID) ([]models.Category, error) {
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one category is required")
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	cats := make([]models.Category, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id required")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		cat, err := s.categories.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown category").
					WithDetails(map[string]any{"category_id": id.String()})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		cats = append(cats, *cat)
	}
	return cats, nil
}

func (s *service) loadOwned(ctx context.Context, actor Actor, eventID uuid.UUID) (*models.Event, error) {
	event, err := s.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && event.OrganizerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "event does not belong to organizer")
	}
	return event, nil
}
