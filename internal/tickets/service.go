package tickets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

var oneHundred = decimal.NewFromInt(100)

// Actor identifies who is performing a tier mutation.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateTierInput holds the validated payload to create a ticket tier.
type CreateTierInput struct {
	EventID         uuid.UUID
	Name            string
	Price           decimal.Decimal
	DiscountPercent *decimal.Decimal
	Quantity        int
}

// UpdateTierInput holds optional mutation values for a tier. Price and
// discount edits only affect future orders; sold lines keep their snapshot.
type UpdateTierInput struct {
	Name            *string
	Price           *decimal.Decimal
	DiscountPercent *decimal.Decimal
	ClearDiscount   bool
	AddCapacity     *int
}

type eventLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
}

// Service exposes ticket tier management for organizers.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateTierInput) (*models.TicketType, error)
	Update(ctx context.Context, actor Actor, tierID uuid.UUID, input UpdateTierInput) (*models.TicketType, error)
	Delete(ctx context.Context, actor Actor, tierID uuid.UUID) error
	ListByEvent(ctx context.Context, eventID uuid.UUID, filter ListFilter) ([]models.TicketType, error)
	ListDiscounted(ctx context.Context, limit int) ([]models.TicketType, error)
}

type service struct {
	repo   *Repository
	events eventLoader
}

// NewService constructs a ticket tier service instance.
func NewService(repo *Repository, events eventLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ticket repository required")
	}
	if events == nil {
		return nil, fmt.Errorf("event loader required")
	}
	return &service{repo: repo, events: events}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateTierInput) (*models.TicketType, error) {
	if _, err := s.ownedEvent(ctx, actor, input.EventID); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier name required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if err := validateDiscount(input.DiscountPercent); err != nil {
		return nil, err
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	tier := &models.TicketType{
		ID:                uuid.New(),
		EventID:           input.EventID,
		Name:              name,
		Price:             input.Price,
		DiscountPercent:   input.DiscountPercent,
		QuantityTotal:     input.Quantity,
		QuantityAvailable: input.Quantity,
	}
	if err := s.repo.Create(ctx, tier); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create ticket tier")
	}
	return tier, nil
}

func (s *service) Update(ctx context.Context, actor Actor, tierID uuid.UUID, input UpdateTierInput) (*models.TicketType, error) {
	tier, err := s.loadOwnedTier(ctx, actor, tierID)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier name cannot be empty")
		}
		fields["name"] = name
		tier.Name = name
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		fields["price"] = *input.Price
		tier.Price = *input.Price
	}
	if input.ClearDiscount {
		fields["discount_percent"] = nil
		tier.DiscountPercent = nil
	} else if input.DiscountPercent != nil {
		if err := validateDiscount(input.DiscountPercent); err != nil {
			return nil, err
		}
		fields["discount_percent"] = *input.DiscountPercent
		tier.DiscountPercent = input.DiscountPercent
	}

	if len(fields) > 0 {
		if err := s.repo.UpdateFields(ctx, tier.ID, fields); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update ticket tier")
		}
	}

	if input.AddCapacity != nil {
		delta := *input.AddCapacity
		if delta <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "capacity increase must be positive")
		}
		if _, err := s.repo.GrowCapacity(ctx, tier.ID, delta); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grow tier capacity")
		}
		tier.QuantityTotal += delta
		tier.QuantityAvailable += delta
	}

	return tier, nil
}

// Delete removes a tier that never sold.
func (s *service) Delete(ctx context.Context, actor Actor, tierID uuid.UUID) error {
	tier, err := s.loadOwnedTier(ctx, actor, tierID)
	if err != nil {
		return err
	}
	sold, err := s.repo.HasOrders(ctx, tier.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check tier orders")
	}
	if sold {
		return pkgerrors.New(pkgerrors.CodeConflict, "tier has orders attached")
	}
	if _, err := s.repo.Delete(ctx, tier.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete ticket tier")
	}
	return nil
}

func (s *service) ListByEvent(ctx context.Context, eventID uuid.UUID, filter ListFilter) ([]models.TicketType, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price exceeds max_price")
	}
	tiers, err := s.repo.ListByEvent(ctx, eventID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ticket tiers")
	}
	return tiers, nil
}

func (s *service) ListDiscounted(ctx context.Context, limit int) ([]models.TicketType, error) {
	if limit <= 0 || limit > pagination.MaxLimit {
		limit = pagination.DefaultLimit
	}
	tiers, err := s.repo.ListMostDiscounted(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list discounted tiers")
	}
	return tiers, nil
}

func (s *service) loadOwnedTier(ctx context.Context, actor Actor, tierID uuid.UUID) (*models.TicketType, error) {
	if tierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tier id required")
	}
	tier, err := s.repo.FindByID(ctx, tierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket tier")
	}
	if _, err := s.ownedEvent(ctx, actor, tier.EventID); err != nil {
		return nil, err
	}
	return tier, nil
}

func (s *service) ownedEvent(ctx context.Context, actor Actor, eventID uuid.UUID) (*models.Event, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	event, err := s.events.FindByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	if actor.Role != enums.UserRoleAdmin && event.OrganizerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "event does not belong to organizer")
	}
	return event, nil
}

func validateDiscount(pct *decimal.Decimal) error {
	if pct == nil {
		return nil
	}
	if pct.IsNegative() || pct.GreaterThan(oneHundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 0 and 100")
	}
	return nil
}
