package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/internal/inventory"
	"github.com/dalgayunus/iTicket/internal/promos"
	"github.com/dalgayunus/iTicket/internal/wallet"
	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/outbox"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// TicketTypeLoader resolves the tiers an order wants to buy, with their
// events attached, inside the order-creation transaction.
type TicketTypeLoader interface {
	FindForPurchase(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.TicketType, map[uuid.UUID]models.Event, error)
}

// Service owns the order lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, userID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ApplyPromo(ctx context.Context, input ApplyPromoInput) (*models.Order, error)
	Confirm(ctx context.Context, input TransitionInput) (*models.Order, error)
	Cancel(ctx context.Context, input TransitionInput) (*models.Order, error)
	MarkReturned(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo    Repository
	tickets TicketTypeLoader
	wallet  wallet.Service
	promos  promos.Service
	tx      txRunner
	outbox  outboxPublisher
	now     func() time.Time
}

// CreateOrderLine is one requested tier/quantity pair.
type CreateOrderLine struct {
	TicketTypeID uuid.UUID
	Quantity     int
}

// CreateOrderInput captures one checkout request.
type CreateOrderInput struct {
	UserID uuid.UUID
	Role   enums.UserRole
	Lines  []CreateOrderLine
}

// ApplyPromoInput attaches a promo code to a pending order.
type ApplyPromoInput struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	IsAdmin bool
	Code    string
}

// TransitionInput drives a confirm or cancel transition.
type TransitionInput struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	IsAdmin bool
}

// OrderEvent is the payload emitted on order lifecycle transitions. A
// confirmed order additionally carries the customer, the promo pricing and a
// per-line snapshot frozen inside the confirming transaction, so consumers
// work from what the buyer actually paid for.
type OrderEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	UserID         uuid.UUID         `json:"user_id"`
	Status         enums.OrderStatus `json:"status"`
	TotalPrice     string            `json:"total_price"`
	FinalPrice     string            `json:"final_price,omitempty"`
	LineCount      int               `json:"line_count"`
	PromoCode      string            `json:"promo_code,omitempty"`
	DiscountAmount string            `json:"discount_amount,omitempty"`
	Customer       *OrderCustomer    `json:"customer,omitempty"`
	Lines          []OrderEventLine  `json:"lines,omitempty"`
}

// OrderCustomer identifies the buyer at confirm time.
type OrderCustomer struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

// OrderEventLine is one order line with its event and tier snapshot.
type OrderEventLine struct {
	LineID        uuid.UUID `json:"line_id"`
	TicketTypeID  uuid.UUID `json:"ticket_type_id"`
	TicketName    string    `json:"ticket_name"`
	EventID       uuid.UUID `json:"event_id"`
	EventTitle    string    `json:"event_title"`
	EventVenue    string    `json:"event_venue"`
	EventStartsAt time.Time `json:"event_starts_at"`
	Quantity      int       `json:"quantity"`
	UnitPrice     string    `json:"unit_price"`
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tickets TicketTypeLoader, walletSvc wallet.Service, promoSvc promos.Service, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tickets == nil {
		return nil, fmt.Errorf("ticket type loader required")
	}
	if walletSvc == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	if promoSvc == nil {
		return nil, fmt.Errorf("promo service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tickets: tickets,
		wallet:  walletSvc,
		promos:  promoSvc,
		tx:      tx,
		outbox:  outboxSvc,
		now:     time.Now,
	}, nil
}

// Create reserves inventory for every line and persists the order in a
// single transaction. Any reservation shortfall aborts the whole order.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one line")
	}
	seen := map[uuid.UUID]bool{}
	ids := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.TicketTypeID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "ticket type id required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if seen[line.TicketTypeID] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate ticket type in order")
		}
		seen[line.TicketTypeID] = true
		ids = append(ids, line.TicketTypeID)
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		tiers, events, err := s.tickets.FindForPurchase(ctx, tx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket types")
		}

		now := s.now()
		requests := make([]inventory.ReservationRequest, 0, len(input.Lines))
		lines := make([]models.OrderLine, 0, len(input.Lines))
		orderID := uuid.New()
		for _, line := range input.Lines {
			tier, ok := tiers[line.TicketTypeID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ticket type not found").
					WithDetails(map[string]any{"ticket_type_id": line.TicketTypeID.String()})
			}
			event, ok := events[tier.EventID]
			if !ok || !event.IsPublished {
				return pkgerrors.New(pkgerrors.CodeNotFound, "event not available")
			}
			if event.StartsAt.Before(now) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "event already started").
					WithDetails(map[string]any{"event_id": event.ID.String()})
			}
			requests = append(requests, inventory.ReservationRequest{TicketTypeID: tier.ID, Qty: line.Quantity})
			lines = append(lines, models.OrderLine{
				ID:           uuid.New(),
				OrderID:      orderID,
				TicketTypeID: tier.ID,
				EventID:      tier.EventID,
				Quantity:     line.Quantity,
				UnitPrice:    tier.EffectivePrice(),
			})
		}

		if err := inventory.Reserve(ctx, tx, requests); err != nil {
			return err
		}

		order := &models.Order{
			ID:         orderID,
			UserID:     input.UserID,
			Status:     enums.OrderStatusPending,
			TotalPrice: Total(lines),
		}
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order lines")
		}
		order.Lines = lines

		if err := s.emit(ctx, tx, enums.EventOrderCreated, order, input.Role); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return page, next, nil
}

// ApplyPromo attaches a promo code exactly once. The promo's usage budget is
// spent and the pricing fields are written in the same transaction, so a
// failed application never leaks a redemption.
func (s *service) ApplyPromo(ctx context.Context, input ApplyPromoInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if !input.IsAdmin && order.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not eligible for a promo")
		}
		if order.PromoCodeID != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "promo already applied to order")
		}

		now := s.now()
		for _, line := range order.Lines {
			started, err := s.eventStarted(ctx, tx, line.EventID, now)
			if err != nil {
				return err
			}
			if started {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order contains a past event").
					WithDetails(map[string]any{"event_id": line.EventID.String()})
			}
		}

		promo, err := s.promos.Redeem(ctx, tx, input.Code, now)
		if err != nil {
			return err
		}

		discount := DiscountFor(order.TotalPrice, promo.DiscountPercent)
		final := FinalFor(order.TotalPrice, discount)

		affected, err := repo.ApplyPromoIf(ctx, order.ID, PromoFields{
			PromoCodeID:    promo.ID,
			DiscountAmount: discount,
			FinalPrice:     final,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply promo to order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "promo already applied to order")
		}

		order.PromoCodeID = &promo.ID
		order.DiscountAmount = &discount
		order.FinalPrice = &final
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Confirm settles a pending order: the wallet debit and the status flip
// commit together or not at all.
func (s *service) Confirm(ctx context.Context, input TransitionInput) (*models.Order, error) {
	var confirmed *models.Order
	err := s.transition(ctx, input, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be confirmed")
		}

		charge := order.ChargeAmount()
		if charge.IsPositive() {
			if err := s.wallet.Withdraw(ctx, tx, order.UserID, charge); err != nil {
				return err
			}
		}

		now := s.now()
		affected, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusConfirmed, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already transitioned")
		}

		order.Status = enums.OrderStatusConfirmed
		order.ConfirmedAt = &now
		confirmed = order
		return s.emit(ctx, tx, enums.EventOrderConfirmed, order, "")
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// Cancel refunds the order's charge amount by deposit and flips the order to
// cancelled. Only pending orders may cancel; confirmed orders are rejected
// so a refund can never be doubled. Inventory is deliberately not restocked.
func (s *service) Cancel(ctx context.Context, input TransitionInput) (*models.Order, error) {
	var cancelled *models.Order
	err := s.transition(ctx, input, func(tx *gorm.DB, repo Repository, order *models.Order) error {
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled")
		}

		refund := order.ChargeAmount()
		if refund.IsPositive() {
			if err := s.wallet.Deposit(ctx, tx, order.UserID, refund); err != nil {
				return err
			}
		}

		now := s.now()
		affected, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCancelled, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already transitioned")
		}

		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		cancelled = order
		return s.emit(ctx, tx, enums.EventOrderCancelled, order, "")
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// MarkReturned stamps the terminal returned marker on a confirmed order.
// The refund flow itself lives outside this service.
func (s *service) MarkReturned(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var returned *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusConfirmed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only confirmed orders can be returned")
		}
		affected, err := repo.UpdateStatusIf(ctx, order.ID, enums.OrderStatusConfirmed, enums.OrderStatusReturned, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order returned")
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already transitioned")
		}
		order.Status = enums.OrderStatusReturned
		returned = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}

func (s *service) transition(ctx context.Context, input TransitionInput, fn func(tx *gorm.DB, repo Repository, order *models.Order) error) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.load(ctx, repo, input.OrderID)
		if err != nil {
			return err
		}
		if !input.IsAdmin && order.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		return fn(tx, repo, order)
	})
}

func (s *service) load(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) eventStarted(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, now time.Time) (bool, error) {
	var event models.Event
	err := tx.WithContext(ctx).Select("id", "starts_at").Where("id = ?", eventID).First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	return event.StartsAt.Before(now), nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, role enums.UserRole) error {
	payload := OrderEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice.StringFixed(2),
		LineCount:  len(order.Lines),
	}
	if order.FinalPrice != nil {
		payload.FinalPrice = order.FinalPrice.StringFixed(2)
	}
	if eventType == enums.EventOrderConfirmed {
		if err := s.attachFulfillmentData(ctx, tx, order, &payload); err != nil {
			return err
		}
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: order.UserID, Role: string(role)},
		Data:          payload,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue order event")
	}
	return nil
}

// attachFulfillmentData fills the confirmed payload with the buyer, the promo
// pricing and one snapshot per line, all read inside the confirming
// transaction.
func (s *service) attachFulfillmentData(ctx context.Context, tx *gorm.DB, order *models.Order, payload *OrderEvent) error {
	var user models.User
	err := tx.WithContext(ctx).Select("id", "email", "first_name", "last_name").
		Where("id = ?", order.UserID).First(&user).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order customer")
	}
	payload.Customer = &OrderCustomer{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}

	if order.DiscountAmount != nil {
		payload.DiscountAmount = order.DiscountAmount.StringFixed(2)
	}
	if order.PromoCodeID != nil {
		var promo models.PromoCode
		err := tx.WithContext(ctx).Select("id", "code").
			Where("id = ?", *order.PromoCodeID).First(&promo).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
		}
		payload.PromoCode = promo.Code
	}

	events := map[uuid.UUID]models.Event{}
	payload.Lines = make([]OrderEventLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		event, ok := events[line.EventID]
		if !ok {
			if err := tx.WithContext(ctx).Select("id", "title", "venue", "starts_at").
				Where("id = ?", line.EventID).First(&event).Error; err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line event")
			}
			events[line.EventID] = event
		}
		var tier models.TicketType
		if err := tx.WithContext(ctx).Select("id", "name").
			Where("id = ?", line.TicketTypeID).First(&tier).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line ticket type")
		}
		payload.Lines = append(payload.Lines, OrderEventLine{
			LineID:        line.ID,
			TicketTypeID:  line.TicketTypeID,
			TicketName:    tier.Name,
			EventID:       line.EventID,
			EventTitle:    event.Title,
			EventVenue:    event.Venue,
			EventStartsAt: event.StartsAt,
			Quantity:      line.Quantity,
			UnitPrice:     line.UnitPrice.StringFixed(2),
		})
	}
	return nil
}
