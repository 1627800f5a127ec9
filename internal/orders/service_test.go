package orders

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/internal/promos"
	"github.com/dalgayunus/iTicket/internal/wallet"
	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/outbox"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

func TestCreateSnapshotsPricesAndReservesInventory(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "200.00")
	eventID := fx.seedEvent(t, time.Now().Add(48*time.Hour), true)
	standard := fx.seedTier(t, eventID, "40.00", nil, 10)
	vip := fx.seedTier(t, eventID, "20.00", nil, 5)

	order, err := fx.svc.Create(ctx, CreateOrderInput{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
		Lines: []CreateOrderLine{
			{TicketTypeID: standard, Quantity: 2},
			{TicketTypeID: vip, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.True(t, order.TotalPrice.Equal(decimal.RequireFromString("100.00")), "total = %s", order.TotalPrice)
	require.Len(t, order.Lines, 2)

	require.Equal(t, 8, fx.availableQty(t, standard))
	require.Equal(t, 4, fx.availableQty(t, vip))
	require.Equal(t, int64(1), fx.outboxCount(t, enums.EventOrderCreated, order.ID))

	// later price edits must not touch the snapshotted line price
	require.NoError(t, fx.db.Model(&models.TicketType{}).Where("id = ?", standard).
		Update("price", "999.00").Error)
	reloaded, err := fx.svc.Get(ctx, userID, false, order.ID)
	require.NoError(t, err)
	require.True(t, reloaded.TotalPrice.Equal(decimal.RequireFromString("100.00")))
}

func TestCreateTierDiscountFeedsSnapshot(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	userID := fx.seedWallet(t, "0.00")
	eventID := fx.seedEvent(t, time.Now().Add(48*time.Hour), true)
	pct := decimal.RequireFromString("10")
	tier := fx.seedTier(t, eventID, "50.00", &pct, 10)

	order, err := fx.svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
		Lines:  []CreateOrderLine{{TicketTypeID: tier, Quantity: 2}},
	})
	require.NoError(t, err)
	require.True(t, order.Lines[0].UnitPrice.Equal(decimal.RequireFromString("45.00")))
	require.True(t, order.TotalPrice.Equal(decimal.RequireFromString("90.00")))
}

func TestCreateInsufficientInventoryRollsBack(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	userID := fx.seedWallet(t, "100.00")
	eventID := fx.seedEvent(t, time.Now().Add(48*time.Hour), true)
	tier := fx.seedTier(t, eventID, "30.00", nil, 1)

	_, err := fx.svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
		Lines:  []CreateOrderLine{{TicketTypeID: tier, Quantity: 2}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInsufficientInventory, typed.Code())

	require.Equal(t, 1, fx.availableQty(t, tier))
	var count int64
	require.NoError(t, fx.db.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count, "no order row should survive the rollback")
}

func TestCreateRejectsPastAndUnpublishedEvents(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	userID := fx.seedWallet(t, "100.00")

	pastEvent := fx.seedEvent(t, time.Now().Add(-time.Hour), true)
	pastTier := fx.seedTier(t, pastEvent, "10.00", nil, 5)
	_, err := fx.svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
		Lines:  []CreateOrderLine{{TicketTypeID: pastTier, Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	draftEvent := fx.seedEvent(t, time.Now().Add(48*time.Hour), false)
	draftTier := fx.seedTier(t, draftEvent, "10.00", nil, 5)
	_, err = fx.svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
		Lines:  []CreateOrderLine{{TicketTypeID: draftTier, Quantity: 1}},
	})
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestApplyPromoComputesDiscount(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "100.00")
	order := fx.placeOrder(t, userID, "100.00")
	fx.seedPromo(t, "SPRING15", "15", 10)

	updated, err := fx.svc.ApplyPromo(ctx, ApplyPromoInput{
		OrderID: order.ID,
		UserID:  userID,
		Code:    "SPRING15",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.DiscountAmount)
	require.NotNil(t, updated.FinalPrice)
	require.True(t, updated.DiscountAmount.Equal(decimal.RequireFromString("15.00")), "discount = %s", updated.DiscountAmount)
	require.True(t, updated.FinalPrice.Equal(decimal.RequireFromString("85.00")), "final = %s", updated.FinalPrice)
}

func TestApplyPromoSecondCodeRejected(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "100.00")
	order := fx.placeOrder(t, userID, "100.00")
	fx.seedPromo(t, "FIRST", "10", 10)
	fx.seedPromo(t, "SECOND", "20", 10)

	_, err := fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: order.ID, UserID: userID, Code: "FIRST"})
	require.NoError(t, err)

	_, err = fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: order.ID, UserID: userID, Code: "SECOND"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())

	// the failed second application must not burn the code's budget
	var promo models.PromoCode
	require.NoError(t, fx.db.Where("code = ?", "SECOND").First(&promo).Error)
	require.Zero(t, promo.UsedCount)
}

func TestApplyPromoUsageBudgetExhausted(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "200.00")
	first := fx.placeOrder(t, userID, "40.00")
	second := fx.placeOrder(t, userID, "40.00")
	fx.seedPromo(t, "SCARCE", "10", 1)

	_, err := fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: first.ID, UserID: userID, Code: "SCARCE"})
	require.NoError(t, err)

	_, err = fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: second.ID, UserID: userID, Code: "SCARCE"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeUsageLimit, typed.Code())
}

func TestConfirmDebitsWalletExactlyOnce(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "100.00")
	order := fx.placeOrder(t, userID, "100.00")
	fx.seedPromo(t, "QUINCE", "15", 5)

	_, err := fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: order.ID, UserID: userID, Code: "QUINCE"})
	require.NoError(t, err)

	confirmed, err := fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	fx.requireBalance(t, userID, "15.00")
	require.Equal(t, int64(1), fx.outboxCount(t, enums.EventOrderConfirmed, order.ID))

	_, err = fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	fx.requireBalance(t, userID, "15.00")
}

func TestConfirmInsufficientBalanceLeavesPending(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "10.00")
	order := fx.placeOrder(t, userID, "100.00")

	_, err := fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeInsufficientBalance, typed.Code())

	reloaded, err := fx.svc.Get(ctx, userID, false, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, reloaded.Status)
	fx.requireBalance(t, userID, "10.00")
	require.Zero(t, fx.outboxCount(t, enums.EventOrderConfirmed, order.ID))
}

func TestConfirmFreeOrderSkipsWallet(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "0.00")
	order := fx.placeOrder(t, userID, "100.00")
	fx.seedPromo(t, "COMPED", "100", 5)

	_, err := fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: order.ID, UserID: userID, Code: "COMPED"})
	require.NoError(t, err)

	confirmed, err := fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusConfirmed, confirmed.Status)
	fx.requireBalance(t, userID, "0.00")
}

func TestCancelRefundsChargeAndKeepsInventoryHeld(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "0.00")
	eventID := fx.seedEvent(t, time.Now().Add(48*time.Hour), true)
	tier := fx.seedTier(t, eventID, "50.00", nil, 10)

	order, err := fx.svc.Create(ctx, CreateOrderInput{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
		Lines:  []CreateOrderLine{{TicketTypeID: tier, Quantity: 2}},
	})
	require.NoError(t, err)
	fx.seedPromo(t, "EXIT15", "15", 5)
	_, err = fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: order.ID, UserID: userID, Code: "EXIT15"})
	require.NoError(t, err)

	cancelled, err := fx.svc.Cancel(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	fx.requireBalance(t, userID, "85.00")
	require.Equal(t, 8, fx.availableQty(t, tier), "cancellation must not restock the tier")
	require.Equal(t, int64(1), fx.outboxCount(t, enums.EventOrderCancelled, order.ID))
}

func TestCancelConfirmedRejected(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "100.00")
	order := fx.placeOrder(t, userID, "40.00")

	_, err := fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	require.NoError(t, err)

	_, err = fx.svc.Cancel(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	fx.requireBalance(t, userID, "60.00")
}

func TestApplyPromoOnSettledOrderRejected(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "100.00")
	order := fx.placeOrder(t, userID, "40.00")
	fx.seedPromo(t, "LATE", "10", 5)

	_, err := fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	require.NoError(t, err)

	_, err = fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: order.ID, UserID: userID, Code: "LATE"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestApplyPromoOnReturnedOrderRejected(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "100.00")
	order := fx.placeOrder(t, userID, "40.00")
	fx.seedPromo(t, "TOOLATE", "10", 5)

	_, err := fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	require.NoError(t, err)
	_, err = fx.svc.MarkReturned(ctx, order.ID)
	require.NoError(t, err)

	_, err = fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: order.ID, UserID: userID, Code: "TOOLATE"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestConfirmPayloadCarriesFulfillmentSnapshot(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "100.00")
	order := fx.placeOrder(t, userID, "100.00")
	fx.seedPromo(t, "SAVE15", "15", 5)

	_, err := fx.svc.ApplyPromo(ctx, ApplyPromoInput{OrderID: order.ID, UserID: userID, Code: "SAVE15"})
	require.NoError(t, err)
	_, err = fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, fx.db.
		Where("event_type = ? AND aggregate_id = ?", enums.EventOrderConfirmed, order.ID).
		First(&row).Error)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	var payload OrderEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))

	require.Equal(t, order.ID, payload.OrderID)
	require.Equal(t, "100.00", payload.TotalPrice)
	require.Equal(t, "85.00", payload.FinalPrice)
	require.Equal(t, "15.00", payload.DiscountAmount)
	require.Equal(t, "SAVE15", payload.PromoCode)

	require.NotNil(t, payload.Customer)
	require.Equal(t, userID, payload.Customer.UserID)
	require.Contains(t, payload.Customer.Email, "@example.com")
	require.Equal(t, "Leyla", payload.Customer.FirstName)

	require.Len(t, payload.Lines, 1)
	line := payload.Lines[0]
	require.Equal(t, order.Lines[0].ID, line.LineID)
	require.Equal(t, "standard", line.TicketName)
	require.Equal(t, "test event", line.EventTitle)
	require.Equal(t, "test hall", line.EventVenue)
	require.Equal(t, 1, line.Quantity)
	require.Equal(t, "100.00", line.UnitPrice)
}

func TestMarkReturnedRequiresConfirmed(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "100.00")
	order := fx.placeOrder(t, userID, "40.00")

	_, err := fx.svc.MarkReturned(ctx, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	_, err = fx.svc.Confirm(ctx, TransitionInput{OrderID: order.ID, UserID: userID})
	require.NoError(t, err)

	returned, err := fx.svc.MarkReturned(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusReturned, returned.Status)
}

func TestGetEnforcesOwnership(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	owner := fx.seedWallet(t, "100.00")
	stranger := uuid.New()
	order := fx.placeOrder(t, owner, "40.00")

	_, err := fx.svc.Get(ctx, stranger, false, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeForbidden, typed.Code())

	got, err := fx.svc.Get(ctx, stranger, true, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, got.ID)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	userID := fx.seedWallet(t, "500.00")
	for i := 0; i < 3; i++ {
		fx.placeOrder(t, userID, "10.00")
	}

	page, next, err := fx.svc.List(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)

	rest, _, err := fx.svc.List(ctx, userID, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.NotEqual(t, page[0].ID, rest[0].ID)
	require.NotEqual(t, page[1].ID, rest[0].ID)
}

type fixture struct {
	db     *gorm.DB
	svc    Service
	wallet wallet.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range testSchema {
		require.NoError(t, db.Exec(ddl).Error)
	}

	walletSvc, err := wallet.NewService(wallet.NewRepository(db))
	require.NoError(t, err)
	promoSvc, err := promos.NewService(promos.NewRepository(db))
	require.NoError(t, err)
	outboxSvc := outbox.NewService(outbox.NewRepository(db), nil)

	svc, err := NewService(NewRepository(db), testTicketLoader{}, walletSvc, promoSvc, gormTxRunner{db: db}, outboxSvc)
	require.NoError(t, err)
	return &fixture{db: db, svc: svc, wallet: walletSvc}
}

var testSchema = []string{
	`CREATE TABLE events (
		id TEXT PRIMARY KEY,
		organizer_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		venue TEXT NOT NULL,
		city TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT 'EN',
		starts_at DATETIME NOT NULL,
		ends_at DATETIME,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE ticket_types (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price NUMERIC NOT NULL,
		discount_percent NUMERIC,
		quantity_total INTEGER NOT NULL,
		quantity_available INTEGER NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_price NUMERIC NOT NULL,
		discount_amount NUMERIC,
		final_price NUMERIC,
		promo_code_id TEXT,
		confirmed_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_lines (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		ticket_type_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		phone TEXT,
		role TEXT NOT NULL DEFAULT 'customer',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE wallets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		balance NUMERIC NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE promo_codes (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		discount_percent NUMERIC NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		valid_from DATETIME NOT NULL,
		valid_until DATETIME NOT NULL,
		usage_limit INTEGER NOT NULL,
		used_count INTEGER NOT NULL DEFAULT 0,
		created_by TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type testTicketLoader struct{}

func (testTicketLoader) FindForPurchase(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.TicketType, map[uuid.UUID]models.Event, error) {
	var tiers []models.TicketType
	if err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&tiers).Error; err != nil {
		return nil, nil, err
	}
	tierMap := make(map[uuid.UUID]models.TicketType, len(tiers))
	eventIDs := make([]uuid.UUID, 0, len(tiers))
	for _, tier := range tiers {
		tierMap[tier.ID] = tier
		eventIDs = append(eventIDs, tier.EventID)
	}
	var events []models.Event
	if err := tx.WithContext(ctx).Where("id IN ?", eventIDs).Find(&events).Error; err != nil {
		return nil, nil, err
	}
	eventMap := make(map[uuid.UUID]models.Event, len(events))
	for _, event := range events {
		eventMap[event.ID] = event
	}
	return tierMap, eventMap, nil
}

func (f *fixture) seedEvent(t *testing.T, startsAt time.Time, published bool) uuid.UUID {
	t.Helper()
	event := models.Event{
		ID:          uuid.New(),
		OrganizerID: uuid.New(),
		Title:       "test event",
		Venue:       "test hall",
		Language:    enums.EventLanguageEN,
		StartsAt:    startsAt,
		IsPublished: published,
	}
	require.NoError(t, f.db.Create(&event).Error)
	return event.ID
}

func (f *fixture) seedTier(t *testing.T, eventID uuid.UUID, price string, discountPct *decimal.Decimal, qty int) uuid.UUID {
	t.Helper()
	tier := models.TicketType{
		ID:                uuid.New(),
		EventID:           eventID,
		Name:              "standard",
		Price:             decimal.RequireFromString(price),
		DiscountPercent:   discountPct,
		QuantityTotal:     qty,
		QuantityAvailable: qty,
	}
	require.NoError(t, f.db.Create(&tier).Error)
	return tier.ID
}

func (f *fixture) seedWallet(t *testing.T, balance string) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	user := models.User{
		ID:        userID,
		Email:     "buyer+" + userID.String()[:8] + "@example.com",
		FirstName: "Leyla",
		LastName:  "Aliyeva",
		Role:      enums.UserRoleCustomer,
		IsActive:  true,
	}
	require.NoError(t, f.db.Create(&user).Error)
	w := models.Wallet{
		ID:      uuid.New(),
		UserID:  userID,
		Balance: decimal.RequireFromString(balance),
	}
	require.NoError(t, f.db.Create(&w).Error)
	return userID
}

func (f *fixture) seedPromo(t *testing.T, code, pct string, limit int) uuid.UUID {
	t.Helper()
	now := time.Now()
	promo := models.PromoCode{
		ID:              uuid.New(),
		Code:            code,
		DiscountPercent: decimal.RequireFromString(pct),
		IsActive:        true,
		ValidFrom:       now.Add(-time.Hour),
		ValidUntil:      now.Add(24 * time.Hour),
		UsageLimit:      limit,
	}
	require.NoError(t, f.db.Create(&promo).Error)
	return promo.ID
}

// placeOrder creates a one-line pending order whose total equals price.
func (f *fixture) placeOrder(t *testing.T, userID uuid.UUID, price string) *models.Order {
	t.Helper()
	eventID := f.seedEvent(t, time.Now().Add(48*time.Hour), true)
	tier := f.seedTier(t, eventID, price, nil, 100)
	order, err := f.svc.Create(context.Background(), CreateOrderInput{
		UserID: userID,
		Role:   enums.UserRoleCustomer,
		Lines:  []CreateOrderLine{{TicketTypeID: tier, Quantity: 1}},
	})
	require.NoError(t, err)
	return order
}

func (f *fixture) availableQty(t *testing.T, tierID uuid.UUID) int {
	t.Helper()
	var tier models.TicketType
	require.NoError(t, f.db.Where("id = ?", tierID).First(&tier).Error)
	return tier.QuantityAvailable
}

func (f *fixture) requireBalance(t *testing.T, userID uuid.UUID, want string) {
	t.Helper()
	w, err := f.wallet.Balance(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, w.Balance.Equal(decimal.RequireFromString(want)), "balance = %s, want %s", w.Balance, want)
}

func (f *fixture) outboxCount(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", eventType, aggregateID).
		Count(&count).Error)
	return count
}
