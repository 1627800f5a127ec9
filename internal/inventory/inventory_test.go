package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/db/models"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
)

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tierA := seedTier(t, db, 5)
	tierB := seedTier(t, db, 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []ReservationRequest{
			{TicketTypeID: tierA, Qty: 3},
			{TicketTypeID: tierB, Qty: 1},
		})
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if got := availableQty(t, db, tierA); got != 2 {
		t.Fatalf("tier a availability = %d, want 2", got)
	}
	if got := availableQty(t, db, tierB); got != 0 {
		t.Fatalf("tier b availability = %d, want 0", got)
	}
}

func TestReserveInsufficient(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tier := seedTier(t, db, 2)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []ReservationRequest{{TicketTypeID: tier, Qty: 3}})
	})
	if err == nil {
		t.Fatal("expected insufficient inventory error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientInventory {
		t.Fatalf("unexpected error: %v", err)
	}

	// the failed transaction must not leak a partial decrement
	if got := availableQty(t, db, tier); got != 2 {
		t.Fatalf("tier availability = %d, want 2", got)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	tier := seedTier(t, db, 5)

	err := Reserve(context.Background(), db, []ReservationRequest{{TicketTypeID: tier, Qty: 0}})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	ddl := `CREATE TABLE ticket_types (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price NUMERIC NOT NULL,
		discount_percent NUMERIC,
		quantity_total INTEGER NOT NULL,
		quantity_available INTEGER NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`
	if err := db.Exec(ddl).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return db
}

func seedTier(t *testing.T, db *gorm.DB, available int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	tier := models.TicketType{
		ID:                id,
		EventID:           uuid.New(),
		Name:              "standard",
		QuantityTotal:     available,
		QuantityAvailable: available,
	}
	if err := db.Create(&tier).Error; err != nil {
		t.Fatalf("seed tier: %v", err)
	}
	return id
}

func availableQty(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var tier models.TicketType
	if err := db.First(&tier, "id = ?", id).Error; err != nil {
		t.Fatalf("load tier: %v", err)
	}
	return tier.QuantityAvailable
}
