package fulfillment

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/config"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/outbox"
)

func TestFulfillOrderProducesTicketsAndDocument(t *testing.T) {
	t.Parallel()

	db := newFulfillmentTestDB(t)
	dir := t.TempDir()
	mailer := &captureMailer{}
	svc := newFulfillmentService(t, db, mailer, dir)

	orderID := seedOrderRow(t, db, "confirmed")
	payload := confirmedPayload(t, orderID, 2)

	result, err := svc.FulfillOrder(context.Background(), orderID, payload)
	require.NoError(t, err)
	require.Len(t, result.Tickets, 2)
	require.True(t, result.Notified)

	for _, ticket := range result.Tickets {
		info, err := os.Stat(ticket.QRPath)
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
		require.Equal(t, "Rock Gala", ticket.EventTitle)
		require.Equal(t, "standard", ticket.TierName)
		require.Equal(t, "50.00", ticket.UnitPrice)
	}

	doc, err := os.ReadFile(result.DocumentPath)
	require.NoError(t, err)
	require.Contains(t, string(doc), orderID.String())
	require.Contains(t, string(doc), "Rock Gala")
	require.Contains(t, string(doc), "buyer@example.com")

	require.Equal(t, "buyer@example.com", mailer.to)
	require.Len(t, mailer.attachments, 2)
}

func TestFulfillOrderRendersPromoPricingFromPayload(t *testing.T) {
	t.Parallel()

	db := newFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db, &captureMailer{}, t.TempDir())
	orderID := seedOrderRow(t, db, "confirmed")
	payload := confirmedPayload(t, orderID, 1)

	result, err := svc.FulfillOrder(context.Background(), orderID, payload)
	require.NoError(t, err)

	doc, err := os.ReadFile(result.DocumentPath)
	require.NoError(t, err)
	body := string(doc)
	require.Contains(t, body, "SAVE15")
	require.Contains(t, body, "15.00")
	require.Contains(t, body, "85.00")
	require.Contains(t, body, "100.00")
}

func TestFulfillOrderIsDeterministicAcrossRetries(t *testing.T) {
	t.Parallel()

	db := newFulfillmentTestDB(t)
	dir := t.TempDir()
	svc := newFulfillmentService(t, db, &captureMailer{}, dir)
	orderID := seedOrderRow(t, db, "confirmed")
	payload := confirmedPayload(t, orderID, 3)
	ctx := context.Background()

	first, err := svc.FulfillOrder(ctx, orderID, payload)
	require.NoError(t, err)
	second, err := svc.FulfillOrder(ctx, orderID, payload)
	require.NoError(t, err)

	require.Equal(t, len(first.Tickets), len(second.Tickets))
	for i := range first.Tickets {
		require.Equal(t, first.Tickets[i].Code, second.Tickets[i].Code)
	}

	entries, err := os.ReadDir(filepath.Join(dir, orderID.String()))
	require.NoError(t, err)
	// 3 QR files plus the document, no duplicates from the retry
	require.Len(t, entries, 4)
}

func TestFulfillOrderRejectsPending(t *testing.T) {
	t.Parallel()

	db := newFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db, &captureMailer{}, t.TempDir())
	orderID := seedOrderRow(t, db, "pending")

	_, err := svc.FulfillOrder(context.Background(), orderID, confirmedPayload(t, orderID, 1))
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestFulfillOrderRejectsIncompletePayload(t *testing.T) {
	t.Parallel()

	db := newFulfillmentTestDB(t)
	svc := newFulfillmentService(t, db, &captureMailer{}, t.TempDir())
	orderID := seedOrderRow(t, db, "confirmed")

	for _, payload := range [][]byte{
		[]byte(`not json`),
		[]byte(`{"version":1,"data":{}}`),
	} {
		_, err := svc.FulfillOrder(context.Background(), orderID, payload)
		typed := pkgerrors.As(err)
		require.NotNil(t, typed)
		require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	}
}

func TestFulfillOrderSurvivesMailFailure(t *testing.T) {
	t.Parallel()

	db := newFulfillmentTestDB(t)
	mailer := &captureMailer{fail: true}
	svc := newFulfillmentService(t, db, mailer, t.TempDir())
	orderID := seedOrderRow(t, db, "confirmed")

	result, err := svc.FulfillOrder(context.Background(), orderID, confirmedPayload(t, orderID, 1))
	require.NoError(t, err)
	require.False(t, result.Notified)
	require.Len(t, result.Tickets, 1)
}

type captureMailer struct {
	fail        bool
	to          string
	subject     string
	attachments []string
}

func (m *captureMailer) Send(ctx context.Context, to, subject, htmlBody string, attachments []string) error {
	if m.fail {
		return context.DeadlineExceeded
	}
	m.to = to
	m.subject = subject
	m.attachments = attachments
	return nil
}

func newFulfillmentService(t *testing.T, db *gorm.DB, mailer Mailer, dir string) Service {
	t.Helper()
	svc, err := NewService(db, mailer, config.FulfillmentConfig{DocumentsDir: dir}, nil)
	require.NoError(t, err)
	return svc
}

func newFulfillmentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:fulfillment_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		total_price NUMERIC NOT NULL DEFAULT 0,
		discount_amount NUMERIC,
		final_price NUMERIC,
		promo_code_id TEXT,
		confirmed_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error)
	return db
}

func seedOrderRow(t *testing.T, db *gorm.DB, status string) uuid.UUID {
	t.Helper()
	orderID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO orders (id, user_id, status, total_price) VALUES (?, ?, ?, 100)`,
		orderID, uuid.New(), status,
	).Error)
	return orderID
}

// confirmedPayload builds the envelope a confirmed order writes to the
// outbox: one discounted line for Rock Gala with the buyer attached.
func confirmedPayload(t *testing.T, orderID uuid.UUID, qty int) []byte {
	t.Helper()
	data, err := json.Marshal(confirmedOrder{
		OrderID:        orderID,
		TotalPrice:     "100.00",
		FinalPrice:     "85.00",
		PromoCode:      "SAVE15",
		DiscountAmount: "15.00",
		Customer: &confirmedBuyer{
			UserID:    uuid.New(),
			Email:     "buyer@example.com",
			FirstName: "Leyla",
			LastName:  "Aliyeva",
		},
		Lines: []confirmedLine{{
			LineID:        uuid.NewSHA1(orderID, []byte("line-0")),
			TicketTypeID:  uuid.New(),
			TicketName:    "standard",
			EventID:       uuid.New(),
			EventTitle:    "Rock Gala",
			EventVenue:    "Arena",
			EventStartsAt: time.Date(2030, time.January, 1, 20, 0, 0, 0, time.UTC),
			Quantity:      qty,
			UnitPrice:     "50.00",
		}},
	})
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return envelope
}
