package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/config"
	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/logger"
	"github.com/dalgayunus/iTicket/pkg/outbox"
)

const qrSize = 256

// Ticket is one issued admission unit with its scannable code.
type Ticket struct {
	Code          string
	EventTitle    string
	EventVenue    string
	EventStartsAt string
	TierName      string
	UnitPrice     string
	QRPath        string
}

// Result describes what fulfillment produced for an order.
type Result struct {
	OrderID      uuid.UUID
	Tickets      []Ticket
	DocumentPath string
	Notified     bool
}

// Service issues tickets for confirmed orders: a QR code per admission,
// a summary document on disk, and an email to the buyer. Everything is
// rendered from the confirm-time payload snapshot; the database is only
// consulted to verify the order is still confirmed.
type Service interface {
	FulfillOrder(ctx context.Context, orderID uuid.UUID, payload []byte) (*Result, error)
}

type service struct {
	db     *gorm.DB
	mailer Mailer
	cfg    config.FulfillmentConfig
	logg   *logger.Logger
}

// NewService constructs the fulfillment service.
func NewService(db *gorm.DB, mailer Mailer, cfg config.FulfillmentConfig, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if strings.TrimSpace(cfg.DocumentsDir) == "" {
		return nil, fmt.Errorf("documents directory required")
	}
	return &service{db: db, mailer: mailer, cfg: cfg, logg: logg}, nil
}

// confirmedOrder mirrors the order.confirmed payload body.
type confirmedOrder struct {
	OrderID        uuid.UUID       `json:"order_id"`
	TotalPrice     string          `json:"total_price"`
	FinalPrice     string          `json:"final_price"`
	PromoCode      string          `json:"promo_code"`
	DiscountAmount string          `json:"discount_amount"`
	Customer       *confirmedBuyer `json:"customer"`
	Lines          []confirmedLine `json:"lines"`
}

type confirmedBuyer struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
}

type confirmedLine struct {
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

func (c confirmedOrder) chargedAmount() string {
	if c.FinalPrice != "" {
		return c.FinalPrice
	}
	return c.TotalPrice
}

var ticketDocument = template.Must(template.New("ticket").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Your tickets</title></head>
<body>
<h1>Order {{.OrderID}}</h1>
<p>{{.CustomerName}} ({{.CustomerEmail}})</p>
{{range .Tickets}}
<div class="ticket">
  <h2>{{.EventTitle}} &mdash; {{.TierName}}</h2>
  <p>{{.EventVenue}}, {{.EventStartsAt}}</p>
  <p>Price: {{.UnitPrice}}</p>
  <p>Admission code: <strong>{{.Code}}</strong></p>
</div>
{{end}}
<p>Total: {{.TotalPrice}}</p>
{{if .PromoCode}}<p>Promo {{.PromoCode}}: -{{.DiscountAmount}}</p>{{end}}
<p>Charged: {{.ChargedAmount}}</p>
</body>
</html>
`))

// FulfillOrder issues the order's tickets from the confirmed payload.
// Admission codes are derived from the line ID and seat index, so a
// retried fulfillment overwrites the same files instead of minting a
// second set.
func (s *service) FulfillOrder(ctx context.Context, orderID uuid.UUID, payload []byte) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	snapshot, err := decodeConfirmedOrder(payload)
	if err != nil {
		return nil, err
	}

	var order models.Order
	err = s.db.WithContext(ctx).Select("id", "status").First(&order, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only confirmed orders are fulfilled")
	}

	dir := filepath.Join(s.cfg.DocumentsDir, orderID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create documents directory")
	}

	var tickets []Ticket
	for _, line := range snapshot.Lines {
		for seat := 0; seat < line.Quantity; seat++ {
			code := admissionCode(line.LineID, seat)
			qrPath := filepath.Join(dir, code+".png")
			if err := qrcode.WriteFile(code, qrcode.Medium, qrSize, qrPath); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render qr code")
			}
			tickets = append(tickets, Ticket{
				Code:          code,
				EventTitle:    line.EventTitle,
				EventVenue:    line.EventVenue,
				EventStartsAt: line.EventStartsAt.Format("2 Jan 2006 15:04"),
				TierName:      line.TicketName,
				UnitPrice:     line.UnitPrice,
				QRPath:        qrPath,
			})
		}
	}

	docPath := filepath.Join(dir, "tickets.html")
	doc, err := os.Create(docPath)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create ticket document")
	}
	renderErr := ticketDocument.Execute(doc, map[string]any{
		"OrderID":        orderID,
		"CustomerName":   snapshot.Customer.FirstName + " " + snapshot.Customer.LastName,
		"CustomerEmail":  snapshot.Customer.Email,
		"Tickets":        tickets,
		"TotalPrice":     snapshot.TotalPrice,
		"PromoCode":      snapshot.PromoCode,
		"DiscountAmount": snapshot.DiscountAmount,
		"ChargedAmount":  snapshot.chargedAmount(),
	})
	if closeErr := doc.Close(); renderErr == nil {
		renderErr = closeErr
	}
	if renderErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, renderErr, "render ticket document")
	}

	result := &Result{OrderID: orderID, Tickets: tickets, DocumentPath: docPath}

	attachments := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		attachments = append(attachments, ticket.QRPath)
	}
	body := renderBody(tickets, snapshot.chargedAmount())
	if err := s.mailer.Send(ctx, snapshot.Customer.Email, "Your iTicket admission codes", body, attachments); err != nil {
		// delivery failure must not fail fulfillment, documents are on disk
		if s.logg != nil {
			s.logg.Warn(ctx, "ticket notification failed: "+err.Error())
		}
	} else {
		result.Notified = true
	}

	return result, nil
}

func decodeConfirmedOrder(payload []byte) (*confirmedOrder, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode order payload")
	}
	var snapshot confirmedOrder
	if err := json.Unmarshal(envelope.Data, &snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode order payload")
	}
	if snapshot.Customer == nil || len(snapshot.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order payload missing fulfillment data")
	}
	return &snapshot, nil
}

// admissionCode is deterministic for a line and seat index so retried
// fulfillment reissues identical codes.
func admissionCode(lineID uuid.UUID, seat int) string {
	return uuid.NewSHA1(lineID, []byte(fmt.Sprintf("seat-%d", seat))).String()
}

func renderBody(tickets []Ticket, charged string) string {
	var b strings.Builder
	b.WriteString("<p>Your tickets are attached.</p><ul>")
	for _, ticket := range tickets {
		b.WriteString("<li>")
		b.WriteString(template.HTMLEscapeString(ticket.EventTitle))
		b.WriteString(" (")
		b.WriteString(template.HTMLEscapeString(ticket.TierName))
		b.WriteString(")</li>")
	}
	b.WriteString("</ul><p>Charged: ")
	b.WriteString(template.HTMLEscapeString(charged))
	b.WriteString("</p>")
	return b.String()
}
