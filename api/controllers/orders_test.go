package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dalgayunus/iTicket/api/middleware"
	"github.com/dalgayunus/iTicket/internal/orders"
	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

type stubOrderService struct {
	created  *orders.CreateOrderInput
	order    *models.Order
	err      error
	lastGet  uuid.UUID
	getAdmin bool
}

func (s *stubOrderService) Create(ctx context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	s.created = &input
	return s.order, s.err
}

func (s *stubOrderService) Get(ctx context.Context, userID uuid.UUID, isAdmin bool, orderID uuid.UUID) (*models.Order, error) {
	s.lastGet = orderID
	s.getAdmin = isAdmin
	return s.order, s.err
}

func (s *stubOrderService) List(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", s.err
}

func (s *stubOrderService) ApplyPromo(ctx context.Context, input orders.ApplyPromoInput) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) Confirm(ctx context.Context, input orders.TransitionInput) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) Cancel(ctx context.Context, input orders.TransitionInput) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) MarkReturned(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func authedRequest(req *http.Request, userID uuid.UUID, role string) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, role)
	return req.WithContext(ctx)
}

func TestOrderCreateReturnsCreated(t *testing.T) {
	userID := uuid.New()
	tierID := uuid.New()
	svc := &stubOrderService{order: &models.Order{ID: uuid.New(), UserID: userID}}
	handler := OrderCreate(svc, nil)

	body, _ := json.Marshal(map[string]any{
		"lines": []map[string]any{{"ticket_type_id": tierID, "quantity": 2}},
	})
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = authedRequest(req, userID, "customer")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.created)
	require.Equal(t, userID, svc.created.UserID)
	require.Len(t, svc.created.Lines, 1)
	require.Equal(t, tierID, svc.created.Lines[0].TicketTypeID)
	require.Equal(t, 2, svc.created.Lines[0].Quantity)
}

func TestOrderCreateRequiresUserContext(t *testing.T) {
	handler := OrderCreate(&stubOrderService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrderGetParsesIDAndAdminFlag(t *testing.T) {
	orderID := uuid.New()
	svc := &stubOrderService{order: &models.Order{ID: orderID}}
	handler := OrderGet(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID.String(), nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = authedRequest(req, uuid.New(), "admin")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, orderID, svc.lastGet)
	require.True(t, svc.getAdmin)
}

func TestOrderGetRejectsMalformedID(t *testing.T) {
	handler := OrderGet(&stubOrderService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", "not-a-uuid")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = authedRequest(req, uuid.New(), "customer")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
