package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dalgayunus/iTicket/api/responses"
	"github.com/dalgayunus/iTicket/api/validators"
	"github.com/dalgayunus/iTicket/internal/tickets"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/logger"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

type tierCreateRequest struct {
	Name            string           `json:"name" validate:"required"`
	Price           decimal.Decimal  `json:"price" validate:"required"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	Quantity        int              `json:"quantity" validate:"required,gt=0"`
}

type tierUpdateRequest struct {
	Name            *string          `json:"name,omitempty" validate:"omitempty,min=1"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	ClearDiscount   bool             `json:"clear_discount,omitempty"`
	AddCapacity     *int             `json:"add_capacity,omitempty"`
}

// TierCreate adds a ticket tier to an owned event.
func TierCreate(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ticket service unavailable"))
			return
		}

		userID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eventID, err := parseURLID(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body tierCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier, err := svc.Create(r.Context(), tickets.Actor{UserID: userID, Role: role}, tickets.CreateTierInput{
			EventID:         eventID,
			Name:            body.Name,
			Price:           body.Price,
			DiscountPercent: body.DiscountPercent,
			Quantity:        body.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, tier)
	}
}

// TierUpdate edits tier fields. Price changes never touch sold lines.
func TierUpdate(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ticket service unavailable"))
			return
		}

		userID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tierID, err := parseURLID(r, "tierId", "ticket type id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body tierUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier, err := svc.Update(r.Context(), tickets.Actor{UserID: userID, Role: role}, tierID, tickets.UpdateTierInput{
			Name:            body.Name,
			Price:           body.Price,
			DiscountPercent: body.DiscountPercent,
			ClearDiscount:   body.ClearDiscount,
			AddCapacity:     body.AddCapacity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, tier)
	}
}

// TierDelete removes an unsold tier from an owned event.
func TierDelete(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ticket service unavailable"))
			return
		}

		userID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tierID, err := parseURLID(r, "tierId", "ticket type id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), tickets.Actor{UserID: userID, Role: role}, tierID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

// TierList returns the tiers for an event ordered by price.
func TierList(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ticket service unavailable"))
			return
		}

		eventID, err := parseURLID(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter, err := parseTierFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListByEvent(r.Context(), eventID, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func parseTierFilter(r *http.Request) (tickets.ListFilter, error) {
	var filter tickets.ListFilter

	if raw := r.URL.Query().Get("min_price"); raw != "" {
		min, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid min_price")
		}
		filter.MinPrice = &min
	}
	if raw := r.URL.Query().Get("max_price"); raw != "" {
		max, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid max_price")
		}
		filter.MaxPrice = &max
	}
	filter.AvailableOnly = r.URL.Query().Get("available") == "true"
	return filter, nil
}

// TierListDiscounted returns the published tiers with the steepest discounts.
func TierListDiscounted(svc tickets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ticket service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListDiscounted(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
