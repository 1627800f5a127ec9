package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dalgayunus/iTicket/api/responses"
	"github.com/dalgayunus/iTicket/api/validators"
	"github.com/dalgayunus/iTicket/internal/promos"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/logger"
)

type promoCreateRequest struct {
	Code            string          `json:"code" validate:"required,min=3"`
	DiscountPercent decimal.Decimal `json:"discount_percent" validate:"required"`
	ValidFrom       time.Time       `json:"valid_from" validate:"required"`
	ValidUntil      time.Time       `json:"valid_until" validate:"required"`
	UsageLimit      int             `json:"usage_limit" validate:"required,gt=0"`
}

type promoUpdateRequest struct {
	IsActive   *bool      `json:"is_active,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
	UsageLimit *int       `json:"usage_limit,omitempty"`
}

// PromoCreate mints a promo code.
func PromoCreate(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		userID, _, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body promoCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Create(r.Context(), promos.CreatePromoInput{
			Code:            body.Code,
			DiscountPercent: body.DiscountPercent,
			ValidFrom:       body.ValidFrom,
			ValidUntil:      body.ValidUntil,
			UsageLimit:      body.UsageLimit,
			CreatedBy:       userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, promo)
	}
}

// PromoUpdate adjusts activation, window, or usage budget.
func PromoUpdate(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		promoID, err := parseURLID(r, "promoId", "promo id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body promoUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Update(r.Context(), promoID, promos.UpdatePromoInput{
			IsActive:   body.IsActive,
			ValidUntil: body.ValidUntil,
			UsageLimit: body.UsageLimit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promo)
	}
}

// PromoGet returns a promo code with its usage counters.
func PromoGet(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		promoID, err := parseURLID(r, "promoId", "promo id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		promo, err := svc.Get(r.Context(), promoID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promo)
	}
}

// PromoList returns all promo codes for the management surface.
func PromoList(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// PromoCheck reports whether a code is currently redeemable, without
// consuming usage budget.
func PromoCheck(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "promo service unavailable"))
			return
		}

		code := strings.TrimSpace(r.URL.Query().Get("code"))
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "code is required"))
			return
		}

		promo, err := svc.Check(r.Context(), code, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promo)
	}
}
