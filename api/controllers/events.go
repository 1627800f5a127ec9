package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dalgayunus/iTicket/api/responses"
	"github.com/dalgayunus/iTicket/api/validators"
	"github.com/dalgayunus/iTicket/internal/events"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/logger"
	"github.com/dalgayunus/iTicket/pkg/pagination"
	"github.com/dalgayunus/iTicket/pkg/types"
)

type eventCreateRequest struct {
	CategoryIDs []uuid.UUID `json:"category_ids" validate:"required,min=1"`
	Title       string      `json:"title" validate:"required,min=3"`
	Description string      `json:"description,omitempty"`
	Venue       string      `json:"venue" validate:"required"`
	City        string      `json:"city" validate:"required"`
	Language    string      `json:"language,omitempty"`
	StartsAt    time.Time   `json:"starts_at" validate:"required"`
	EndsAt      *time.Time  `json:"ends_at,omitempty"`
}

func (b eventCreateRequest) toInput() events.CreateEventInput {
	return events.CreateEventInput{
		CategoryIDs: b.CategoryIDs,
		Title:       b.Title,
		Description: b.Description,
		Venue:       b.Venue,
		City:        b.City,
		Language:    enums.EventLanguage(strings.ToUpper(strings.TrimSpace(b.Language))),
		StartsAt:    b.StartsAt,
		EndsAt:      b.EndsAt,
	}
}

type eventUpdateRequest struct {
	CategoryIDs []uuid.UUID `json:"category_ids,omitempty" validate:"omitempty,min=1"`
	Title       *string     `json:"title,omitempty" validate:"omitempty,min=3"`
	Description *string     `json:"description,omitempty"`
	Venue       *string     `json:"venue,omitempty"`
	City        *string     `json:"city,omitempty"`
	Language    *string     `json:"language,omitempty"`
	StartsAt    *time.Time  `json:"starts_at,omitempty"`
	EndsAt      *time.Time  `json:"ends_at,omitempty"`
}

func (b eventUpdateRequest) toInput() events.UpdateEventInput {
	input := events.UpdateEventInput{
		CategoryIDs: b.CategoryIDs,
		Title:       b.Title,
		Description: b.Description,
		Venue:       b.Venue,
		City:        b.City,
		StartsAt:    b.StartsAt,
		EndsAt:      b.EndsAt,
	}
	if b.Language != nil {
		lang := enums.EventLanguage(strings.ToUpper(strings.TrimSpace(*b.Language)))
		input.Language = &lang
	}
	return input
}

// EventCreate registers a draft event owned by the calling organizer.
func EventCreate(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		userID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body eventCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.Create(r.Context(), events.Actor{UserID: userID, Role: role}, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, event)
	}
}

// EventUpdate mutates the allowed fields on an owned event.
func EventUpdate(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
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

		var body eventUpdateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.Update(r.Context(), events.Actor{UserID: userID, Role: role}, eventID, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

func eventTransition(svc events.Service, logg *logger.Logger, fn func(*http.Request, events.Actor, uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
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

		result, err := fn(r, events.Actor{UserID: userID, Role: role}, eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// EventPublish opens an event for sale.
func EventPublish(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return eventTransition(svc, logg, func(r *http.Request, actor events.Actor, eventID uuid.UUID) (any, error) {
		return svc.Publish(r.Context(), actor, eventID)
	})
}

// EventUnpublish pulls an event back into draft.
func EventUnpublish(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return eventTransition(svc, logg, func(r *http.Request, actor events.Actor, eventID uuid.UUID) (any, error) {
		return svc.Unpublish(r.Context(), actor, eventID)
	})
}

// EventDelete removes an event that has no sold tickets.
func EventDelete(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return eventTransition(svc, logg, func(r *http.Request, actor events.Actor, eventID uuid.UUID) (any, error) {
		if err := svc.Delete(r.Context(), actor, eventID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "deleted"}, nil
	})
}

// EventGet returns a single event with its ticket tiers.
func EventGet(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		eventID, err := parseURLID(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		event, err := svc.Get(r.Context(), eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

func parseEventFilter(r *http.Request) (events.ListFilter, error) {
	var filter events.ListFilter

	filter.Query = strings.TrimSpace(r.URL.Query().Get("q"))
	if raw := strings.TrimSpace(r.URL.Query().Get("category_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category id")
		}
		filter.CategoryID = &id
	}
	filter.City = strings.TrimSpace(r.URL.Query().Get("city"))
	if raw := strings.TrimSpace(r.URL.Query().Get("language")); raw != "" {
		lang := enums.EventLanguage(strings.ToUpper(raw))
		if !lang.IsValid() {
			return filter, pkgerrors.New(pkgerrors.CodeValidation, "invalid language")
		}
		filter.Language = &lang
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from timestamp")
		}
		filter.From = &at
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to timestamp")
		}
		filter.To = &at
	}
	return filter, nil
}

// EventList returns the published catalog with optional filters.
func EventList(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		filter, err := parseEventFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, next, err := svc.ListPublished(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.Page{Items: list, NextCursor: next})
	}
}

// EventListMine returns the calling organizer's events, drafts included.
func EventListMine(svc events.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event service unavailable"))
			return
		}

		userID, role, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		list, next, err := svc.ListMine(r.Context(), events.Actor{UserID: userID, Role: role}, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, types.Page{Items: list, NextCursor: next})
	}
}
