package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/db"
	"github.com/dalgayunus/iTicket/pkg/db/models"
	"github.com/dalgayunus/iTicket/pkg/enums"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
	"github.com/dalgayunus/iTicket/pkg/pagination"
)

// SubmitReviewInput carries one review submission.
type SubmitReviewInput struct {
	UserID  uuid.UUID
	EventID uuid.UUID
	Rating  int
	Comment string
}

// Service exposes event reviews. Only attendees with a confirmed order may
// review, one review per user per event.
type Service interface {
	Submit(ctx context.Context, input SubmitReviewInput) (*models.Review, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, params pagination.Params) ([]models.Review, string, error)
	Delete(ctx context.Context, userID uuid.UUID, role enums.UserRole, reviewID uuid.UUID) error
}

type service struct {
	repo *Repository
}

// NewService constructs a review service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Submit(ctx context.Context, input SubmitReviewInput) (*models.Review, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}

	attended, err := s.repo.HasConfirmedAttendance(ctx, input.UserID, input.EventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check attendance")
	}
	if !attended {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only confirmed attendees can review")
	}

	review := &models.Review{
		ID:      uuid.New(),
		UserID:  input.UserID,
		EventID: input.EventID,
		Rating:  input.Rating,
		Comment: strings.TrimSpace(input.Comment),
	}
	if err := s.repo.Create(ctx, review); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "event already reviewed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}
	return review, nil
}

func (s *service) ListByEvent(ctx context.Context, eventID uuid.UUID, params pagination.Params) ([]models.Review, string, error) {
	if eventID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	rows, err := s.repo.ListByEvent(ctx, eventID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	page, next := pagination.TrimPage(rows, params.Limit, func(rv models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rv.CreatedAt, ID: rv.ID}
	})
	return page, next, nil
}

// Delete removes a review. Authors can delete their own; admins any.
func (s *service) Delete(ctx context.Context, userID uuid.UUID, role enums.UserRole, reviewID uuid.UUID) error {
	if reviewID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "review id required")
	}
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	if role != enums.UserRoleAdmin && review.UserID != userID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "review does not belong to user")
	}
	if _, err := s.repo.Delete(ctx, review.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	return nil
}
