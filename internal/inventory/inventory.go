package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dalgayunus/iTicket/pkg/db/models"
	pkgerrors "github.com/dalgayunus/iTicket/pkg/errors"
)

// ReservationRequest asks for qty seats from one ticket tier.
type ReservationRequest struct {
	TicketTypeID uuid.UUID
	Qty          int
}

// Reserve decrements availability for every request inside the caller's
// transaction. The decrement is conditional on enough remaining stock, so
// two concurrent orders can never both take the last seats. Any shortfall
// fails the whole batch.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	for _, req := range requests {
		if req.TicketTypeID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "ticket type id required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}

		result := tx.WithContext(ctx).Model(&models.TicketType{}).
			Where("id = ? AND quantity_available >= ?", req.TicketTypeID, req.Qty).
			Update("quantity_available", gorm.Expr("quantity_available - ?", req.Qty))
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "reserve tickets")
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientInventory, "not enough tickets available").
				WithDetails(map[string]any{"ticket_type_id": req.TicketTypeID.String(), "requested": req.Qty})
		}
	}
	return nil
}
