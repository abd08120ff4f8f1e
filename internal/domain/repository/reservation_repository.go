package repository

import (
	"context"
	"time"

	"hostel-ingest-service/internal/domain/entity"
)

// ReservationRepository defines persistence for reservations
type ReservationRepository interface {
	// FindExisting returns the reservation matching the idempotency keys of a
	// draft (channel code, or source message id and unit), or nil.
	FindExisting(ctx context.Context, organizationID uint, code, sourceMessageID string, sourceUnit int) (*entity.Reservation, error)
	FindByCode(ctx context.Context, organizationID uint, code string) (*entity.Reservation, error)
	// FindByCodeFamily returns the reservation with the code plus the
	// extra units split from it as <code>-<n>, ordered by unit.
	FindByCodeFamily(ctx context.Context, organizationID uint, code string) ([]*entity.Reservation, error)
	FindByID(ctx context.Context, id uint) (*entity.Reservation, error)
	// Create inserts a reservation. A unique-key conflict returns
	// entity.ErrDuplicateReservation.
	Create(ctx context.Context, reservation *entity.Reservation) error
	// FindGroupCandidates returns non-cancelled reservations of a branch whose
	// stay overlaps [checkIn, checkOut), most recently created first.
	FindGroupCandidates(ctx context.Context, organizationID, branchID uint, checkIn, checkOut time.Time) ([]*entity.Reservation, error)
	FindUngrouped(ctx context.Context, organizationID uint, since time.Time) ([]*entity.Reservation, error)
	UpdateStatus(ctx context.Context, id uint, status entity.ReservationStatus) error
	UpdateGroup(ctx context.Context, id uint, groupID string, primary bool) error
	SetDoorPin(ctx context.Context, id uint, pin string) error
	SetPaymentLink(ctx context.Context, id uint, link string) error
	SetSentMessage(ctx context.Context, id uint, message string, sentAt time.Time) error
}
