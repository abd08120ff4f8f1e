package repository

import (
	"context"
	"time"

	"hostel-ingest-service/internal/domain/entity"
)

// NotificationLogRepository is the append-only store of downstream attempts
type NotificationLogRepository interface {
	Append(ctx context.Context, log *entity.NotificationLog) error
	FindByReservation(ctx context.Context, reservationID uint) ([]*entity.NotificationLog, error)
	// FindRetryCandidates lists (reservation, channel) pairs of the
	// organization created since the given time that have failed attempts,
	// no successful attempt and fewer than maxFailures failures.
	FindRetryCandidates(ctx context.Context, organizationID uint, since time.Time, maxFailures int) ([]entity.RetryCandidate, error)
}
