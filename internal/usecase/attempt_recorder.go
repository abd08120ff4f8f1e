package usecase

import (
	"context"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/metrics"
)

// attemptRecorder writes the NotificationLog row of one adapter invocation
type attemptRecorder struct {
	logs    repository.NotificationLogRepository
	metrics *metrics.Metrics
	logger  logger.Logger
}

func (r *attemptRecorder) record(ctx context.Context, reservationID uint, channel entity.IntegrationChannel, startedAt time.Time, detail string, callErr error) {
	row := &entity.NotificationLog{
		ReservationID: reservationID,
		Channel:       channel,
		Success:       callErr == nil,
		Detail:        entity.Truncate(detail, 512),
		StartedAt:     startedAt,
	}
	if callErr != nil {
		row.ErrorMessage = callErr.Error()
		r.logger.Error("Integration call failed",
			"reservationID", reservationID,
			"channel", channel,
			"transient", entity.IsTransient(callErr),
			"error", callErr)
	}
	r.metrics.Integration(string(channel), callErr == nil)

	// the row must land even when the run context is already cancelled
	if err := r.logs.Append(context.WithoutCancel(ctx), row); err != nil {
		r.logger.Error("Failed to write notification log",
			"reservationID", reservationID,
			"channel", channel,
			"error", err)
	}
}
