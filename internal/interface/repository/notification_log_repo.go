package repository

import (
	"context"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormNotificationLogRepository implements the NotificationLogRepository interface
type GormNotificationLogRepository struct {
	db *gorm.DB
}

// NewGormNotificationLogRepository creates a new GORM notification log repository
func NewGormNotificationLogRepository(db *gorm.DB) repository.NotificationLogRepository {
	return &GormNotificationLogRepository{
		db: db,
	}
}

// Append inserts a new attempt row
func (r *GormNotificationLogRepository) Append(ctx context.Context, log *entity.NotificationLog) error {
	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByReservation lists the attempts of a reservation, oldest first
func (r *GormNotificationLogRepository) FindByReservation(ctx context.Context, reservationID uint) ([]*entity.NotificationLog, error) {
	var logs []*entity.NotificationLog
	result := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id").
		Find(&logs)

	if result.Error != nil {
		return nil, result.Error
	}
	return logs, nil
}

// FindRetryCandidates finds channels that only ever failed for recent reservations
func (r *GormNotificationLogRepository) FindRetryCandidates(ctx context.Context, organizationID uint, since time.Time, maxFailures int) ([]entity.RetryCandidate, error) {
	var candidates []entity.RetryCandidate
	result := r.db.WithContext(ctx).
		Table("notification_logs AS l").
		Select("l.reservation_id AS reservation_id, l.channel AS channel, COUNT(*) AS failures").
		Joins("JOIN reservations r ON r.id = l.reservation_id").
		Where("r.organization_id = ? AND r.created_at >= ?", organizationID, since).
		Where("r.status <> ?", entity.ReservationCancelled).
		Group("l.reservation_id, l.channel").
		Having("SUM(CASE WHEN l.success THEN 1 ELSE 0 END) = 0 AND COUNT(*) < ?", maxFailures).
		Order("l.reservation_id, l.channel").
		Scan(&candidates)

	if result.Error != nil {
		return nil, result.Error
	}
	return candidates, nil
}
