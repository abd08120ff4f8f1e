package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormReservationRepository implements the ReservationRepository interface
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GORM reservation repository
func NewGormReservationRepository(db *gorm.DB) repository.ReservationRepository {
	return &GormReservationRepository{
		db: db,
	}
}

// FindExisting looks up by channel code first, then by source message and unit
func (r *GormReservationRepository) FindExisting(ctx context.Context, organizationID uint, code, sourceMessageID string, sourceUnit int) (*entity.Reservation, error) {
	if code != "" {
		found, err := r.first(ctx, "organization_id = ? AND channel_reservation_code = ?", organizationID, code)
		if found != nil || err != nil {
			return found, err
		}
	}
	if sourceMessageID != "" {
		return r.first(ctx, "organization_id = ? AND source_message_id = ? AND source_unit = ?", organizationID, sourceMessageID, sourceUnit)
	}
	return nil, nil
}

// FindByCode returns the reservation with the given channel code, or nil
func (r *GormReservationRepository) FindByCode(ctx context.Context, organizationID uint, code string) (*entity.Reservation, error) {
	return r.first(ctx, "organization_id = ? AND channel_reservation_code = ?", organizationID, code)
}

// FindByCodeFamily returns the reservation with the code and its extra units
func (r *GormReservationRepository) FindByCodeFamily(ctx context.Context, organizationID uint, code string) ([]*entity.Reservation, error) {
	var reservations []*entity.Reservation
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND (channel_reservation_code = ? OR (channel_reservation_code LIKE ? AND source_unit > 1))",
			organizationID, code, code+"-%").
		Order("source_unit, id").
		Find(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindByID finds a reservation by primary key
func (r *GormReservationRepository) FindByID(ctx context.Context, id uint) (*entity.Reservation, error) {
	found, err := r.first(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, entity.ErrNotFound
	}
	return found, nil
}

func (r *GormReservationRepository) first(ctx context.Context, query string, args ...interface{}) (*entity.Reservation, error) {
	var reservation entity.Reservation
	result := r.db.WithContext(ctx).Where(query, args...).Order("id").First(&reservation)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &reservation, nil
}

// Create inserts a new reservation
func (r *GormReservationRepository) Create(ctx context.Context, reservation *entity.Reservation) error {
	result := r.db.WithContext(ctx).Create(reservation)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return entity.ErrDuplicateReservation
		}
		return result.Error
	}
	return nil
}

// FindGroupCandidates finds overlapping, non-cancelled stays at a branch
func (r *GormReservationRepository) FindGroupCandidates(ctx context.Context, organizationID, branchID uint, checkIn, checkOut time.Time) ([]*entity.Reservation, error) {
	var reservations []*entity.Reservation
	result := r.db.WithContext(ctx).
		Where("organization_id = ? AND branch_id = ?", organizationID, branchID).
		Where("status <> ?", entity.ReservationCancelled).
		Where("check_in_date < ? AND check_out_date > ?", checkOut, checkIn).
		Order("created_at DESC, id DESC").
		Find(&reservations)

	if result.Error != nil {
		return nil, result.Error
	}
	return reservations, nil
}

// FindUngrouped lists branch-resolved reservations created since the given
// time that never received a group
func (r *GormReservationRepository) FindUngrouped(ctx context.Context, organizationID uint, since time.Time) ([]*entity.Reservation, error) {
	var reservations []*entity.Reservation
	result := r.db.WithContext(ctx).
		Where("organization_id = ? AND created_at >= ?", organizationID, since).
		Where("branch_id IS NOT NULL AND reservation_group_id IS NULL").
		Where("check_in_date IS NOT NULL AND check_out_date IS NOT NULL").
		Where("status <> ?", entity.ReservationCancelled).
		Order("id").
		Find(&reservations)

	if result.Error != nil {
		return nil, result.Error
	}
	return reservations, nil
}

// UpdateStatus sets the lifecycle status
func (r *GormReservationRepository) UpdateStatus(ctx context.Context, id uint, status entity.ReservationStatus) error {
	return r.update(ctx, id, map[string]interface{}{"status": status})
}

// UpdateGroup assigns a group to a reservation that has none
func (r *GormReservationRepository) UpdateGroup(ctx context.Context, id uint, groupID string, primary bool) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Reservation{}).
		Where("id = ? AND reservation_group_id IS NULL", id).
		Updates(map[string]interface{}{
			"reservation_group_id": groupID,
			"is_primary_in_group":  primary,
		})
	return result.Error
}

// SetDoorPin stores the provisioned door PIN
func (r *GormReservationRepository) SetDoorPin(ctx context.Context, id uint, pin string) error {
	return r.update(ctx, id, map[string]interface{}{"door_pin": pin})
}

// SetPaymentLink stores the issued payment link
func (r *GormReservationRepository) SetPaymentLink(ctx context.Context, id uint, link string) error {
	return r.update(ctx, id, map[string]interface{}{"payment_link": link})
}

// SetSentMessage stores the guest message and when it was sent
func (r *GormReservationRepository) SetSentMessage(ctx context.Context, id uint, message string, sentAt time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"sent_message":    message,
		"sent_message_at": sentAt,
	})
}

func (r *GormReservationRepository) update(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&entity.Reservation{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return entity.ErrNotFound
	}
	return nil
}

// isDuplicateKey recognizes unique violations whether or not the dialector
// translated them to gorm.ErrDuplicatedKey.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
