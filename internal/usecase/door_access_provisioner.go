package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/metrics"
)

// Access window of a door PIN, in branch local time
const (
	checkInHour  = 14
	checkOutHour = 12
	pinDigits    = 6
)

var errStayUnknown = errors.New("stay dates unknown")

// DoorAccessProvisioner provisions the guest's PIN on every lock of a branch
type DoorAccessProvisioner struct {
	gateway      repository.DoorLockGateway
	reservations repository.ReservationRepository
	recorder     *attemptRecorder
	newPIN       func() (string, error)
	now          func() time.Time
}

// NewDoorAccessProvisioner creates a new door access provisioner
func NewDoorAccessProvisioner(
	gateway repository.DoorLockGateway,
	reservations repository.ReservationRepository,
	logs repository.NotificationLogRepository,
	m *metrics.Metrics,
	logger logger.Logger,
) *DoorAccessProvisioner {
	return &DoorAccessProvisioner{
		gateway:      gateway,
		reservations: reservations,
		recorder:     &attemptRecorder{logs: logs, metrics: m, logger: logger},
		newPIN:       randomPIN,
		now:          time.Now,
	}
}

// Provision creates the reservation's passcode on each configured lock and
// returns the PIN. The PIN is stored before any lock is called, so a retry
// provisions the same code and locks that already have it report a conflict
// that counts as success.
func (p *DoorAccessProvisioner) Provision(ctx context.Context, res *entity.Reservation, branch *entity.Branch, cfg *entity.DoorSystemConfig) (string, error) {
	startedAt := p.now()
	if !res.HasStay() {
		return "", errStayUnknown
	}

	pin := res.DoorPin
	if pin == "" {
		generated, err := p.newPIN()
		if err != nil {
			p.recorder.record(ctx, res.ID, entity.ChannelDoor, startedAt, "", err)
			return "", err
		}
		if err := p.reservations.SetDoorPin(ctx, res.ID, generated); err != nil {
			err = fmt.Errorf("failed to store door pin: %w", err)
			p.recorder.record(ctx, res.ID, entity.ChannelDoor, startedAt, "", err)
			return "", err
		}
		pin = generated
		res.DoorPin = pin
	}

	startsAt, endsAt := accessWindow(res, branch.Location())
	reference := paymentReference(res)

	var errs []error
	for _, lockID := range cfg.LockIDs {
		err := p.gateway.CreatePasscode(ctx, cfg, repository.PasscodeRequest{
			LockID:    lockID,
			Name:      fmt.Sprintf("%s %s", res.GuestName, reference),
			Code:      pin,
			StartsAt:  startsAt,
			EndsAt:    endsAt,
			Reference: reference,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("lock %s: %w", lockID, err))
		}
	}

	detail := fmt.Sprintf("locks=%d window=%s/%s", len(cfg.LockIDs), startsAt.Format(time.RFC3339), endsAt.Format(time.RFC3339))
	err := errors.Join(errs...)
	p.recorder.record(ctx, res.ID, entity.ChannelDoor, startedAt, detail, err)
	if err != nil {
		return "", err
	}
	return pin, nil
}

// accessWindow runs from check-in day 14:00 to check-out day 12:00 local time
func accessWindow(res *entity.Reservation, loc *time.Location) (time.Time, time.Time) {
	in, out := res.CheckInDate.UTC(), res.CheckOutDate.UTC()
	startsAt := time.Date(in.Year(), in.Month(), in.Day(), checkInHour, 0, 0, 0, loc)
	endsAt := time.Date(out.Year(), out.Month(), out.Day(), checkOutHour, 0, 0, 0, loc)
	return startsAt, endsAt
}

func randomPIN() (string, error) {
	max := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", pinDigits, n.Int64()), nil
}
