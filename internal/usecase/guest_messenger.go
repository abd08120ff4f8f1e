package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/metrics"
	"hostel-ingest-service/templates"
)

var errNoRecipient = errors.New("guest has no usable phone number")

// GuestMessageExtras carries results of other adapters into the message
type GuestMessageExtras struct {
	DoorPin string
}

// GuestMessenger sends the welcome message over WhatsApp
type GuestMessenger struct {
	gateway      repository.MessagingGateway
	reservations repository.ReservationRepository
	recorder     *attemptRecorder
	now          func() time.Time
}

// NewGuestMessenger creates a new guest messenger
func NewGuestMessenger(
	gateway repository.MessagingGateway,
	reservations repository.ReservationRepository,
	logs repository.NotificationLogRepository,
	m *metrics.Metrics,
	logger logger.Logger,
) *GuestMessenger {
	return &GuestMessenger{
		gateway:      gateway,
		reservations: reservations,
		recorder:     &attemptRecorder{logs: logs, metrics: m, logger: logger},
		now:          time.Now,
	}
}

// Send messages the guest once. A reservation whose message was already
// sent is left alone.
func (m *GuestMessenger) Send(ctx context.Context, res *entity.Reservation, branch *entity.Branch, cfg *entity.MessagingConfig, extras GuestMessageExtras) error {
	startedAt := m.now()
	if res.SentMessageAt != nil {
		m.recorder.record(ctx, res.ID, entity.ChannelWhatsApp, startedAt, "already sent", nil)
		return nil
	}

	to := WhatsAppRecipient(res.GuestPhone)
	if to == "" {
		return errNoRecipient
	}

	msg := templates.GuestMessage{
		GuestName:   res.GuestName,
		Code:        res.Code(),
		CheckIn:     res.CheckInDate,
		CheckOut:    res.CheckOutDate,
		Room:        res.RoomDescription,
		AmountCents: res.AmountCents,
		Currency:    res.Currency,
		PaymentLink: res.PaymentLink,
		DoorPin:     extras.DoorPin,
	}
	if branch != nil {
		msg.BranchName = branch.Name
	}
	body := msg.Render()

	messageID, err := m.gateway.SendText(ctx, cfg, to, body)
	if err != nil {
		m.recorder.record(ctx, res.ID, entity.ChannelWhatsApp, startedAt, to, err)
		return err
	}

	sentAt := m.now()
	if err := m.reservations.SetSentMessage(ctx, res.ID, body, sentAt); err != nil {
		// the guest already has the message; a retry would send it twice
		m.recorder.record(ctx, res.ID, entity.ChannelWhatsApp, startedAt, messageID, nil)
		return fmt.Errorf("message sent but not stored: %w", err)
	}
	res.SentMessage = body
	res.SentMessageAt = &sentAt
	m.recorder.record(ctx, res.ID, entity.ChannelWhatsApp, startedAt, messageID, nil)
	return nil
}

// WhatsAppRecipient returns the phone in international digits, or "" when
// it is too short to be dialable.
func WhatsAppRecipient(phone string) string {
	digits := NormalizePhone(phone)
	if len(digits) < minPhoneDigits {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(phone), "00") {
		digits = strings.TrimPrefix(digits, "00")
	}
	return digits
}
