package usecase

import (
	"context"
	"fmt"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/metrics"
)

// paymentLinkTTL is how long an issued payment link stays valid
const paymentLinkTTL = 72 * time.Hour

// PaymentLinkIssuer creates one payment link per reservation
type PaymentLinkIssuer struct {
	gateway      repository.PaymentGateway
	reservations repository.ReservationRepository
	recorder     *attemptRecorder
	now          func() time.Time
}

// NewPaymentLinkIssuer creates a new payment link issuer
func NewPaymentLinkIssuer(
	gateway repository.PaymentGateway,
	reservations repository.ReservationRepository,
	logs repository.NotificationLogRepository,
	m *metrics.Metrics,
	logger logger.Logger,
) *PaymentLinkIssuer {
	return &PaymentLinkIssuer{
		gateway:      gateway,
		reservations: reservations,
		recorder:     &attemptRecorder{logs: logs, metrics: m, logger: logger},
		now:          time.Now,
	}
}

// Issue returns the payment link of res, creating it when missing. A
// reservation that already has a link is not sent to the gateway again.
func (i *PaymentLinkIssuer) Issue(ctx context.Context, res *entity.Reservation, cfg *entity.PaymentConfig) (string, error) {
	startedAt := i.now()
	if res.PaymentLink != "" {
		i.recorder.record(ctx, res.ID, entity.ChannelPayment, startedAt, "existing link", nil)
		return res.PaymentLink, nil
	}

	reference := paymentReference(res)
	link, err := i.gateway.CreatePaymentLink(ctx, cfg, repository.PaymentLinkRequest{
		Reference:   reference,
		Description: fmt.Sprintf("Reserva %s - %s", reference, res.GuestName),
		AmountCents: res.AmountCents,
		Currency:    res.Currency,
		ExpiresAt:   startedAt.Add(paymentLinkTTL).UTC(),
	})
	if err != nil {
		i.recorder.record(ctx, res.ID, entity.ChannelPayment, startedAt, reference, err)
		return "", err
	}

	// the gateway deduplicates on the reference, so a retry returns this link
	if err := i.reservations.SetPaymentLink(ctx, res.ID, link); err != nil {
		err = fmt.Errorf("payment link created but not stored: %w", err)
		i.recorder.record(ctx, res.ID, entity.ChannelPayment, startedAt, link, err)
		return "", err
	}
	res.PaymentLink = link
	i.recorder.record(ctx, res.ID, entity.ChannelPayment, startedAt, link, nil)
	return link, nil
}

func paymentReference(res *entity.Reservation) string {
	if code := res.Code(); code != "" {
		return code
	}
	return fmt.Sprintf("RES-%d", res.ID)
}
