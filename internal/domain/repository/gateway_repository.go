package repository

import (
	"context"
	"time"

	"hostel-ingest-service/internal/domain/entity"
)

// PaymentLinkRequest describes the link to create
type PaymentLinkRequest struct {
	Reference   string
	Description string
	AmountCents int64
	Currency    string
	ExpiresAt   time.Time
}

// PasscodeRequest describes a door passcode to provision on one lock
type PasscodeRequest struct {
	LockID    string
	Name      string
	Code      string
	StartsAt  time.Time
	EndsAt    time.Time
	Reference string
}

// PaymentGateway creates hosted payment links
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, cfg *entity.PaymentConfig, req PaymentLinkRequest) (string, error)
}

// DoorLockGateway provisions keypad passcodes
type DoorLockGateway interface {
	CreatePasscode(ctx context.Context, cfg *entity.DoorSystemConfig, req PasscodeRequest) error
}

// MessagingGateway sends guest messages and returns the provider message id
type MessagingGateway interface {
	SendText(ctx context.Context, cfg *entity.MessagingConfig, to, body string) (string, error)
}

// EventPublisher publishes reservation lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
