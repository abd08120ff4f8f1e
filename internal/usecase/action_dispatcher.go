package usecase

import (
	"context"
	"errors"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
)

// BranchContext is the validated integration setup of one branch for one run.
// A nil section means that integration is disabled for the branch.
type BranchContext struct {
	Branch    *entity.Branch
	Payment   *entity.PaymentConfig
	Door      *entity.DoorSystemConfig
	Messaging *entity.MessagingConfig
}

// NewBranchContext validates each integration section. Invalid sections are
// logged and disabled one by one. A nil settings value disables everything.
func NewBranchContext(branch *entity.Branch, settings *entity.IntegrationSettings, log logger.Logger) *BranchContext {
	bc := &BranchContext{Branch: branch}
	if settings == nil {
		return bc
	}
	scope := branchScope(branch.ID)

	var err error
	if bc.Payment, err = settings.PaymentGateway(scope); err != nil {
		logConfigError(log, err)
	}
	if bc.Door, err = settings.Door(scope); err != nil {
		logConfigError(log, err)
	}
	if bc.Messaging, err = settings.MessagingGateway(scope); err != nil {
		logConfigError(log, err)
	}
	return bc
}

func logConfigError(log logger.Logger, err error) {
	var cfgErr *entity.ConfigurationError
	if errors.As(err, &cfgErr) && len(cfgErr.Problems) == 1 && cfgErr.Problems[0] == "not configured" {
		log.Debug("Integration not configured", "integration", cfgErr.Integration, "scope", cfgErr.Scope)
		return
	}
	log.Warn("Integration disabled by invalid configuration", "error", err)
}

// ActionDispatcher runs the downstream actions of a persisted reservation.
// Every action is attempted regardless of the others' outcome.
type ActionDispatcher struct {
	grouping  *GroupingEngine
	payment   *PaymentLinkIssuer
	door      *DoorAccessProvisioner
	messenger *GuestMessenger
	logs      repository.NotificationLogRepository
	logger    logger.Logger
}

// NewActionDispatcher creates a new action dispatcher
func NewActionDispatcher(
	grouping *GroupingEngine,
	payment *PaymentLinkIssuer,
	door *DoorAccessProvisioner,
	messenger *GuestMessenger,
	logs repository.NotificationLogRepository,
	logger logger.Logger,
) *ActionDispatcher {
	return &ActionDispatcher{
		grouping:  grouping,
		payment:   payment,
		door:      door,
		messenger: messenger,
		logs:      logs,
		logger:    logger,
	}
}

// Dispatch groups the reservation, then issues the payment link, provisions
// door access and messages the guest where configured and applicable.
func (d *ActionDispatcher) Dispatch(ctx context.Context, res *entity.Reservation, bc *BranchContext) {
	log := d.logger.With("reservationID", res.ID)

	if _, err := d.grouping.AssignToGroup(ctx, res); err != nil {
		log.Error("Failed to group reservation", "error", err)
	}

	if res.AmountCents > 0 && bc.Payment != nil {
		d.payment.Issue(ctx, res, bc.Payment)
	}

	var pin string
	if res.HasStay() && bc.Door != nil {
		pin, _ = d.door.Provision(ctx, res, bc.Branch, bc.Door)
	}

	if bc.Messaging != nil && WhatsAppRecipient(res.GuestPhone) != "" {
		if err := d.messenger.Send(ctx, res, bc.Branch, bc.Messaging, GuestMessageExtras{DoorPin: pin}); err != nil && !errors.Is(err, errNoRecipient) {
			log.Debug("Guest message not delivered", "error", err)
		}
	}
}

// Retry invokes the adapter of one channel again for a reservation whose
// previous attempts all failed.
func (d *ActionDispatcher) Retry(ctx context.Context, res *entity.Reservation, bc *BranchContext, channel entity.IntegrationChannel) error {
	switch channel {
	case entity.ChannelPayment:
		if bc.Payment == nil || res.AmountCents <= 0 {
			return nil
		}
		_, err := d.payment.Issue(ctx, res, bc.Payment)
		return err
	case entity.ChannelDoor:
		if bc.Door == nil || !res.HasStay() {
			return nil
		}
		_, err := d.door.Provision(ctx, res, bc.Branch, bc.Door)
		return err
	case entity.ChannelWhatsApp:
		if bc.Messaging == nil || WhatsAppRecipient(res.GuestPhone) == "" {
			return nil
		}
		extras := GuestMessageExtras{}
		if res.DoorPin != "" && d.succeeded(ctx, res.ID, entity.ChannelDoor) {
			extras.DoorPin = res.DoorPin
		}
		return d.messenger.Send(ctx, res, bc.Branch, bc.Messaging, extras)
	default:
		return nil
	}
}

func (d *ActionDispatcher) succeeded(ctx context.Context, reservationID uint, channel entity.IntegrationChannel) bool {
	logs, err := d.logs.FindByReservation(ctx, reservationID)
	if err != nil {
		d.logger.Warn("Failed to read notification logs", "reservationID", reservationID, "error", err)
		return false
	}
	for _, l := range logs {
		if l.Channel == channel && l.Success {
			return true
		}
	}
	return false
}
