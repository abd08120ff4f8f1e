package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/metrics"
	"hostel-ingest-service/pkg/parser"
)

// Routing keys of published reservation events
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
)

// MessageParser turns a raw message into zero or more drafts
type MessageParser interface {
	Parse(in parser.Input) []entity.ReservationDraft
}

// OrchestratorOptions tunes a run
type OrchestratorOptions struct {
	DefaultCurrency  string
	RetryWindow      time.Duration
	MaxRetryAttempts int
}

// ReservationEvent is the payload of reservation lifecycle events
type ReservationEvent struct {
	ReservationID  uint       `json:"reservationId"`
	OrganizationID uint       `json:"organizationId"`
	BranchID       *uint      `json:"branchId,omitempty"`
	Code           string     `json:"channelReservationCode,omitempty"`
	Channel        string     `json:"channel"`
	GuestName      string     `json:"guestName"`
	CheckIn        *time.Time `json:"checkIn,omitempty"`
	CheckOut       *time.Time `json:"checkOut,omitempty"`
	Status         string     `json:"status"`
	OccurredAt     time.Time  `json:"occurredAt"`
}

// IngestionOrchestrator runs the mailbox-to-reservation pipeline of one
// organization
type IngestionOrchestrator struct {
	organizations repository.OrganizationRepository
	branches      repository.BranchRepository
	reservations  repository.ReservationRepository
	logs          repository.NotificationLogRepository
	messageLogs   repository.MessageLogRepository
	mailbox       repository.MailboxConnector
	events        repository.EventPublisher
	parser        MessageParser
	credentials   *CredentialService
	dispatcher    *ActionDispatcher
	locker        RunLocker
	metrics       *metrics.Metrics
	logger        logger.Logger
	opts          OrchestratorOptions
	now           func() time.Time
}

// OrchestratorDeps groups the collaborators of the orchestrator. MessageLogs,
// Events and Metrics are optional.
type OrchestratorDeps struct {
	Organizations repository.OrganizationRepository
	Branches      repository.BranchRepository
	Reservations  repository.ReservationRepository
	Logs          repository.NotificationLogRepository
	MessageLogs   repository.MessageLogRepository
	Mailbox       repository.MailboxConnector
	Events        repository.EventPublisher
	Parser        MessageParser
	Credentials   *CredentialService
	Dispatcher    *ActionDispatcher
	Locker        RunLocker
	Metrics       *metrics.Metrics
	Logger        logger.Logger
}

// NewIngestionOrchestrator creates a new ingestion orchestrator
func NewIngestionOrchestrator(deps OrchestratorDeps, opts OrchestratorOptions) *IngestionOrchestrator {
	if opts.MaxRetryAttempts <= 0 {
		opts.MaxRetryAttempts = 5
	}
	if opts.RetryWindow <= 0 {
		opts.RetryWindow = 72 * time.Hour
	}
	return &IngestionOrchestrator{
		organizations: deps.Organizations,
		branches:      deps.Branches,
		reservations:  deps.Reservations,
		logs:          deps.Logs,
		messageLogs:   deps.MessageLogs,
		mailbox:       deps.Mailbox,
		events:        deps.Events,
		parser:        deps.Parser,
		credentials:   deps.Credentials,
		dispatcher:    deps.Dispatcher,
		locker:        deps.Locker,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
		opts:          opts,
		now:           time.Now,
	}
}

// orgRun is the state of one organization run
type orgRun struct {
	org        *entity.Organization
	resolver   *BranchResolver
	branches   map[uint]*BranchContext
	session    repository.MailboxSession
	logger     logger.Logger
	created    int
	dispatched map[uint]bool // reservations this run already dispatched
}

// messageOutcome is what happened to the drafts of one message
type messageOutcome struct {
	created   int
	duplicate int
	cancelled int
	err       error
	extracted map[string]interface{}
}

// Run ingests the unread reservation notifications of an organization and
// returns how many reservations were created. It fails with
// entity.ErrRunInProgress when another run holds the organization, and with
// *entity.ConnectionError when the mailbox cannot be opened. Errors scoped
// to one message, branch or integration are logged and do not fail the run.
func (o *IngestionOrchestrator) Run(ctx context.Context, organizationID uint) (int, error) {
	started := o.now()

	unlock, ok, err := o.locker.TryLock(ctx, strconv.FormatUint(uint64(organizationID), 10))
	if err != nil {
		return 0, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return 0, entity.ErrRunInProgress
	}
	defer unlock()

	created, err := o.run(ctx, organizationID)

	result := "success"
	if err != nil {
		result = "failed"
	}
	o.metrics.Run(o.now().Sub(started).Seconds(), result)
	return created, err
}

func (o *IngestionOrchestrator) run(ctx context.Context, organizationID uint) (int, error) {
	log := o.logger.With("organizationID", organizationID)

	org, err := o.organizations.FindByID(ctx, organizationID)
	if err != nil {
		return 0, fmt.Errorf("failed to load organization: %w", err)
	}

	run, mailCfg, err := o.prepare(ctx, org, log)
	if err != nil {
		return 0, err
	}

	if mailCfg == nil {
		o.retrySweep(ctx, run)
		return 0, nil
	}

	session, err := o.mailbox.Connect(ctx, mailCfg)
	if err != nil {
		log.Error("Failed to connect to mailbox", "error", err)
		return 0, err
	}
	defer session.Close()
	run.session = session

	stream, err := session.FetchCandidateMessages(ctx, mailCfg.MessageFilters())
	if err != nil {
		return 0, fmt.Errorf("failed to list messages: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			log.Warn("Run aborted", "created", run.created, "error", err)
			return run.created, err
		}
		msg, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		var msgErr *entity.MessageError
		if errors.As(err, &msgErr) {
			o.skipUnreadable(ctx, run, msgErr)
			continue
		}
		if err != nil {
			log.Error("Failed to fetch message", "error", err)
			return run.created, fmt.Errorf("failed to fetch message: %w", err)
		}
		o.processMessage(ctx, run, msg)
	}

	o.retrySweep(ctx, run)

	log.Info("Ingestion run finished", "created", run.created)
	return run.created, nil
}

// prepare resolves the organization's settings and branch integrations. A
// nil mail config means the mailbox is not usable for this run.
func (o *IngestionOrchestrator) prepare(ctx context.Context, org *entity.Organization, log logger.Logger) (*orgRun, *entity.EmailReadingConfig, error) {
	orgSettings, err := o.credentials.OrganizationSettings(ctx, org)
	if err != nil {
		log.Error("Organization credentials unavailable, using settings only", "error", err)
	}

	branches, err := o.branches.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list branches: %w", err)
	}

	run := &orgRun{
		org:        org,
		resolver:   NewBranchResolver(branches, org.DefaultBranchID),
		branches:   make(map[uint]*BranchContext, len(branches)),
		logger:     log,
		dispatched: make(map[uint]bool),
	}
	for _, b := range branches {
		blog := log.With("branchID", b.ID)
		settings, err := o.credentials.BranchSettings(ctx, orgSettings, org.ID, b.ID)
		if err != nil {
			blog.Error("Branch credentials unavailable, integrations disabled", "error", err)
		}
		run.branches[b.ID] = NewBranchContext(b, settings, blog)
	}

	mailCfg, err := orgSettings.Mail(orgScope(org.ID))
	if err != nil {
		log.Warn("Mailbox disabled", "error", err)
		return run, nil, nil
	}
	return run, mailCfg, nil
}

// processMessage handles every draft of a message and marks the message
// processed once all of them are committed
func (o *IngestionOrchestrator) processMessage(ctx context.Context, run *orgRun, msg *entity.RawMessage) {
	log := run.logger.With("messageID", msg.ID)
	o.audit(ctx, run.org.ID, msg)

	in := parser.Input{MessageID: msg.ID, From: msg.From, Subject: msg.Subject, Text: msg.Text, HTML: msg.HTML}
	drafts := o.parser.Parse(in)
	if len(drafts) == 0 {
		log.Debug("Not a reservation message", "subject", msg.Subject)
		o.metrics.Message(metrics.OutcomeSkipped)
		o.markProcessed(ctx, run, msg, entity.MessageStatusSkipped, "", "", nil)
		return
	}

	out := messageOutcome{extracted: map[string]interface{}{}}
	var codes []string
	for i := range drafts {
		d := &drafts[i]
		if d.ChannelReservationCode != "" {
			codes = append(codes, d.ChannelReservationCode)
		}
		if d.Cancelled {
			if err := o.cancel(ctx, run, d, log); err != nil {
				out.err = err
				break
			}
			out.cancelled++
			continue
		}
		created, err := o.ingestDraft(ctx, run, d, log)
		if err != nil {
			out.err = err
			break
		}
		if created {
			out.created++
		} else {
			out.duplicate++
		}
	}
	out.extracted["codes"] = codes
	out.extracted["units"] = len(drafts)
	out.extracted["guestName"] = drafts[0].GuestName

	channel := drafts[0].Channel
	if out.err != nil {
		// left unread so the next run picks it up again
		log.Error("Failed to ingest message", "error", out.err)
		o.metrics.Message(metrics.OutcomeFailed)
		o.outcome(ctx, run.org.ID, msg.ID, entity.MessageStatusFailed, channel, out.err.Error(), out.extracted)
		return
	}

	status, outcome := entity.MessageStatusCompleted, metrics.OutcomeCreated
	switch {
	case out.created > 0:
	case out.cancelled > 0:
		status, outcome = entity.MessageStatusCancelled, metrics.OutcomeCancelled
	default:
		status, outcome = entity.MessageStatusDuplicate, metrics.OutcomeDuplicate
	}
	o.metrics.Message(outcome)
	o.markProcessed(ctx, run, msg, status, channel, "", out.extracted)
}

// skipUnreadable audits a message that could not be read. It is left
// unprocessed in the mailbox.
func (o *IngestionOrchestrator) skipUnreadable(ctx context.Context, run *orgRun, msgErr *entity.MessageError) {
	run.logger.Error("Skipping unreadable message", "messageID", msgErr.ID, "error", msgErr.Err)
	o.metrics.Message(metrics.OutcomeFailed)
	o.audit(ctx, run.org.ID, &entity.RawMessage{ID: msgErr.ID, Subject: msgErr.Subject})
	o.outcome(ctx, run.org.ID, msgErr.ID, entity.MessageStatusFailed, "", msgErr.Err.Error(), nil)
}

// ingestDraft persists a draft unless it was already ingested. It reports
// whether a reservation was created. Downstream failures are not returned.
func (o *IngestionOrchestrator) ingestDraft(ctx context.Context, run *orgRun, d *entity.ReservationDraft, log logger.Logger) (bool, error) {
	existing, err := o.reservations.FindExisting(ctx, run.org.ID, d.ChannelReservationCode, d.SourceMessageID, d.SourceUnit)
	if err != nil {
		return false, fmt.Errorf("failed to check existing reservation: %w", err)
	}
	if existing != nil {
		log.Info("Reservation already ingested", "reservationID", existing.ID, "code", d.ChannelReservationCode)
		return false, nil
	}

	res := o.newReservation(run.org.ID, d)
	branch, err := run.resolver.Resolve(d.RoomDescription)
	if err != nil {
		log.Warn("Branch unresolved, downstream actions skipped", "room", d.RoomDescription, "code", d.ChannelReservationCode)
	} else {
		res.BranchID = &branch.ID
	}

	if err := o.reservations.Create(ctx, res); err != nil {
		if errors.Is(err, entity.ErrDuplicateReservation) {
			log.Info("Reservation created concurrently", "code", d.ChannelReservationCode)
			return false, nil
		}
		return false, fmt.Errorf("failed to create reservation: %w", err)
	}

	run.created++
	o.metrics.Created(res.Channel)
	log.Info("Reservation created",
		"reservationID", res.ID,
		"code", res.Code(),
		"guest", res.GuestName,
		"channel", res.Channel)
	o.publish(ctx, EventReservationCreated, res)

	if branch != nil {
		run.dispatched[res.ID] = true
		o.dispatcher.Dispatch(ctx, res, run.branches[branch.ID])
	}
	return true, nil
}

func (o *IngestionOrchestrator) newReservation(organizationID uint, d *entity.ReservationDraft) *entity.Reservation {
	res := &entity.Reservation{
		OrganizationID:  organizationID,
		Channel:         d.Channel,
		SourceUnit:      d.SourceUnit,
		GuestName:       strings.TrimSpace(d.GuestName),
		GuestEmail:      NormalizeEmail(d.GuestEmail),
		GuestPhone:      strings.TrimSpace(d.GuestPhone),
		CheckInDate:     d.CheckIn,
		CheckOutDate:    d.CheckOut,
		RoomDescription: d.RoomDescription,
		AmountCents:     d.AmountCents,
		Currency:        d.Currency,
		Status:          entity.ReservationConfirmed,
		PaymentStatus:   entity.PaymentPending,
	}
	if res.SourceUnit == 0 {
		res.SourceUnit = 1
	}
	if d.ChannelReservationCode != "" {
		code := d.ChannelReservationCode
		res.ChannelReservationCode = &code
	}
	if d.SourceMessageID != "" {
		id := d.SourceMessageID
		res.SourceMessageID = &id
	}
	if res.Currency == "" && res.AmountCents > 0 {
		res.Currency = o.opts.DefaultCurrency
	}
	return res
}

// cancel marks the reservation with the draft's code as cancelled. Unknown
// codes are ignored.
func (o *IngestionOrchestrator) cancel(ctx context.Context, run *orgRun, d *entity.ReservationDraft, log logger.Logger) error {
	units, err := o.reservations.FindByCodeFamily(ctx, run.org.ID, d.ChannelReservationCode)
	if err != nil {
		return fmt.Errorf("failed to find cancelled reservation: %w", err)
	}
	if len(units) == 0 {
		log.Info("Cancellation for unknown reservation", "code", d.ChannelReservationCode)
		return nil
	}
	for _, res := range units {
		if res.Status == entity.ReservationCancelled {
			continue
		}
		if err := o.reservations.UpdateStatus(ctx, res.ID, entity.ReservationCancelled); err != nil {
			return fmt.Errorf("failed to cancel reservation %d: %w", res.ID, err)
		}
		res.Status = entity.ReservationCancelled
		log.Info("Reservation cancelled", "reservationID", res.ID, "code", res.Code())
		o.publish(ctx, EventReservationCancelled, res)
	}
	return nil
}

// retrySweep re-runs adapters whose attempts all failed and groups
// reservations left without a group
func (o *IngestionOrchestrator) retrySweep(ctx context.Context, run *orgRun) {
	if ctx.Err() != nil {
		return
	}
	since := o.now().Add(-o.opts.RetryWindow)

	candidates, err := o.logs.FindRetryCandidates(ctx, run.org.ID, since, o.opts.MaxRetryAttempts)
	if err != nil {
		run.logger.Error("Failed to find retry candidates", "error", err)
	}
	for _, c := range candidates {
		if run.dispatched[c.ReservationID] {
			continue
		}
		res, err := o.reservations.FindByID(ctx, c.ReservationID)
		if err != nil {
			run.logger.Error("Failed to load reservation for retry", "reservationID", c.ReservationID, "error", err)
			continue
		}
		if res.BranchID == nil {
			continue
		}
		bc, ok := run.branches[*res.BranchID]
		if !ok {
			continue
		}
		run.logger.Info("Retrying integration",
			"reservationID", res.ID,
			"channel", c.Channel,
			"failures", c.Failures)
		o.dispatcher.Retry(ctx, res, bc, c.Channel)
	}

	ungrouped, err := o.reservations.FindUngrouped(ctx, run.org.ID, since)
	if err != nil {
		run.logger.Error("Failed to find ungrouped reservations", "error", err)
		return
	}
	for _, res := range ungrouped {
		if _, err := o.dispatcher.grouping.AssignToGroup(ctx, res); err != nil {
			run.logger.Error("Failed to group reservation", "reservationID", res.ID, "error", err)
		}
	}
}

func (o *IngestionOrchestrator) markProcessed(ctx context.Context, run *orgRun, msg *entity.RawMessage, status, channel, detail string, extracted map[string]interface{}) {
	if err := run.session.MarkProcessed(ctx, msg.ID); err != nil {
		run.logger.Error("Failed to mark message processed", "messageID", msg.ID, "error", err)
	}
	o.outcome(ctx, run.org.ID, msg.ID, status, channel, detail, extracted)
}

func (o *IngestionOrchestrator) audit(ctx context.Context, organizationID uint, msg *entity.RawMessage) {
	if o.messageLogs == nil {
		return
	}
	err := o.messageLogs.Record(ctx, &entity.MessageLog{
		OrganizationID: organizationID,
		MessageID:      msg.ID,
		From:           msg.From,
		Subject:        msg.Subject,
		ReceivedAt:     msg.Date,
		FetchedAt:      o.now(),
		ProcessStatus:  entity.MessageStatusReceived,
	})
	if err != nil {
		o.logger.Warn("Failed to record message", "messageID", msg.ID, "error", err)
	}
}

func (o *IngestionOrchestrator) outcome(ctx context.Context, organizationID uint, messageID, status, channel, detail string, extracted map[string]interface{}) {
	if o.messageLogs == nil {
		return
	}
	if err := o.messageLogs.MarkOutcome(ctx, organizationID, messageID, status, channel, detail, extracted); err != nil {
		o.logger.Warn("Failed to record message outcome", "messageID", messageID, "error", err)
	}
}

func (o *IngestionOrchestrator) publish(ctx context.Context, routingKey string, res *entity.Reservation) {
	if o.events == nil {
		return
	}
	event := ReservationEvent{
		ReservationID:  res.ID,
		OrganizationID: res.OrganizationID,
		BranchID:       res.BranchID,
		Code:           res.Code(),
		Channel:        res.Channel,
		GuestName:      res.GuestName,
		CheckIn:        res.CheckInDate,
		CheckOut:       res.CheckOutDate,
		Status:         string(res.Status),
		OccurredAt:     o.now().UTC(),
	}
	if err := o.events.Publish(ctx, routingKey, event); err != nil {
		o.logger.Warn("Failed to publish event", "routingKey", routingKey, "reservationID", res.ID, "error", err)
	}
}
