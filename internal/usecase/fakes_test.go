package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	gormrepo "hostel-ingest-service/internal/interface/repository"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/parser"
	"hostel-ingest-service/pkg/vault"
)

// fakeMailbox serves a fixed set of messages; marked messages are no longer
// returned, like read mail
type fakeMailbox struct {
	mu         sync.Mutex
	messages   []*entity.RawMessage
	marked     map[string]bool
	connectErr error
	connects   int
	// unreadable fails the body fetch of the given message ids
	unreadable map[string]error
}

func newFakeMailbox(msgs ...*entity.RawMessage) *fakeMailbox {
	return &fakeMailbox{messages: msgs, marked: map[string]bool{}}
}

func (f *fakeMailbox) Connect(ctx context.Context, cfg *entity.EmailReadingConfig) (repository.MailboxSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &fakeSession{box: f}, nil
}

func (f *fakeMailbox) isMarked(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marked[id]
}

type fakeSession struct {
	box *fakeMailbox
}

func (s *fakeSession) FetchCandidateMessages(ctx context.Context, filters entity.MessageFilters) (repository.MessageStream, error) {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	var pending []*entity.RawMessage
	for _, m := range s.box.messages {
		if !s.box.marked[m.ID] && filters.Matches(m.From, m.Subject) {
			pending = append(pending, m)
		}
	}
	return &fakeStream{msgs: pending, unreadable: s.box.unreadable}, nil
}

func (s *fakeSession) MarkProcessed(ctx context.Context, id string) error {
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	s.box.marked[id] = true
	return nil
}

func (s *fakeSession) Close() error { return nil }

type fakeStream struct {
	msgs       []*entity.RawMessage
	unreadable map[string]error
}

func (s *fakeStream) Next(ctx context.Context) (*entity.RawMessage, error) {
	if len(s.msgs) == 0 {
		return nil, io.EOF
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	if err, ok := s.unreadable[m.ID]; ok {
		var connErr *entity.ConnectionError
		if errors.As(err, &connErr) {
			return nil, err
		}
		return nil, &entity.MessageError{ID: m.ID, Subject: m.Subject, Err: err}
	}
	return m, nil
}

type mockPaymentGateway struct {
	mu       sync.Mutex
	calls    []repository.PaymentLinkRequest
	createFn func(req repository.PaymentLinkRequest) (string, error)
}

func (m *mockPaymentGateway) CreatePaymentLink(ctx context.Context, cfg *entity.PaymentConfig, req repository.PaymentLinkRequest) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(req)
	}
	return "https://pay.example/" + req.Reference, nil
}

type mockDoorGateway struct {
	mu       sync.Mutex
	calls    []repository.PasscodeRequest
	createFn func(req repository.PasscodeRequest) error
}

func (m *mockDoorGateway) CreatePasscode(ctx context.Context, cfg *entity.DoorSystemConfig, req repository.PasscodeRequest) error {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(req)
	}
	return nil
}

type mockMessagingGateway struct {
	mu     sync.Mutex
	to     []string
	bodies []string
	sendFn func(to, body string) (string, error)
}

func (m *mockMessagingGateway) SendText(ctx context.Context, cfg *entity.MessagingConfig, to, body string) (string, error) {
	m.mu.Lock()
	m.to = append(m.to, to)
	m.bodies = append(m.bodies, body)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(to, body)
	}
	return "wamid.1", nil
}

type publishedEvent struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{routingKey, payload})
	return nil
}

func (p *fakePublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var keys []string
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}

type fakeMessageLogs struct {
	mu       sync.Mutex
	recorded map[string]*entity.MessageLog
}

func newFakeMessageLogs() *fakeMessageLogs {
	return &fakeMessageLogs{recorded: map[string]*entity.MessageLog{}}
}

func (f *fakeMessageLogs) Record(ctx context.Context, log *entity.MessageLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.recorded[log.MessageID]; ok {
		existing.Attempts++
		return nil
	}
	cp := *log
	cp.Attempts = 1
	f.recorded[log.MessageID] = &cp
	return nil
}

func (f *fakeMessageLogs) MarkOutcome(ctx context.Context, organizationID uint, messageID, status, channel, errorDetail string, extracted map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.recorded[messageID]
	if !ok {
		return entity.ErrNotFound
	}
	l.ProcessStatus = status
	l.Channel = channel
	l.ErrorDetail = errorDetail
	l.ExtractedData = extracted
	return nil
}

func (f *fakeMessageLogs) status(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.recorded[id]; ok {
		return l.ProcessStatus
	}
	return ""
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.Organization{},
		&entity.Branch{},
		&entity.Reservation{},
		&entity.NotificationLog{},
		&entity.BranchCredentials{},
	))
	return db
}

const orgSettingsJSON = `{
  "emailReading": {"host": "imap.example.com", "port": 993, "secure": true, "user": "reservas@example.com", "password": "secret"},
  "boldPayment": {"apiKey": "bold-key", "merchantId": "m-1", "environment": "sandbox"},
  "doorSystem": {"apiUrl": "https://locks.example.com", "clientId": "c", "clientSecret": "s", "username": "u", "password": "p", "lockIds": ["L1", 2]},
  "messaging": {"apiKey": "wa-token", "phoneNumberId": "PN1"}
}`

// harness wires an orchestrator over sqlite repositories and fake gateways
type harness struct {
	db           *gorm.DB
	reservations repository.ReservationRepository
	logs         repository.NotificationLogRepository
	credentials  *CredentialService
	mailbox      *fakeMailbox
	payment      *mockPaymentGateway
	door         *mockDoorGateway
	whatsapp     *mockMessagingGateway
	events       *fakePublisher
	messageLogs  *fakeMessageLogs
	locker       *MemoryRunLocker
	orch         *IngestionOrchestrator
	org          *entity.Organization
	branch       *entity.Branch
}

func newHarness(t *testing.T, settings string) *harness {
	t.Helper()
	db := newTestDB(t)

	org := &entity.Organization{Name: "Hostel Andino", Active: true, Settings: datatypes.JSON(settings)}
	require.NoError(t, db.Create(org).Error)
	branch := &entity.Branch{
		OrganizationID: org.ID,
		Name:           "Casa Centro",
		RoomKeywords:   datatypes.JSON(`["dormitorio", "doble"]`),
		Timezone:       "America/Bogota",
		Active:         true,
	}
	require.NoError(t, db.Create(branch).Error)
	org.DefaultBranchID = &branch.ID
	require.NoError(t, db.Save(org).Error)

	v, err := vault.NewWithKey(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	log := logger.NewNop()
	h := &harness{
		db:           db,
		reservations: gormrepo.NewGormReservationRepository(db),
		logs:         gormrepo.NewGormNotificationLogRepository(db),
		mailbox:      newFakeMailbox(),
		payment:      &mockPaymentGateway{},
		door:         &mockDoorGateway{},
		whatsapp:     &mockMessagingGateway{},
		events:       &fakePublisher{},
		messageLogs:  newFakeMessageLogs(),
		locker:       NewMemoryRunLocker(),
		org:          org,
		branch:       branch,
	}
	h.credentials = NewCredentialService(gormrepo.NewGormCredentialRepository(db), v, log)

	grouping := NewGroupingEngine(h.reservations, log)
	dispatcher := NewActionDispatcher(
		grouping,
		NewPaymentLinkIssuer(h.payment, h.reservations, h.logs, nil, log),
		NewDoorAccessProvisioner(h.door, h.reservations, h.logs, nil, log),
		NewGuestMessenger(h.whatsapp, h.reservations, h.logs, nil, log),
		h.logs,
		log,
	)
	h.orch = NewIngestionOrchestrator(OrchestratorDeps{
		Organizations: gormrepo.NewGormOrganizationRepository(db),
		Branches:      gormrepo.NewGormBranchRepository(db),
		Reservations:  h.reservations,
		Logs:          h.logs,
		MessageLogs:   h.messageLogs,
		Mailbox:       h.mailbox,
		Events:        h.events,
		Parser:        parser.New(),
		Credentials:   h.credentials,
		Dispatcher:    dispatcher,
		Locker:        h.locker,
		Logger:        log,
	}, OrchestratorOptions{DefaultCurrency: "COP", RetryWindow: 72 * time.Hour, MaxRetryAttempts: 3})
	return h
}

func (h *harness) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&entity.Reservation{}).Count(&n).Error)
	return n
}

func (h *harness) logsFor(t *testing.T, res *entity.Reservation) []*entity.NotificationLog {
	t.Helper()
	logs, err := h.logs.FindByReservation(context.Background(), res.ID)
	require.NoError(t, err)
	return logs
}

func (h *harness) byCode(t *testing.T, code string) *entity.Reservation {
	t.Helper()
	res, err := h.reservations.FindByCode(context.Background(), h.org.ID, code)
	require.NoError(t, err)
	require.NotNil(t, res, "reservation %s", code)
	return res
}

// bookingMessage builds a notification in the Booking.com text layout
func bookingMessage(id, code, guest, phone, checkIn, checkOut, total string) *entity.RawMessage {
	text := "Nombre del huésped: " + guest + "\n" +
		"Check-in: " + checkIn + "\n" +
		"Check-out: " + checkOut + "\n" +
		"Número de reserva: " + code + "\n" +
		"Habitación: Dormitorio compartido de 6 camas\n"
	if phone != "" {
		text += "Teléfono: " + phone + "\n"
	}
	if total != "" {
		text += "Precio total: " + total + "\n"
	}
	return &entity.RawMessage{
		ID:      id,
		From:    "Booking.com <noreply@booking.com>",
		Subject: "Nueva reserva",
		Date:    time.Date(2025, 11, 20, 10, 0, 0, 0, time.UTC),
		Text:    text,
	}
}

func countChannel(logs []*entity.NotificationLog, channel entity.IntegrationChannel, success bool) int {
	n := 0
	for _, l := range logs {
		if l.Channel == channel && l.Success == success {
			n++
		}
	}
	return n
}
