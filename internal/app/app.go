package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/internal/infrastructure/config"
	"hostel-ingest-service/internal/infrastructure/messaging"
	"hostel-ingest-service/internal/infrastructure/oauth"
	"hostel-ingest-service/internal/infrastructure/persistence"
	"hostel-ingest-service/internal/interface/mailbox"
	repo "hostel-ingest-service/internal/interface/repository"
	"hostel-ingest-service/internal/usecase"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/metrics"
	"hostel-ingest-service/pkg/parser"
	"hostel-ingest-service/pkg/vault"
)

// App holds the wired service shared by the binaries
type App struct {
	Config        *config.Config
	Logger        logger.Logger
	DB            *gorm.DB
	Organizations repository.OrganizationRepository
	Logs          repository.NotificationLogRepository
	Credentials   *usecase.CredentialService
	Orchestrator  *usecase.IngestionOrchestrator
	Scheduler     *usecase.Scheduler

	mongo     *mongo.Client
	publisher *messaging.Publisher
}

// New connects the stores and builds the ingestion pipeline. reg may be nil
// to run without metrics.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	log.Info("Connecting to PostgreSQL")
	db, err := persistence.NewPostgresDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := persistence.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	a.DB = db

	log.Info("Connecting to MongoDB")
	a.mongo, err = persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoUser, cfg.MongoPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	messageLogs, err := repo.NewMongoMessageLogRepository(ctx, persistence.GetDatabase(a.mongo, cfg.MongoDB))
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	var events repository.EventPublisher
	if cfg.RabbitMQURL != "" {
		a.publisher, err = messaging.NewPublisher(cfg.RabbitMQURL, log)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		events = a.publisher
	} else {
		log.Info("RABBITMQ_URL not set, reservation events are not published")
	}

	v, err := vault.New(cfg.EncryptionKey, cfg.EncryptionSalt, log)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("failed to init credential vault: %w", err)
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.NewMetrics("hostel_ingest", reg)
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	reservations := repo.NewGormReservationRepository(db)
	a.Organizations = repo.NewGormOrganizationRepository(db)
	a.Logs = repo.NewGormNotificationLogRepository(db)
	a.Credentials = usecase.NewCredentialService(repo.NewGormCredentialRepository(db), v, log)

	var gmail *mailbox.GmailConnector
	if cfg.GmailEnabled() {
		gmail = mailbox.NewGmailConnector(cfg.GmailClientID, cfg.GmailClientSecret, log)
	}

	dispatcher := usecase.NewActionDispatcher(
		usecase.NewGroupingEngine(reservations, log),
		usecase.NewPaymentLinkIssuer(
			repo.NewPaymentGatewayRepository(log, client, cfg.PaymentAPIURL, cfg.PaymentSandboxAPIURL),
			reservations, a.Logs, m, log,
		),
		usecase.NewDoorAccessProvisioner(
			repo.NewDoorLockRepository(log, client, oauth.NewDoorTokenCache()),
			reservations, a.Logs, m, log,
		),
		usecase.NewGuestMessenger(
			repo.NewWhatsappRepository(log, client, cfg.WhatsAppAPIURL),
			reservations, a.Logs, m, log,
		),
		a.Logs,
		log,
	)

	a.Orchestrator = usecase.NewIngestionOrchestrator(usecase.OrchestratorDeps{
		Organizations: a.Organizations,
		Branches:      repo.NewGormBranchRepository(db),
		Reservations:  reservations,
		Logs:          a.Logs,
		MessageLogs:   messageLogs,
		Mailbox:       mailbox.NewConnector(mailbox.NewIMAPConnector(log, cfg.IMAPTimeout), gmail),
		Events:        events,
		Parser:        parser.New(),
		Credentials:   a.Credentials,
		Dispatcher:    dispatcher,
		Locker:        usecase.NewPostgresRunLocker(db, log),
		Metrics:       m,
		Logger:        log,
	}, usecase.OrchestratorOptions{
		DefaultCurrency:  cfg.DefaultCurrency,
		RetryWindow:      cfg.RetryWindow,
		MaxRetryAttempts: cfg.MaxRetryAttempts,
	})

	a.Scheduler = usecase.NewScheduler(a.Organizations, a.Orchestrator, cfg.IngestInterval, cfg.IngestConcurrency, log)
	return a, nil
}

// Close releases the broker and store connections
func (a *App) Close(ctx context.Context) {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.Logger.Error("MongoDB disconnect error", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
