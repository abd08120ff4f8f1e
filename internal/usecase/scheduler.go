package usecase

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
)

// OrganizationRunner runs the ingestion of one organization
type OrganizationRunner interface {
	Run(ctx context.Context, organizationID uint) (int, error)
}

// Scheduler runs every active organization periodically
type Scheduler struct {
	organizations repository.OrganizationRepository
	runner        OrganizationRunner
	interval      time.Duration
	concurrency   int
	logger        logger.Logger
}

// NewScheduler creates a new scheduler. concurrency bounds how many
// organizations run at once.
func NewScheduler(organizations repository.OrganizationRepository, runner OrganizationRunner, interval time.Duration, concurrency int, logger logger.Logger) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Scheduler{
		organizations: organizations,
		runner:        runner,
		interval:      interval,
		concurrency:   concurrency,
		logger:        logger,
	}
}

// Start runs a tick immediately and then every interval until ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Scheduled ingestion failed", "error", err)
	}
}

// RunOnce runs all active organizations and waits for them. Organizations
// whose previous run is still going are skipped. Per-organization failures
// are logged and never stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	orgs, err := s.organizations.ListActive(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, org := range orgs {
		id := org.ID
		g.Go(func() error {
			created, err := s.runner.Run(gctx, id)
			switch {
			case errors.Is(err, entity.ErrRunInProgress):
				s.logger.Debug("Organization run still in progress, skipped", "organizationID", id)
			case err != nil:
				s.logger.Error("Organization run failed", "organizationID", id, "error", err)
			case created > 0:
				s.logger.Info("Organization run created reservations", "organizationID", id, "created", created)
			}
			return nil
		})
	}
	return g.Wait()
}
