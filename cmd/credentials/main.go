// credentials encrypts an integration settings file and stores it as the
// credential blob of an organization or one of its branches.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/infrastructure/config"
	"hostel-ingest-service/internal/infrastructure/persistence"
	"hostel-ingest-service/internal/interface/repository"
	"hostel-ingest-service/internal/usecase"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var orgID, branchID uint
	var file string

	flagSet := pflag.NewFlagSet("credentials", pflag.ContinueOnError)
	flagSet.UintVar(&orgID, "org", 0, "organization owning the credentials")
	flagSet.UintVar(&branchID, "branch", 0, "branch the credentials apply to (organization level when omitted)")
	flagSet.StringVarP(&file, "file", "f", "", "YAML or JSON settings file")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if orgID == 0 || file == "" {
		return fmt.Errorf("--org and --file are required")
	}

	plaintext, err := loadSettings(file)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewLogger(cfg.LogLevel)

	v, err := vault.New(cfg.EncryptionKey, cfg.EncryptionSalt, log)
	if err != nil {
		return err
	}
	db, err := persistence.NewPostgresDB(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if err := persistence.Migrate(db); err != nil {
		return err
	}

	var branch *uint
	if branchID != 0 {
		branch = &branchID
	}
	svc := usecase.NewCredentialService(repository.NewGormCredentialRepository(db), v, log)
	if err := svc.Seal(context.Background(), orgID, branch, plaintext); err != nil {
		return err
	}
	log.Info("Credentials stored", "organizationID", orgID, "branchID", branchID)
	return nil
}

// loadSettings reads a settings file and returns it as canonical JSON.
// Sections are validated before anything is written.
func loadSettings(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var settings entity.IntegrationSettings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		decoded, err := entity.DecodeSettings(data)
		if err != nil {
			return nil, err
		}
		settings = *decoded
	default:
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := validateSections(&settings); err != nil {
		return nil, err
	}
	return json.Marshal(settings)
}

func validateSections(s *entity.IntegrationSettings) error {
	const scope = "settings file"
	if s.EmailReading != nil {
		if _, err := s.Mail(scope); err != nil {
			return err
		}
	}
	if s.DoorSystem != nil {
		if _, err := s.Door(scope); err != nil {
			return err
		}
	}
	if s.Payment != nil {
		if _, err := s.PaymentGateway(scope); err != nil {
			return err
		}
	}
	if s.Messaging != nil {
		if _, err := s.MessagingGateway(scope); err != nil {
			return err
		}
	}
	return nil
}
