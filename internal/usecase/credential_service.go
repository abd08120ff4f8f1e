package usecase

import (
	"context"
	"fmt"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
	"hostel-ingest-service/pkg/vault"
)

// CredentialService resolves the effective integration settings of an
// organization or branch: the organization settings column, overlaid by the
// decrypted organization credentials, overlaid by the branch credentials.
type CredentialService struct {
	credentials repository.CredentialRepository
	vault       *vault.Vault
	logger      logger.Logger
}

// NewCredentialService creates a new credential service
func NewCredentialService(credentials repository.CredentialRepository, v *vault.Vault, logger logger.Logger) *CredentialService {
	return &CredentialService{
		credentials: credentials,
		vault:       v,
		logger:      logger,
	}
}

// OrganizationSettings returns the organization-level settings. The settings
// column is always returned when it decodes; an error from the credential
// blob is returned alongside it so the caller can run without those secrets.
func (s *CredentialService) OrganizationSettings(ctx context.Context, org *entity.Organization) (*entity.IntegrationSettings, error) {
	base, err := entity.DecodeSettings(org.Settings)
	if err != nil {
		return &entity.IntegrationSettings{}, &entity.ConfigurationError{
			Integration: "settings",
			Scope:       orgScope(org.ID),
			Problems:    []string{err.Error()},
		}
	}

	creds, err := s.load(ctx, org.ID, nil)
	if err != nil {
		return base, err
	}
	return base.Overlay(creds), nil
}

// BranchSettings overlays the branch credentials on the organization
// settings. A branch blob that cannot be decrypted fails the whole branch.
func (s *CredentialService) BranchSettings(ctx context.Context, orgSettings *entity.IntegrationSettings, organizationID, branchID uint) (*entity.IntegrationSettings, error) {
	creds, err := s.load(ctx, organizationID, &branchID)
	if err != nil {
		return nil, err
	}
	return orgSettings.Overlay(creds), nil
}

// Seal encrypts a plaintext credential blob and stores it for the scope.
func (s *CredentialService) Seal(ctx context.Context, organizationID uint, branchID *uint, plaintext []byte) error {
	if _, err := entity.DecodeSettings(plaintext); err != nil {
		return err
	}
	sealed, err := s.vault.Encrypt(string(plaintext))
	if err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	return s.credentials.Save(ctx, &entity.BranchCredentials{
		OrganizationID: organizationID,
		BranchID:       branchID,
		Data:           sealed,
	})
}

func (s *CredentialService) load(ctx context.Context, organizationID uint, branchID *uint) (*entity.IntegrationSettings, error) {
	row, err := s.credentials.Find(ctx, organizationID, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	if row == nil {
		return nil, nil
	}

	plain, err := s.vault.Decrypt(row.Data)
	if err != nil {
		return nil, err
	}
	settings, err := entity.DecodeSettings([]byte(plain))
	if err != nil {
		return nil, &vault.DecryptionError{Reason: "credential blob is not valid JSON", Err: err}
	}
	return settings, nil
}

func orgScope(id uint) string {
	return fmt.Sprintf("organization %d", id)
}

func branchScope(id uint) string {
	return fmt.Sprintf("branch %d", id)
}
