package repository

import (
	"context"

	"hostel-ingest-service/internal/domain/entity"
)

// OrganizationRepository reads organizations
type OrganizationRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.Organization, error)
	ListActive(ctx context.Context) ([]*entity.Organization, error)
}

// BranchRepository reads branches
type BranchRepository interface {
	FindByID(ctx context.Context, id uint) (*entity.Branch, error)
	ListByOrganization(ctx context.Context, organizationID uint) ([]*entity.Branch, error)
}

// CredentialRepository stores encrypted credential blobs. A nil branchID
// addresses the organization-level blob.
type CredentialRepository interface {
	Find(ctx context.Context, organizationID uint, branchID *uint) (*entity.BranchCredentials, error)
	Save(ctx context.Context, credentials *entity.BranchCredentials) error
}
