package repository

import (
	"context"
	"errors"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormCredentialRepository implements the CredentialRepository interface
type GormCredentialRepository struct {
	db *gorm.DB
}

// NewGormCredentialRepository creates a new GORM credential repository
func NewGormCredentialRepository(db *gorm.DB) repository.CredentialRepository {
	return &GormCredentialRepository{
		db: db,
	}
}

func scope(db *gorm.DB, organizationID uint, branchID *uint) *gorm.DB {
	db = db.Where("organization_id = ?", organizationID)
	if branchID == nil {
		return db.Where("branch_id IS NULL")
	}
	return db.Where("branch_id = ?", *branchID)
}

// Find returns the credential blob of the scope, or nil when none is stored
func (r *GormCredentialRepository) Find(ctx context.Context, organizationID uint, branchID *uint) (*entity.BranchCredentials, error) {
	var creds entity.BranchCredentials
	result := scope(r.db.WithContext(ctx), organizationID, branchID).First(&creds)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &creds, nil
}

// Save inserts or replaces the blob of the scope. A NULL branch never
// conflicts in a unique index, so the upsert is done by hand.
func (r *GormCredentialRepository) Save(ctx context.Context, credentials *entity.BranchCredentials) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entity.BranchCredentials
		result := scope(tx, credentials.OrganizationID, credentials.BranchID).First(&existing)
		switch {
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			return tx.Create(credentials).Error
		case result.Error != nil:
			return result.Error
		}

		credentials.ID = existing.ID
		credentials.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Update("data", credentials.Data).Error
	})
}
