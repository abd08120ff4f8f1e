package repository

import (
	"context"
	"errors"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormOrganizationRepository implements the OrganizationRepository interface
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewGormOrganizationRepository creates a new GORM organization repository
func NewGormOrganizationRepository(db *gorm.DB) repository.OrganizationRepository {
	return &GormOrganizationRepository{
		db: db,
	}
}

// FindByID finds an organization by id
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id uint) (*entity.Organization, error) {
	var org entity.Organization
	result := r.db.WithContext(ctx).First(&org, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &org, nil
}

// ListActive lists organizations that should be ingested
func (r *GormOrganizationRepository) ListActive(ctx context.Context) ([]*entity.Organization, error) {
	var orgs []*entity.Organization
	result := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&orgs)
	if result.Error != nil {
		return nil, result.Error
	}
	return orgs, nil
}

// GormBranchRepository implements the BranchRepository interface
type GormBranchRepository struct {
	db *gorm.DB
}

// NewGormBranchRepository creates a new GORM branch repository
func NewGormBranchRepository(db *gorm.DB) repository.BranchRepository {
	return &GormBranchRepository{
		db: db,
	}
}

// FindByID finds a branch by id
func (r *GormBranchRepository) FindByID(ctx context.Context, id uint) (*entity.Branch, error) {
	var branch entity.Branch
	result := r.db.WithContext(ctx).First(&branch, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, entity.ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &branch, nil
}

// ListByOrganization lists active branches ordered by id
func (r *GormBranchRepository) ListByOrganization(ctx context.Context, organizationID uint) ([]*entity.Branch, error) {
	var branches []*entity.Branch
	result := r.db.WithContext(ctx).
		Where("organization_id = ? AND active = ?", organizationID, true).
		Order("id").
		Find(&branches)

	if result.Error != nil {
		return nil, result.Error
	}
	return branches, nil
}
