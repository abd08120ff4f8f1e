package entity

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Organization owns branches, a mailbox and integration settings
type Organization struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	Active          bool           `gorm:"not null;default:true;index" json:"active"`
	DefaultBranchID *uint          `json:"defaultBranchId,omitempty"`
	Settings        datatypes.JSON `json:"settings,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Branch is a physical property of an organization
type Branch struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	OrganizationID uint           `gorm:"not null;index" json:"organizationId"`
	Name           string         `gorm:"size:255;not null" json:"name"`
	RoomKeywords   datatypes.JSON `json:"roomKeywords,omitempty"`
	Timezone       string         `gorm:"size:64" json:"timezone,omitempty"`
	Active         bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Keywords decodes RoomKeywords. Invalid JSON yields no keywords.
func (b *Branch) Keywords() []string {
	if len(b.RoomKeywords) == 0 {
		return nil
	}
	var keywords []string
	if err := json.Unmarshal(b.RoomKeywords, &keywords); err != nil {
		return nil
	}
	out := keywords[:0]
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Location returns the branch timezone, UTC when unset or unknown.
func (b *Branch) Location() *time.Location {
	if b == nil || b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BranchCredentials holds the encrypted credential blob of an organization
// (BranchID nil) or of one branch.
type BranchCredentials struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrganizationID uint      `gorm:"not null;uniqueIndex:idx_credentials_scope,priority:1" json:"organizationId"`
	BranchID       *uint     `gorm:"uniqueIndex:idx_credentials_scope,priority:2" json:"branchId,omitempty"`
	Data           string    `gorm:"type:text;not null" json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableName keeps the historical table name
func (BranchCredentials) TableName() string {
	return "branch_credentials"
}
