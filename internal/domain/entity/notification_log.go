package entity

import "time"

// IntegrationChannel identifies a downstream integration
type IntegrationChannel string

const (
	ChannelEmail    IntegrationChannel = "email"
	ChannelWhatsApp IntegrationChannel = "whatsapp"
	ChannelDoor     IntegrationChannel = "door"
	ChannelPayment  IntegrationChannel = "payment"
)

// NotificationLog is one downstream attempt. Rows are append-only.
type NotificationLog struct {
	ID            uint               `gorm:"primaryKey" json:"id"`
	ReservationID uint               `gorm:"not null;index" json:"reservationId"`
	Channel       IntegrationChannel `gorm:"size:16;not null;index" json:"channel"`
	Success       bool               `gorm:"not null" json:"success"`
	ErrorMessage  string             `gorm:"type:text" json:"errorMessage,omitempty"`
	Detail        string             `gorm:"size:512" json:"detail,omitempty"`
	StartedAt     time.Time          `json:"startedAt"`
	CreatedAt     time.Time          `json:"createdAt"`
}

// RetryCandidate is a reservation whose channel has failed attempts and no success.
type RetryCandidate struct {
	ReservationID uint
	Channel       IntegrationChannel
	Failures      int
}
