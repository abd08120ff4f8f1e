package entity

import (
	"time"
)

// Message log outcomes
const (
	MessageStatusReceived  = "RECEIVED"
	MessageStatusCompleted = "COMPLETED"
	MessageStatusDuplicate = "DUPLICATE"
	MessageStatusCancelled = "CANCELLED"
	MessageStatusSkipped   = "SKIPPED"
	MessageStatusFailed    = "FAILED"
)

// MessageLog is the audit record of one fetched mailbox message
type MessageLog struct {
	OrganizationID uint                   `bson:"organizationId"`
	MessageID      string                 `bson:"messageId"`
	From           string                 `bson:"from"`
	Subject        string                 `bson:"subject"`
	ReceivedAt     time.Time              `bson:"receivedAt"`
	FetchedAt      time.Time              `bson:"fetchedAt"`
	ProcessedAt    time.Time              `bson:"processedAt,omitempty"`
	ProcessStatus  string                 `bson:"processStatus"`
	Channel        string                 `bson:"channel,omitempty"`
	ErrorDetail    string                 `bson:"errorDetail,omitempty"`
	ExtractedData  map[string]interface{} `bson:"extractedData,omitempty"`
	Attempts       int                    `bson:"attempts"`
}
