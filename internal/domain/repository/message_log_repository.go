package repository

import (
	"context"

	"hostel-ingest-service/internal/domain/entity"
)

// MessageLogRepository is the audit trail of fetched mailbox messages
type MessageLogRepository interface {
	Record(ctx context.Context, log *entity.MessageLog) error
	MarkOutcome(ctx context.Context, organizationID uint, messageID, status, channel, errorDetail string, extractedData map[string]interface{}) error
}
