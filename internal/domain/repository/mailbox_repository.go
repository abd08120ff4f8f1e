package repository

import (
	"context"

	"hostel-ingest-service/internal/domain/entity"
)

// MailboxConnector opens a mailbox session for one organization
type MailboxConnector interface {
	// Connect fails with *entity.ConnectionError on network or
	// authentication failure and leaves no session behind.
	Connect(ctx context.Context, cfg *entity.EmailReadingConfig) (MailboxSession, error)
}

// MailboxSession is an authenticated mailbox
type MailboxSession interface {
	// FetchCandidateMessages returns a lazy, finite, single-use stream of
	// unread messages passing the filters.
	FetchCandidateMessages(ctx context.Context, filters entity.MessageFilters) (MessageStream, error)
	// MarkProcessed flags the message so later fetches skip it.
	MarkProcessed(ctx context.Context, messageID string) error
	Close() error
}

// MessageStream yields messages until io.EOF
type MessageStream interface {
	Next(ctx context.Context) (*entity.RawMessage, error)
}
