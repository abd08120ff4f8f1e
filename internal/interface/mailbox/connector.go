package mailbox

import (
	"context"
	"fmt"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
)

// Connector dispatches to the connector of the configured provider
type Connector struct {
	providers map[string]repository.MailboxConnector
}

// NewConnector registers the IMAP and Gmail connectors. A nil gmail
// connector leaves the provider unsupported.
func NewConnector(imap *IMAPConnector, gmail *GmailConnector) *Connector {
	providers := map[string]repository.MailboxConnector{
		entity.MailProviderIMAP: imap,
	}
	if gmail != nil {
		providers[entity.MailProviderGmail] = gmail
	}
	return &Connector{providers: providers}
}

// Connect opens a session with the provider named in cfg, IMAP by default
func (c *Connector) Connect(ctx context.Context, cfg *entity.EmailReadingConfig) (repository.MailboxSession, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = entity.MailProviderIMAP
	}
	conn, ok := c.providers[provider]
	if !ok {
		return nil, &entity.ConfigurationError{
			Integration: entity.IntegrationMail,
			Problems:    []string{fmt.Sprintf("provider %q is not available", provider)},
		}
	}
	return conn.Connect(ctx, cfg)
}
