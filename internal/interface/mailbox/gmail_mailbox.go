package mailbox

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/internal/infrastructure/oauth"
	"hostel-ingest-service/pkg/logger"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const gmailUser = "me"

// GmailConnector opens Gmail API sessions. The mailbox password holds the
// OAuth refresh token; the client id and secret are process-wide.
type GmailConnector struct {
	clientID     string
	clientSecret string
	logger       logger.Logger
	options      []option.ClientOption
}

// NewGmailConnector creates a connector. Extra client options are appended
// after the token source.
func NewGmailConnector(clientID, clientSecret string, logger logger.Logger, opts ...option.ClientOption) *GmailConnector {
	return &GmailConnector{
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger,
		options:      opts,
	}
}

// Connect builds the Gmail client and verifies the token by reading the profile
func (c *GmailConnector) Connect(ctx context.Context, cfg *entity.EmailReadingConfig) (repository.MailboxSession, error) {
	tokenSource := oauth.NewGmailOAuth(c.clientID, c.clientSecret, cfg.Password, c.logger).GetTokenSource(ctx)
	opts := append([]option.ClientOption{option.WithTokenSource(tokenSource)}, c.options...)

	service, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, &entity.ConnectionError{Host: "gmail:" + cfg.User, Err: err}
	}
	if _, err := service.Users.GetProfile(gmailUser).Context(ctx).Do(); err != nil {
		return nil, &entity.ConnectionError{Host: "gmail:" + cfg.User, Err: err}
	}

	return &gmailSession{
		service:         service,
		logger:          c.logger,
		user:            cfg.User,
		folder:          cfg.Folder,
		processedFolder: cfg.ProcessedFolder,
		ids:             make(map[string]string),
	}, nil
}

type gmailSession struct {
	service         *gmail.Service
	logger          logger.Logger
	user            string
	folder          string
	processedFolder string
	processedLabel  string
	ids             map[string]string
}

// query builds the Gmail search for unread candidates
func (s *gmailSession) query(filters entity.MessageFilters) string {
	parts := []string{"is:unread"}
	if s.folder != "" && !strings.EqualFold(s.folder, "INBOX") {
		parts = append(parts, fmt.Sprintf("label:%q", s.folder))
	} else {
		parts = append(parts, "in:inbox")
	}
	if terms := searchTerms("from", filters.FromAddresses); terms != "" {
		parts = append(parts, terms)
	}
	if terms := searchTerms("subject", filters.SubjectKeywords); terms != "" {
		parts = append(parts, terms)
	}
	return strings.Join(parts, " ")
}

func searchTerms(op string, values []string) string {
	var terms []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			terms = append(terms, fmt.Sprintf("%s:%q", op, v))
		}
	}
	if len(terms) == 0 {
		return ""
	}
	return "{" + strings.Join(terms, " ") + "}"
}

// FetchCandidateMessages lists matching unread message ids; the stream
// downloads each message when asked for it
func (s *gmailSession) FetchCandidateMessages(ctx context.Context, filters entity.MessageFilters) (repository.MessageStream, error) {
	var ids []string
	err := s.service.Users.Messages.List(gmailUser).Q(s.query(filters)).Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	// oldest first, the API lists newest first
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return &gmailStream{session: s, pending: ids, filters: filters}, nil
}

// MarkProcessed clears UNREAD and applies the processed label
func (s *gmailSession) MarkProcessed(ctx context.Context, messageID string) error {
	gmailID, ok := s.ids[messageID]
	if !ok {
		return fmt.Errorf("message %s was not fetched in this session", messageID)
	}

	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{"UNREAD"}}
	if s.processedFolder != "" {
		labelID, err := s.ensureLabel(ctx, s.processedFolder)
		if err != nil {
			return err
		}
		req.AddLabelIds = []string{labelID}
	}

	if _, err := s.service.Users.Messages.Modify(gmailUser, gmailID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to modify message %s: %w", gmailID, err)
	}
	return nil
}

func (s *gmailSession) ensureLabel(ctx context.Context, name string) (string, error) {
	if s.processedLabel != "" {
		return s.processedLabel, nil
	}

	labels, err := s.service.Users.Labels.List(gmailUser).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, l := range labels.Labels {
		if strings.EqualFold(l.Name, name) {
			s.processedLabel = l.Id
			return l.Id, nil
		}
	}

	created, err := s.service.Users.Labels.Create(gmailUser, &gmail.Label{
		Name:                  name,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %s: %w", name, err)
	}
	s.logger.Info("Created Gmail label", "label", name, "labelId", created.Id)
	s.processedLabel = created.Id
	return created.Id, nil
}

func (s *gmailSession) Close() error {
	return nil
}

type gmailStream struct {
	session *gmailSession
	pending []string
	filters entity.MessageFilters
}

func (st *gmailStream) Next(ctx context.Context) (*entity.RawMessage, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(st.pending) == 0 {
			return nil, io.EOF
		}
		id := st.pending[0]
		st.pending = st.pending[1:]

		msg, err := st.session.service.Users.Messages.Get(gmailUser, id).Format("full").Context(ctx).Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && (apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden) {
				return nil, &entity.ConnectionError{Host: "gmail:" + st.session.user, Err: err}
			}
			return nil, &entity.MessageError{ID: "gmail:" + id, Err: fmt.Errorf("failed to get message %s: %w", id, err)}
		}
		raw := convertMessage(msg)
		// search operators are fuzzy, the filters are authoritative
		if !st.filters.Matches(raw.From, raw.Subject) {
			continue
		}
		st.session.ids[raw.ID] = msg.Id
		return raw, nil
	}
}

// convertMessage converts a Gmail message to a RawMessage
func convertMessage(msg *gmail.Message) *entity.RawMessage {
	raw := &entity.RawMessage{
		ID:   "gmail:" + msg.Id,
		Date: time.UnixMilli(msg.InternalDate),
	}
	if msg.Payload == nil {
		return raw
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "from":
			raw.From = header.Value
		case "subject":
			raw.Subject = header.Value
		case "message-id":
			if v := strings.TrimSpace(header.Value); v != "" {
				raw.ID = v
			}
		}
	}

	walkParts(msg.Payload, raw)
	return raw
}

func walkParts(part *gmail.MessagePart, raw *entity.RawMessage) {
	if part.Filename == "" && part.Body != nil && part.Body.Data != "" {
		switch part.MimeType {
		case "text/plain":
			if raw.Text == "" {
				raw.Text = decodeBody(part.Body.Data)
			}
		case "text/html":
			if raw.HTML == "" {
				raw.HTML = decodeBody(part.Body.Data)
			}
		}
	}
	for _, p := range part.Parts {
		walkParts(p, raw)
	}
}

func decodeBody(data string) string {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	return ""
}
