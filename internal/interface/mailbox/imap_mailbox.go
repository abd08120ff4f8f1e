package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	netmail "net/mail"
	"strconv"
	"strings"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// IMAPConnector opens IMAP mailbox sessions
type IMAPConnector struct {
	logger  logger.Logger
	timeout time.Duration
}

// NewIMAPConnector creates a connector using timeout for dialing and commands
func NewIMAPConnector(logger logger.Logger, timeout time.Duration) *IMAPConnector {
	return &IMAPConnector{logger: logger, timeout: timeout}
}

// Connect dials, logs in and selects the configured folder
func (c *IMAPConnector) Connect(ctx context.Context, cfg *entity.EmailReadingConfig) (repository.MailboxSession, error) {
	addr := cfg.Address()
	if err := ctx.Err(); err != nil {
		return nil, &entity.ConnectionError{Host: addr, Err: err}
	}

	dialer := &net.Dialer{Timeout: c.timeout}
	var (
		cl  *client.Client
		err error
	)
	if cfg.Secure {
		cl, err = client.DialWithDialerTLS(dialer, addr, &tls.Config{ServerName: cfg.Host})
	} else {
		cl, err = client.DialWithDialer(dialer, addr)
	}
	if err != nil {
		return nil, &entity.ConnectionError{Host: addr, Err: err}
	}
	cl.Timeout = c.timeout

	if err := cl.Login(cfg.User, cfg.Password); err != nil {
		cl.Logout()
		return nil, &entity.ConnectionError{Host: addr, Err: fmt.Errorf("login: %w", err)}
	}
	if _, err := cl.Select(cfg.MailboxFolder(), false); err != nil {
		cl.Logout()
		return nil, &entity.ConnectionError{Host: addr, Err: fmt.Errorf("select %s: %w", cfg.MailboxFolder(), err)}
	}

	c.logger.Debug("IMAP session opened", "host", addr, "folder", cfg.MailboxFolder())
	return &imapSession{
		client:          cl,
		logger:          c.logger,
		host:            addr,
		processedFolder: cfg.ProcessedFolder,
		uids:            make(map[string]uint32),
	}, nil
}

type imapSession struct {
	client          *client.Client
	logger          logger.Logger
	host            string
	processedFolder string
	uids            map[string]uint32
}

type envelope struct {
	uid     uint32
	id      string
	from    string
	subject string
	date    time.Time
}

// FetchCandidateMessages searches UNSEEN messages and filters them on their
// envelopes. Bodies are fetched lazily by the stream.
func (s *imapSession) FetchCandidateMessages(ctx context.Context, filters entity.MessageFilters) (repository.MessageStream, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search unseen messages: %w", err)
	}
	if len(uids) == 0 {
		return &imapStream{session: s}, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	messages := make(chan *imap.Message, 16)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope}, messages)
	}()

	var candidates []envelope
	for msg := range messages {
		if msg.Envelope == nil {
			continue
		}
		env := envelope{
			uid:     msg.Uid,
			id:      strings.TrimSpace(msg.Envelope.MessageId),
			from:    formatAddress(msg.Envelope.From),
			subject: msg.Envelope.Subject,
			date:    msg.Envelope.Date,
		}
		if env.id == "" {
			env.id = "uid:" + strconv.FormatUint(uint64(msg.Uid), 10)
		}
		if !filters.Matches(env.from, env.subject) {
			continue
		}
		candidates = append(candidates, env)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch envelopes: %w", err)
	}

	s.logger.Debug("IMAP candidates selected", "unseen", len(uids), "candidates", len(candidates))
	return &imapStream{session: s, pending: candidates}, nil
}

func formatAddress(addrs []*imap.Address) string {
	if len(addrs) == 0 {
		return ""
	}
	a := netmail.Address{Name: addrs[0].PersonalName, Address: addrs[0].Address()}
	return a.String()
}

// MarkProcessed sets \Seen and moves the message when a processed folder is configured
func (s *imapSession) MarkProcessed(ctx context.Context, messageID string) error {
	uid, ok := s.uids[messageID]
	if !ok {
		return fmt.Errorf("message %s was not fetched in this session", messageID)
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	flags := []interface{}{imap.SeenFlag}
	if err := s.client.UidStore(seqset, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
		return fmt.Errorf("failed to flag message %s: %w", messageID, err)
	}
	if s.processedFolder != "" {
		if err := s.client.UidMove(seqset, s.processedFolder); err != nil {
			return fmt.Errorf("failed to move message %s to %s: %w", messageID, s.processedFolder, err)
		}
	}
	return nil
}

func (s *imapSession) Close() error {
	return s.client.Logout()
}

type imapStream struct {
	session *imapSession
	pending []envelope
}

// Next fetches the next candidate's body without setting \Seen
func (st *imapStream) Next(ctx context.Context) (*entity.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(st.pending) == 0 {
		return nil, io.EOF
	}
	env := st.pending[0]
	st.pending = st.pending[1:]

	raw, err := st.session.fetchBody(env)
	if err != nil {
		if st.session.client.State() == imap.LogoutState {
			return nil, &entity.ConnectionError{Host: st.session.host, Err: err}
		}
		return nil, &entity.MessageError{ID: env.id, Subject: env.subject, Err: err}
	}
	st.session.uids[raw.ID] = env.uid
	return raw, nil
}

func (s *imapSession) fetchBody(env envelope) (*entity.RawMessage, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(env.uid)
	section := &imap.BodySectionName{Peek: true}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var body imap.Literal
	for msg := range messages {
		body = msg.GetBody(section)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %d: %w", env.uid, err)
	}
	if body == nil {
		return nil, fmt.Errorf("server returned no body for message %d", env.uid)
	}

	raw := &entity.RawMessage{
		ID:      env.id,
		From:    env.from,
		Subject: env.subject,
		Date:    env.date,
	}
	if err := readParts(body, raw); err != nil {
		return nil, fmt.Errorf("failed to parse message %d: %w", env.uid, err)
	}
	return raw, nil
}

// readParts fills Text and HTML from the first inline part of each type.
// Parts with an unknown transfer encoding or charset are kept undecoded. A
// broken structure is only an error when no text was read before it.
func readParts(r io.Reader, raw *entity.RawMessage) error {
	e, err := message.Read(r)
	if e == nil {
		return err
	}

	walkErr := e.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil && !message.IsUnknownEncoding(err) && !message.IsUnknownCharset(err) {
			return err
		}
		ct, _, _ := part.Header.ContentType()
		if strings.HasPrefix(ct, "multipart/") {
			return nil
		}
		if disp, _, _ := part.Header.ContentDisposition(); disp == "attachment" {
			return nil
		}

		switch {
		case ct == "text/html" && raw.HTML == "":
			b, err := io.ReadAll(part.Body)
			raw.HTML = string(b)
			return err
		case (ct == "text/plain" || ct == "") && raw.Text == "":
			b, err := io.ReadAll(part.Body)
			raw.Text = string(b)
			return err
		}
		return nil
	})
	if walkErr != nil && raw.Text == "" && raw.HTML == "" {
		return walkErr
	}
	return nil
}
