package mailbox

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/pkg/logger"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookingMessage = "From: Booking.com <noreply@booking.com>\r\n" +
	"To: reservas@hostal.example\r\n" +
	"Subject: Nueva reserva\r\n" +
	"Date: Mon, 17 Nov 2025 10:00:00 +0000\r\n" +
	"Message-ID: <bk1@booking.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Nombre del huésped: Juan Pérez\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Nombre del huésped: Juan Pérez</p>\r\n" +
	"--XYZ--\r\n"

const otherMessage = "From: friend@example.com\r\n" +
	"Subject: Hola\r\n" +
	"Date: Mon, 17 Nov 2025 11:00:00 +0000\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n" +
	"Nothing to see\r\n"

func startIMAPServer(t *testing.T) *entity.EmailReadingConfig {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.New(memory.New())
	s.AllowInsecureAuth = true
	go s.Serve(l)
	t.Cleanup(func() { s.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	cfg := &entity.EmailReadingConfig{Host: host, Port: p, User: "username", Password: "password"}

	c, err := client.Dial(cfg.Address())
	require.NoError(t, err)
	defer c.Logout()
	require.NoError(t, c.Login(cfg.User, cfg.Password))
	for _, msg := range []string{bookingMessage, otherMessage} {
		require.NoError(t, c.Append("INBOX", nil, time.Now(), bytes.NewBufferString(msg)))
	}
	return cfg
}

func TestIMAPSession_FetchFilterAndMark(t *testing.T) {
	ctx := context.Background()
	cfg := startIMAPServer(t)
	connector := NewIMAPConnector(logger.NewNop(), 5*time.Second)

	session, err := connector.Connect(ctx, cfg)
	require.NoError(t, err)
	defer session.Close()

	filters := entity.MessageFilters{FromAddresses: []string{"booking.com"}}
	stream, err := session.FetchCandidateMessages(ctx, filters)
	require.NoError(t, err)

	msg, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<bk1@booking.com>", msg.ID)
	assert.Equal(t, "Nueva reserva", msg.Subject)
	assert.Contains(t, msg.From, "noreply@booking.com")
	assert.Contains(t, msg.Text, "Juan Pérez")
	assert.Contains(t, msg.HTML, "<p>Nombre del huésped")

	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	// still unread until marked
	again, err := session.FetchCandidateMessages(ctx, filters)
	require.NoError(t, err)
	msg, err = again.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, session.MarkProcessed(ctx, msg.ID))

	after, err := session.FetchCandidateMessages(ctx, filters)
	require.NoError(t, err)
	_, err = after.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	everything, err := session.FetchCandidateMessages(ctx, entity.MessageFilters{})
	require.NoError(t, err)
	var subjects []string
	for {
		m, err := everything.Next(ctx)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		subjects = append(subjects, m.Subject)
		if m.Subject == "Hola" {
			assert.Contains(t, m.ID, "uid:")
		}
	}
	assert.Contains(t, subjects, "Hola")
	assert.NotContains(t, subjects, "Nueva reserva")
}

func TestIMAPSession_MarkUnknownMessage(t *testing.T) {
	ctx := context.Background()
	cfg := startIMAPServer(t)

	session, err := NewIMAPConnector(logger.NewNop(), 5*time.Second).Connect(ctx, cfg)
	require.NoError(t, err)
	defer session.Close()

	assert.Error(t, session.MarkProcessed(ctx, "<never-fetched@x>"))
}

func TestIMAPConnector_ConnectionErrors(t *testing.T) {
	ctx := context.Background()
	cfg := startIMAPServer(t)
	connector := NewIMAPConnector(logger.NewNop(), 2*time.Second)

	bad := *cfg
	bad.Password = "wrong"
	_, err := connector.Connect(ctx, &bad)
	var connErr *entity.ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, cfg.Address(), connErr.Host)

	missingFolder := *cfg
	missingFolder.Folder = "Reservas"
	_, err = connector.Connect(ctx, &missingFolder)
	assert.True(t, errors.As(err, &connErr))

	closed := &entity.EmailReadingConfig{Host: "127.0.0.1", Port: 1, User: "u", Password: "p"}
	_, err = connector.Connect(ctx, closed)
	assert.True(t, errors.As(err, &connErr))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = connector.Connect(cancelled, cfg)
	assert.True(t, errors.As(err, &connErr))
}

func TestIMAPStream_StopsOnCancelledContext(t *testing.T) {
	ctx := context.Background()
	cfg := startIMAPServer(t)

	session, err := NewIMAPConnector(logger.NewNop(), 5*time.Second).Connect(ctx, cfg)
	require.NoError(t, err)
	defer session.Close()

	stream, err := session.FetchCandidateMessages(ctx, entity.MessageFilters{})
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = stream.Next(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnector_UnknownProvider(t *testing.T) {
	c := NewConnector(NewIMAPConnector(logger.NewNop(), time.Second), nil)

	_, err := c.Connect(context.Background(), &entity.EmailReadingConfig{Provider: entity.MailProviderGmail})
	var cfgErr *entity.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestReadParts_Tolerance(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantHTML string
		wantErr  bool
	}{
		{
			name: "unknown transfer encoding keeps raw body",
			raw: "Subject: Nueva reserva\r\n" +
				"Content-Type: text/plain\r\n" +
				"Content-Transfer-Encoding: x-uuencode\r\n" +
				"\r\n" +
				"Número de reserva: BK7\r\n",
			wantText: "Número de reserva: BK7\r\n",
		},
		{
			name: "unknown charset keeps raw body",
			raw: "Subject: Nueva reserva\r\n" +
				"Content-Type: text/plain; charset=x-made-up\r\n" +
				"\r\n" +
				"Reserva BK8\r\n",
			wantText: "Reserva BK8\r\n",
		},
		{
			name: "unknown encoding in one part keeps the others",
			raw: "Content-Type: multipart/alternative; boundary=B\r\n" +
				"\r\n" +
				"--B\r\n" +
				"Content-Type: text/plain\r\n" +
				"Content-Transfer-Encoding: x-uuencode\r\n" +
				"\r\n" +
				"plain body\r\n" +
				"--B\r\n" +
				"Content-Type: text/html\r\n" +
				"\r\n" +
				"<p>html body</p>\r\n" +
				"--B--\r\n",
			wantText: "plain body",
			wantHTML: "<p>html body</p>",
		},
		{
			name: "truncated multipart keeps text read so far",
			raw: "Content-Type: multipart/alternative; boundary=B\r\n" +
				"\r\n" +
				"--B\r\n" +
				"Content-Type: text/plain\r\n" +
				"\r\n" +
				"Nombre del huésped: Ana\r\n" +
				"--B\r\n" +
				"Content-Type: text/html\r\n",
			wantText: "Nombre del huésped: Ana",
		},
		{
			name:    "missing header block",
			raw:     "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &entity.RawMessage{}
			err := readParts(bytes.NewReader([]byte(tt.raw)), raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, raw.Text)
			assert.Equal(t, tt.wantHTML, raw.HTML)
		})
	}
}
