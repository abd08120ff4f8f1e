package entity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"unicode/utf8"
)

var (
	// ErrRunInProgress is returned when another run holds the organization lock.
	ErrRunInProgress = errors.New("ingestion run already in progress")
	// ErrDuplicateReservation signals a unique-key conflict on insert.
	ErrDuplicateReservation = errors.New("reservation already exists")
	// ErrBranchUnresolved means neither keywords nor a default branch matched.
	ErrBranchUnresolved = errors.New("branch could not be resolved")
	// ErrNotFound is returned by lookups with no result.
	ErrNotFound = errors.New("not found")
)

// ConfigurationError reports missing or invalid integration settings. It
// disables only the named integration for the given scope.
type ConfigurationError struct {
	Integration string
	Scope       string
	Problems    []string
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("%s configuration invalid", e.Integration)
	if e.Scope != "" {
		msg += " for " + e.Scope
	}
	if len(e.Problems) > 0 {
		msg += ": " + strings.Join(e.Problems, "; ")
	}
	return msg
}

// ConnectionError is a mailbox connection or authentication failure. It is
// the only error that aborts an organization run.
type ConnectionError struct {
	Host string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mailbox connection to %s failed: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MessageError is a failure to read one message from an open session. Only
// that message is skipped; it stays unprocessed in the mailbox.
type MessageError struct {
	ID      string
	Subject string
	Err     error
}

func (e *MessageError) Error() string {
	return fmt.Sprintf("message %s unreadable: %v", e.ID, e.Err)
}

func (e *MessageError) Unwrap() error { return e.Err }

// IntegrationError is a failed call to an external API.
type IntegrationError struct {
	Channel    IntegrationChannel
	StatusCode int
	Transient  bool
	Err        error
}

func (e *IntegrationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s integration returned status %d: %v", e.Channel, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s integration failed: %v", e.Channel, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// NewHTTPError classifies a non-2xx response: 5xx, 408 and 429 are transient.
func NewHTTPError(channel IntegrationChannel, status int, body string) *IntegrationError {
	transient := status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
	body = Truncate(body, 512)
	return &IntegrationError{
		Channel:    channel,
		StatusCode: status,
		Transient:  transient,
		Err:        errors.New(strings.TrimSpace(body)),
	}
}

// Truncate cuts s to at most max bytes on a rune boundary. Invalid UTF-8
// sequences are replaced so the result can be stored in a text column.
func Truncate(s string, max int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// NewTransportError wraps a network-level failure, always transient.
func NewTransportError(channel IntegrationChannel, err error) *IntegrationError {
	return &IntegrationError{Channel: channel, Transient: true, Err: err}
}

// IsTransient reports whether err is worth retrying on the next run.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ie *IntegrationError
	if errors.As(err, &ie) {
		return ie.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
