package entity

import (
	"net/mail"
	"strings"
	"time"
)

// RawMessage is a mailbox message as fetched, before parsing
type RawMessage struct {
	ID      string
	From    string
	Subject string
	Date    time.Time
	Text    string
	HTML    string
}

// MessageFilters restricts which mailbox messages are candidates. Empty lists
// match everything.
type MessageFilters struct {
	FromAddresses   []string
	SubjectKeywords []string
}

// Matches reports whether a message with the given sender and subject passes
// the filters. From entries match as case-insensitive substrings of the
// sender address, so "booking.com" matches "noreply@mailer.booking.com".
func (f MessageFilters) Matches(from, subject string) bool {
	return f.matchesFrom(from) && f.matchesSubject(subject)
}

func (f MessageFilters) matchesFrom(from string) bool {
	if len(f.FromAddresses) == 0 {
		return true
	}
	sender := strings.ToLower(SenderAddress(from))
	for _, want := range f.FromAddresses {
		want = strings.ToLower(strings.TrimSpace(want))
		if want != "" && strings.Contains(sender, want) {
			return true
		}
	}
	return false
}

func (f MessageFilters) matchesSubject(subject string) bool {
	if len(f.SubjectKeywords) == 0 {
		return true
	}
	subject = strings.ToLower(subject)
	for _, kw := range f.SubjectKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(subject, kw) {
			return true
		}
	}
	return false
}

// SenderAddress extracts the bare address from a From header value.
func SenderAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return strings.TrimSpace(from)
	}
	return addr.Address
}

// ReservationDraft is the parser's transient output for one unit of a
// channel notification. It is never persisted as-is.
type ReservationDraft struct {
	GuestName              string
	GuestEmail             string
	GuestPhone             string
	CheckIn                *time.Time
	CheckOut               *time.Time
	RoomDescription        string
	ChannelReservationCode string
	Channel                string
	AmountCents            int64
	Currency               string
	SourceMessageID        string
	SourceUnit             int
	Cancelled              bool
}
