// Package parser turns OTA booking notification emails into reservation
// drafts. It is pure: no I/O, no clock, no logging.
package parser

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"hostel-ingest-service/internal/domain/entity"
)

const maxUnits = 20

// Input is one raw message as the parser sees it.
type Input struct {
	MessageID string
	From      string
	Subject   string
	Text      string
	HTML      string
}

var (
	cancelSubjectWords = []string{"cancelad", "cancelacion", "cancelled", "canceled",
		"cancellation", "anulad", "anulacion"}
	cancelBodyPhrases = []string{"reserva cancelada", "reserva ha sido cancelada",
		"ha sido cancelada", "ha cancelado", "reserva anulada", "has been cancelled",
		"has been canceled", "booking cancelled", "booking canceled",
		"reservation cancelled", "reservation canceled", "cancellation confirmed"}

	unitMultiplierRe = regexp.MustCompile(`^(\d{1,2})\s*[x×]\s*(.+)$`)
	codeTokenRe      = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9-]*`)
	phoneCharsRe     = regexp.MustCompile(`[^\d+]`)
	nameNoiseRe      = regexp.MustCompile(`\s*[(\[].*$`)
)

// Parser extracts reservation drafts using an ordered list of formats.
type Parser struct {
	formats []*Format
}

// New returns a parser with the built-in channel formats.
func New() *Parser {
	return &Parser{formats: DefaultFormats()}
}

// NewWithFormats returns a parser trying formats in the given order.
func NewWithFormats(formats ...*Format) *Parser {
	return &Parser{formats: formats}
}

// DetectChannel returns the channel whose signature matches in first.
func (p *Parser) DetectChannel(in Input) string {
	f, _ := p.route(in)
	if f == nil {
		return ""
	}
	return f.Channel
}

func (p *Parser) route(in Input) (*Format, []string) {
	bodies := candidateBodies(in)
	domain := ""
	if addr := entity.SenderAddress(in.From); strings.Contains(addr, "@") {
		domain = strings.ToLower(addr[strings.LastIndex(addr, "@")+1:])
	}
	probe := ""
	if len(bodies) > 0 {
		probe = fold(bodies[0])
	}
	return detect(p.formats, domain, fold(in.Subject), probe), bodies
}

// candidateBodies lists the renderings to try: HTML first when present
// since its table layout carries the labels, then the plain text part.
func candidateBodies(in Input) []string {
	var out []string
	if strings.TrimSpace(in.HTML) != "" {
		out = append(out, htmlToText(in.HTML))
	}
	if strings.TrimSpace(in.Text) != "" {
		out = append(out, cleanLines(in.Text))
	}
	return out
}

// Parse returns one draft per unit in the message, or nil when the message
// is not a reservation notification. Cancellations come back as drafts with
// Cancelled set and only the identifying fields filled.
func (p *Parser) Parse(in Input) []entity.ReservationDraft {
	f, bodies := p.route(in)
	if f == nil {
		return nil
	}
	for _, body := range bodies {
		if drafts := p.extract(f, in, body); len(drafts) > 0 {
			return drafts
		}
	}
	return nil
}

func (p *Parser) extract(f *Format, in Input, body string) []entity.ReservationDraft {
	idx := indexFields(body, f.knownLabels())

	code := p.code(f, idx, in.Subject, body)
	if isCancellation(in.Subject, body) {
		if code == "" {
			return nil
		}
		return []entity.ReservationDraft{{
			ChannelReservationCode: code,
			Channel:                f.Channel,
			GuestName:              guestName(f, idx, in.Subject),
			SourceMessageID:        in.MessageID,
			SourceUnit:             1,
			Cancelled:              true,
		}}
	}

	name := guestName(f, idx, in.Subject)
	checkIn, checkOut := stay(f, idx, in.Subject)
	if name == "" || (checkIn == nil && code == "") {
		return nil
	}

	base := entity.ReservationDraft{
		GuestName:              name,
		GuestEmail:             guestEmail(f, idx),
		GuestPhone:             guestPhone(f, idx),
		CheckIn:                checkIn,
		CheckOut:               checkOut,
		ChannelReservationCode: code,
		Channel:                f.Channel,
		SourceMessageID:        in.MessageID,
	}
	if v := idx.first(f.labels(fieldAmount)); v != "" {
		if cents, currency, ok := parseAmount(v); ok {
			base.AmountCents, base.Currency = cents, currency
		}
	}

	rooms := units(f, idx)
	drafts := make([]entity.ReservationDraft, 0, len(rooms))
	for i, room := range rooms {
		d := base
		d.RoomDescription = room
		d.SourceUnit = i + 1
		if i > 0 {
			d.AmountCents = 0
			if code != "" {
				d.ChannelReservationCode = code + "-" + strconv.Itoa(i+1)
			}
		}
		drafts = append(drafts, d)
	}
	return drafts
}

func isCancellation(subject, body string) bool {
	return containsAny(fold(subject), cancelSubjectWords) || containsAny(fold(body), cancelBodyPhrases)
}

func (p *Parser) code(f *Format, idx fieldIndex, subject, body string) string {
	if v := idx.first(f.labels(fieldCode)); v != "" {
		if tok := codeTokenRe.FindString(v); tok != "" {
			return tok
		}
	}
	if f.CodePattern != nil {
		for _, src := range []string{subject, body} {
			if m := f.CodePattern.FindStringSubmatch(src); m != nil {
				return m[len(m)-1]
			}
		}
	}
	return ""
}

func guestName(f *Format, idx fieldIndex, subject string) string {
	name := idx.first(f.labels(fieldGuest))
	if name == "" {
		for _, re := range f.SubjectGuest {
			if m := re.FindStringSubmatch(subject); m != nil {
				name = m[1]
				break
			}
		}
	}
	name = nameNoiseRe.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" || len(name) > 120 || strings.Contains(name, "@") {
		return ""
	}
	if !strings.ContainsFunc(name, isLetter) {
		return ""
	}
	return name
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 0x7f
}

func guestEmail(f *Format, idx fieldIndex) string {
	fields := strings.Fields(idx.first(f.labels(fieldEmail)))
	if len(fields) == 0 {
		return ""
	}
	addr, err := mail.ParseAddress(fields[0])
	if err != nil {
		return ""
	}
	return strings.ToLower(addr.Address)
}

func guestPhone(f *Format, idx fieldIndex) string {
	v := phoneCharsRe.ReplaceAllString(idx.first(f.labels(fieldPhone)), "")
	if i := strings.LastIndex(v, "+"); i > 0 {
		v = v[:i]
	}
	if len(strings.TrimPrefix(v, "+")) < 7 {
		return ""
	}
	return v
}

// stay resolves the check-in and check-out dates. A missing or inverted
// check-out is derived from the night count, defaulting to one night.
func stay(f *Format, idx fieldIndex, subject string) (*time.Time, *time.Time) {
	var in, out time.Time
	var okIn, okOut bool

	if v := idx.first(f.labels(fieldCheckIn)); v != "" {
		in, okIn = parseDate(v, f.Layout)
	}
	if v := idx.first(f.labels(fieldCheckOut)); v != "" {
		out, okOut = parseDate(v, f.Layout)
	}
	if !okIn {
		if v := idx.first(f.labels(fieldDates)); v != "" {
			if a, b, ok := parseDateRange(v, f.Layout); ok {
				in, out, okIn, okOut = a, b, true, true
			}
		}
	}
	if !okIn {
		in, okIn = parseDate(subject, f.Layout)
	}
	if !okIn {
		return nil, nil
	}
	if !okOut || !out.After(in) {
		nights := leadingInt(idx.first(f.labels(fieldNights)))
		if nights <= 0 || nights > 365 {
			nights = 1
		}
		out = in.AddDate(0, 0, nights)
	}
	return &in, &out
}

// units expands room lines into one description per unit. "2 x Dorm" counts
// as two units and a lone room line is repeated when a room count is given.
func units(f *Format, idx fieldIndex) []string {
	var out []string
	for _, room := range idx.all(f.labels(fieldRoom)) {
		room = strings.TrimSpace(room)
		if room == "" {
			continue
		}
		if m := unitMultiplierRe.FindStringSubmatch(room); m != nil {
			for n := atoi(m[1]); n > 0 && len(out) < maxUnits; n-- {
				out = append(out, strings.TrimSpace(m[2]))
			}
			continue
		}
		out = append(out, room)
	}

	count := leadingInt(idx.first(f.labels(fieldUnits)))
	if count > maxUnits {
		count = maxUnits
	}
	switch {
	case len(out) == 0:
		out = []string{""}
		for len(out) < count {
			out = append(out, "")
		}
	case len(out) == 1:
		for len(out) < count {
			out = append(out, out[0])
		}
	}
	if len(out) > maxUnits {
		out = out[:maxUnits]
	}
	return out
}
