package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"hostel-ingest-service/internal/domain/entity"
	"hostel-ingest-service/internal/domain/repository"
	"hostel-ingest-service/pkg/logger"
)

// minPhoneDigits is the shortest suffix accepted when phones differ only by
// country prefix
const minPhoneDigits = 7

// GroupingEngine clusters reservations of the same guest party
type GroupingEngine struct {
	reservations repository.ReservationRepository
	logger       logger.Logger
	newID        func() string
}

// NewGroupingEngine creates a new grouping engine
func NewGroupingEngine(reservations repository.ReservationRepository, logger logger.Logger) *GroupingEngine {
	return &GroupingEngine{
		reservations: reservations,
		logger:       logger,
		newID:        uuid.NewString,
	}
}

// AssignToGroup sets the group fields of a newly persisted reservation. It
// joins the group of the most recently created overlapping reservation with
// the same normalized phone or email, or starts a new group with res as its
// primary. Existing reservations are never modified.
func (g *GroupingEngine) AssignToGroup(ctx context.Context, res *entity.Reservation) (*entity.Reservation, error) {
	if res.ReservationGroupID != nil {
		return res, nil
	}
	if res.BranchID == nil {
		return res, entity.ErrBranchUnresolved
	}

	groupID, primary := "", true
	if res.HasStay() {
		candidates, err := g.reservations.FindGroupCandidates(ctx, res.OrganizationID, *res.BranchID, *res.CheckInDate, *res.CheckOutDate)
		if err != nil {
			return res, fmt.Errorf("failed to find group candidates: %w", err)
		}

		var groups []string
		for _, c := range candidates {
			if c.ID == res.ID || c.ReservationGroupID == nil || !sameGuest(res, c) {
				continue
			}
			if !containsString(groups, *c.ReservationGroupID) {
				groups = append(groups, *c.ReservationGroupID)
			}
		}
		if len(groups) > 0 {
			groupID, primary = groups[0], false
		}
		if len(groups) > 1 {
			g.logger.Warn("Reservation matches several groups, joining most recent",
				"reservationID", res.ID,
				"groupID", groupID,
				"groups", groups)
		}
	}
	if groupID == "" {
		groupID = g.newID()
	}

	if err := g.reservations.UpdateGroup(ctx, res.ID, groupID, primary); err != nil {
		return res, fmt.Errorf("failed to update group: %w", err)
	}
	res.ReservationGroupID = &groupID
	res.IsPrimaryInGroup = primary

	g.logger.Debug("Reservation grouped",
		"reservationID", res.ID,
		"groupID", groupID,
		"primary", primary)
	return res, nil
}

func sameGuest(a, b *entity.Reservation) bool {
	if phonesMatch(NormalizePhone(a.GuestPhone), NormalizePhone(b.GuestPhone)) {
		return true
	}
	ea, eb := NormalizeEmail(a.GuestEmail), NormalizeEmail(b.GuestEmail)
	return ea != "" && ea == eb
}

// phonesMatch compares digit strings, accepting a missing country prefix on
// one side
func phonesMatch(a, b string) bool {
	if len(a) < minPhoneDigits || len(b) < minPhoneDigits {
		return false
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	return strings.HasSuffix(a, b)
}

// NormalizePhone keeps only the digits of a phone number.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
