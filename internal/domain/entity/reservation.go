package entity

import (
	"time"
)

// ReservationStatus is the lifecycle state of a stay
type ReservationStatus string

const (
	ReservationPending    ReservationStatus = "pending"
	ReservationConfirmed  ReservationStatus = "confirmed"
	ReservationCheckedIn  ReservationStatus = "checked_in"
	ReservationCheckedOut ReservationStatus = "checked_out"
	ReservationCancelled  ReservationStatus = "cancelled"
	ReservationNoShow     ReservationStatus = "no_show"
)

// PaymentStatus tracks the guest's payment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// Reservation is the system of record for a stay. ChannelReservationCode is
// unique per organization when present and acts as the idempotency key.
type Reservation struct {
	ID             uint  `gorm:"primaryKey" json:"id"`
	OrganizationID uint  `gorm:"not null;uniqueIndex:idx_reservations_org_code,priority:1;uniqueIndex:idx_reservations_org_source,priority:1" json:"organizationId"`
	BranchID       *uint `gorm:"index" json:"branchId,omitempty"`

	ChannelReservationCode *string `gorm:"size:64;uniqueIndex:idx_reservations_org_code,priority:2" json:"channelReservationCode,omitempty"`
	Channel                string  `gorm:"size:32" json:"channel"`
	SourceMessageID        *string `gorm:"size:255;uniqueIndex:idx_reservations_org_source,priority:2" json:"sourceMessageId,omitempty"`
	SourceUnit             int     `gorm:"not null;default:1;uniqueIndex:idx_reservations_org_source,priority:3" json:"sourceUnit"`

	GuestName  string `gorm:"size:255" json:"guestName"`
	GuestEmail string `gorm:"size:255;index" json:"guestEmail,omitempty"`
	GuestPhone string `gorm:"size:32;index" json:"guestPhone,omitempty"`

	CheckInDate     *time.Time `gorm:"type:date;index" json:"checkInDate,omitempty"`
	CheckOutDate    *time.Time `gorm:"type:date" json:"checkOutDate,omitempty"`
	RoomDescription string     `gorm:"size:512" json:"roomDescription,omitempty"`

	AmountCents int64  `gorm:"not null;default:0" json:"amountCents"`
	Currency    string `gorm:"size:3" json:"currency,omitempty"`

	Status        ReservationStatus `gorm:"size:32;not null;default:pending" json:"status"`
	PaymentStatus PaymentStatus     `gorm:"size:32;not null;default:pending" json:"paymentStatus"`

	ReservationGroupID *string `gorm:"size:36;index" json:"reservationGroupId,omitempty"`
	IsPrimaryInGroup   bool    `gorm:"not null;default:false" json:"isPrimaryInGroup"`

	DoorPin       string     `gorm:"size:16" json:"doorPin,omitempty"`
	PaymentLink   string     `gorm:"size:512" json:"paymentLink,omitempty"`
	SentMessage   string     `gorm:"type:text" json:"sentMessage,omitempty"`
	SentMessageAt *time.Time `json:"sentMessageAt,omitempty"`

	NotificationLogs []NotificationLog `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Code returns the channel reservation code or "".
func (r *Reservation) Code() string {
	if r.ChannelReservationCode == nil {
		return ""
	}
	return *r.ChannelReservationCode
}

// HasStay reports whether both stay dates are known.
func (r *Reservation) HasStay() bool {
	return r.CheckInDate != nil && r.CheckOutDate != nil
}

// Overlaps reports whether [CheckInDate, CheckOutDate) intersects [in, out).
func (r *Reservation) Overlaps(in, out time.Time) bool {
	if !r.HasStay() {
		return false
	}
	return r.CheckInDate.Before(out) && in.Before(*r.CheckOutDate)
}

// Nights returns the number of nights of the stay, 0 when unknown.
func (r *Reservation) Nights() int {
	if !r.HasStay() {
		return 0
	}
	return int(r.CheckOutDate.Sub(*r.CheckInDate).Hours() / 24)
}
