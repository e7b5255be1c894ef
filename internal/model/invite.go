package model

import (
	"time"

	"github.com/google/uuid"
)

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusDeclined InviteStatus = "declined"
	// InviteStatusExpired is reserved for a time-based sweep; nothing in the
	// service transitions into it yet.
	InviteStatusExpired InviteStatus = "expired"
)

// Invite binds a clinic patient record to a future or existing application
// account. Phone and Email are normalized snapshots taken from the owner
// record at creation/refresh time, so later edits to the client record do not
// retroactively change matching.
type Invite struct {
	Base
	ClinicID      uuid.UUID    `db:"clinic_id" json:"clinic_id"`
	PatientID     uuid.UUID    `db:"patient_id" json:"patient_id"`
	OwnerRecordID uuid.UUID    `db:"owner_record_id" json:"owner_record_id"`
	Token         string       `db:"token" json:"token"`
	Status        InviteStatus `db:"status" json:"status"`
	Phone         *string      `db:"phone" json:"phone,omitempty"`
	Email         *string      `db:"email" json:"email,omitempty"`
	RecipientID   *uuid.UUID   `db:"recipient_id" json:"recipient_id,omitempty"`
	IntendedPetID *uuid.UUID   `db:"intended_pet_id" json:"intended_pet_id,omitempty"`
	ClaimedAt     *time.Time   `db:"claimed_at" json:"claimed_at,omitempty"`
	AcceptedAt    *time.Time   `db:"accepted_at" json:"accepted_at,omitempty"`
	DeclinedAt    *time.Time   `db:"declined_at" json:"declined_at,omitempty"`
}

// InviteView is the representation exposed to the mobile app, including the
// shareable deep link and message the clinic forwards to the owner.
type InviteView struct {
	ID            uuid.UUID    `json:"id"`
	Token         string       `json:"token"`
	Status        InviteStatus `json:"status"`
	ClinicID      uuid.UUID    `json:"clinicId"`
	ClinicName    string       `json:"clinicName"`
	PatientID     uuid.UUID    `json:"patientId"`
	PatientName   string       `json:"patientName"`
	InviteLink    string       `json:"inviteLink"`
	InviteMessage string       `json:"inviteMessage"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	AcceptedAt    *time.Time   `json:"acceptedAt,omitempty"`
	DeclinedAt    *time.Time   `json:"declinedAt,omitempty"`
}

// ContactQuery carries the matching inputs shared by the identity matcher and
// the pending-invite sweep: an exact (normalized) email, the phone forms
// compared for equality, and the trailing-digit suffixes that may match a
// stored number loosely (contains or ends-with).
type ContactQuery struct {
	Email         string
	PhoneVariants []string
	PhoneSuffixes []string
}

func (q ContactQuery) Empty() bool {
	return q.Email == "" && len(q.PhoneVariants) == 0 && len(q.PhoneSuffixes) == 0
}
