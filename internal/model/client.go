package model

import "github.com/google/uuid"

// ClientRecord is a clinic-scoped description of a pet owner as known to
// clinic staff. It is not an application account; linking the two is the
// invite subsystem's job.
type ClientRecord struct {
	Base
	ClinicID uuid.UUID `db:"clinic_id" json:"clinic_id"`
	FullName string    `db:"full_name" json:"full_name"`
	Email    *string   `db:"email" json:"email,omitempty"`
	Phone    *string   `db:"phone" json:"phone,omitempty"`
}
