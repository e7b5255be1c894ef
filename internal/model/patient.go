package model

import (
	"time"

	"github.com/google/uuid"
)

type PatientStatus string

const (
	PatientStatusActive   PatientStatus = "active"
	PatientStatusInactive PatientStatus = "inactive"
	PatientStatusDeceased PatientStatus = "deceased"
)

// PatientRecord is a clinic-owned pet record created by staff, independent of
// the app's canonical Pet entity. LinkedUserID and LinkedPetID are set only by
// the invite acceptance flow, never by staff CRUD.
type PatientRecord struct {
	Base
	ClinicID     uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	OwnerID      uuid.UUID  `db:"owner_id" json:"owner_id"`
	Name         string     `db:"name" json:"name"`
	Species      string     `db:"species" json:"species"`
	Breed        string     `db:"breed" json:"breed"`
	DateOfBirth  *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	AgeText      *string    `db:"age_text" json:"age_text,omitempty"`
	Gender       string     `db:"gender" json:"gender"`
	Status       string     `db:"status" json:"status"`
	Notes        string     `db:"notes" json:"notes"`
	LastVisit    *time.Time `db:"last_visit" json:"last_visit,omitempty"`
	LinkedUserID *uuid.UUID `db:"linked_user_id" json:"linked_user_id,omitempty"`
	LinkedPetID  *uuid.UUID `db:"linked_pet_id" json:"linked_pet_id,omitempty"`
}

type CreatePatientRequest struct {
	Name        string     `json:"name" binding:"required"`
	Species     string     `json:"species" binding:"required"`
	Breed       string     `json:"breed"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Age         string     `json:"age"`
	Gender      string     `json:"gender"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes"`
	OwnerName   string     `json:"owner_name" binding:"required"`
	OwnerPhone  string     `json:"owner_phone"`
	OwnerEmail  string     `json:"owner_email" binding:"omitempty,email"`
}

type UpdatePatientRequest struct {
	Name        *string    `json:"name"`
	Species     *string    `json:"species"`
	Breed       *string    `json:"breed"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Age         *string    `json:"age"`
	Gender      *string    `json:"gender"`
	Status      *string    `json:"status"`
	Notes       *string    `json:"notes"`
	OwnerName   *string    `json:"owner_name"`
	OwnerPhone  *string    `json:"owner_phone"`
	OwnerEmail  *string    `json:"owner_email" binding:"omitempty,email"`
}
