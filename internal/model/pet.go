package model

import "github.com/google/uuid"

type PetType string

const (
	PetTypeCats PetType = "cats"
	PetTypeDogs PetType = "dogs"
)

type PetGender string

const (
	PetGenderMale   PetGender = "M"
	PetGenderFemale PetGender = "F"
)

type PetStatus string

const (
	PetStatusAvailable   PetStatus = "available"
	PetStatusUnavailable PetStatus = "unavailable"
)

// Pet is the canonical app-side pet entity, owned by exactly one account.
type Pet struct {
	Base
	OwnerID              uuid.UUID `db:"owner_id" json:"owner_id"`
	Name                 string    `db:"name" json:"name"`
	PetType              PetType   `db:"pet_type" json:"pet_type"`
	BreedID              uuid.UUID `db:"breed_id" json:"breed_id"`
	AgeMonths            int       `db:"age_months" json:"age_months"`
	Gender               PetGender `db:"gender" json:"gender"`
	Status               PetStatus `db:"status" json:"status"`
	AvailableForBreeding bool      `db:"available_for_breeding" json:"available_for_breeding"`
	Location             string    `db:"location" json:"location"`
	Latitude             *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude            *float64  `db:"longitude" json:"longitude,omitempty"`
}

type Breed struct {
	Base
	Name    string  `db:"name" json:"name"`
	PetType PetType `db:"pet_type" json:"pet_type"`
}
