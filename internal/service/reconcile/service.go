package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
	"github.com/petmatch/clinic-api/pkg/logger"
)

// Reconciler resolves the canonical pet for an accepted invite: the intended
// pet when it belongs to the accepting account, an existing pet with the same
// name and type, or a new pet synthesized from the clinic record.
type Reconciler interface {
	Resolve(ctx context.Context, tx *sqlx.Tx, patient *model.PatientRecord, clinic *model.Clinic, accountID uuid.UUID, intendedPetID *uuid.UUID) (*model.Pet, error)
}

type Config struct {
	FallbackPetType  model.PetType
	DefaultAgeMonths int
}

type Service struct {
	pets   repository.PetRepository
	config Config
	logger *logger.Logger
}

func NewService(pets repository.PetRepository, config Config, logger *logger.Logger) *Service {
	if config.FallbackPetType == "" {
		config.FallbackPetType = model.PetTypeCats
	}
	if config.DefaultAgeMonths <= 0 {
		config.DefaultAgeMonths = 12
	}
	return &Service{pets: pets, config: config, logger: logger}
}

func (s *Service) Resolve(ctx context.Context, tx *sqlx.Tx, patient *model.PatientRecord, clinic *model.Clinic, accountID uuid.UUID, intendedPetID *uuid.UUID) (*model.Pet, error) {
	if intendedPetID != nil {
		pet, err := s.pets.Get(ctx, *intendedPetID)
		if err == nil && pet != nil && pet.OwnerID == accountID {
			return pet, nil
		}
		if err != nil {
			s.logger.Warn("intended pet lookup failed, falling back to match",
				"pet_id", intendedPetID.String(), "error", err.Error())
		}
	}

	petType := s.petTypeFor(patient.Species)

	existing, err := s.pets.FindOwnedByNameAndType(ctx, accountID, patient.Name, petType)
	if err != nil {
		return nil, fmt.Errorf("failed to match existing pet: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	return s.synthesize(ctx, tx, patient, clinic, accountID, petType)
}

// synthesize creates a canonical pet from the clinic's patient record. The
// new pet is never listed for breeding; the owner opts in later from the app.
func (s *Service) synthesize(ctx context.Context, tx *sqlx.Tx, patient *model.PatientRecord, clinic *model.Clinic, accountID uuid.UUID, petType model.PetType) (*model.Pet, error) {
	breed, err := s.pets.GetOrCreatePlaceholderBreed(ctx, petType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve placeholder breed: %w", err)
	}

	pet := &model.Pet{
		Base:                 model.Base{ID: uuid.New()},
		OwnerID:              accountID,
		Name:                 patient.Name,
		PetType:              petType,
		BreedID:              breed.ID,
		AgeMonths:            s.ageMonthsFor(patient),
		Gender:               genderFor(patient.Gender),
		Status:               model.PetStatusAvailable,
		AvailableForBreeding: false,
	}
	if clinic != nil {
		pet.Location = clinic.Address
		pet.Latitude = clinic.Latitude
		pet.Longitude = clinic.Longitude
	}

	if err := s.pets.CreateTx(ctx, tx, pet); err != nil {
		return nil, fmt.Errorf("failed to create pet: %w", err)
	}
	return pet, nil
}

// petTypeFor maps free-text clinic species onto the app's closed pet_type
// enum. Unknown species fall back to the configured default rather than
// failing the acceptance.
func (s *Service) petTypeFor(species string) model.PetType {
	lowered := strings.ToLower(strings.TrimSpace(species))
	switch {
	case strings.Contains(lowered, "cat"), strings.Contains(lowered, "قط"):
		return model.PetTypeCats
	case strings.Contains(lowered, "dog"), strings.Contains(lowered, "كلب"):
		return model.PetTypeDogs
	default:
		return s.config.FallbackPetType
	}
}

func (s *Service) ageMonthsFor(patient *model.PatientRecord) int {
	if patient.DateOfBirth != nil {
		months := monthsBetween(*patient.DateOfBirth, time.Now())
		if months > 0 {
			return months
		}
	}
	return s.config.DefaultAgeMonths
}

func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	return months
}

// genderFor is deliberately lenient: clinic records hold free text in more
// than one language, and an unrecognized value must not block acceptance.
func genderFor(raw string) model.PetGender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "f", "female", "أنثى", "انثى":
		return model.PetGenderFemale
	default:
		return model.PetGenderMale
	}
}
