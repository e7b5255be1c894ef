package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
)

const placeholderBreedName = "Unknown"

type petRepository struct {
	db *sqlx.DB
}

func NewPetRepository(db *sqlx.DB) repository.PetRepository {
	return &petRepository{db: db}
}

func (r *petRepository) Get(ctx context.Context, id uuid.UUID) (*model.Pet, error) {
	query := `SELECT * FROM pets WHERE id = $1`
	var pet model.Pet
	if err := r.db.GetContext(ctx, &pet, query, id); err != nil {
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return &pet, nil
}

// FindOwnedByNameAndType is the reconciliation lookup: case-insensitive name
// plus exact type within the account's own pets. Returns nil when absent.
func (r *petRepository) FindOwnedByNameAndType(ctx context.Context, ownerID uuid.UUID, name string, petType model.PetType) (*model.Pet, error) {
	query := `
		SELECT * FROM pets
		WHERE owner_id = $1 AND lower(name) = lower($2) AND pet_type = $3
		ORDER BY created_at
		LIMIT 1
	`
	var pet model.Pet
	err := r.db.GetContext(ctx, &pet, query, ownerID, name, petType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pet by name and type: %w", err)
	}
	return &pet, nil
}

func (r *petRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, pet *model.Pet) error {
	query := `
		INSERT INTO pets (
			id, owner_id, name, pet_type, breed_id, age_months, gender, status,
			available_for_breeding, location, latitude, longitude, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	pet.CreatedAt = time.Now()
	pet.UpdatedAt = time.Now()

	_, err := tx.ExecContext(ctx, query,
		pet.ID,
		pet.OwnerID,
		pet.Name,
		pet.PetType,
		pet.BreedID,
		pet.AgeMonths,
		pet.Gender,
		pet.Status,
		pet.AvailableForBreeding,
		pet.Location,
		pet.Latitude,
		pet.Longitude,
		pet.CreatedAt,
		pet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create pet: %w", err)
	}
	return nil
}

// GetOrCreatePlaceholderBreed returns the generic breed row used for pets
// synthesized from clinic records, creating it on first use.
func (r *petRepository) GetOrCreatePlaceholderBreed(ctx context.Context, petType model.PetType) (*model.Breed, error) {
	query := `SELECT * FROM breeds WHERE name = $1 AND pet_type = $2`
	var breed model.Breed
	err := r.db.GetContext(ctx, &breed, query, placeholderBreedName, petType)
	if err == nil {
		return &breed, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get placeholder breed: %w", err)
	}

	breed = model.Breed{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
		Name:    placeholderBreedName,
		PetType: petType,
	}
	insert := `
		INSERT INTO breeds (id, name, pet_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name, pet_type) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, breed.ID, breed.Name, breed.PetType, breed.CreatedAt, breed.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create placeholder breed: %w", err)
	}

	// Re-read to cover the conflict path where another request inserted first.
	if err := r.db.GetContext(ctx, &breed, query, placeholderBreedName, petType); err != nil {
		return nil, fmt.Errorf("failed to re-read placeholder breed: %w", err)
	}
	return &breed, nil
}
