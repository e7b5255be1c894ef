package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
)

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.PatientRecord, error) {
	query := `SELECT * FROM patient_records WHERE id = $1`
	var patient model.PatientRecord
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, clinicID uuid.UUID) ([]*model.PatientRecord, error) {
	query := `SELECT * FROM patient_records WHERE clinic_id = $1 ORDER BY created_at DESC`
	var patients []*model.PatientRecord
	if err := r.db.SelectContext(ctx, &patients, query, clinicID); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Create(ctx context.Context, patient *model.PatientRecord) error {
	query := `
		INSERT INTO patient_records (
			id, clinic_id, owner_id, name, species, breed, date_of_birth, age_text,
			gender, status, notes, last_visit, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.ClinicID,
		patient.OwnerID,
		patient.Name,
		patient.Species,
		patient.Breed,
		patient.DateOfBirth,
		patient.AgeText,
		patient.Gender,
		patient.Status,
		patient.Notes,
		patient.LastVisit,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// Update writes the staff-editable columns. linked_user_id and linked_pet_id
// are deliberately excluded; only LinkTx touches them.
func (r *patientRepository) Update(ctx context.Context, patient *model.PatientRecord) error {
	query := `
		UPDATE patient_records
		SET owner_id = $1, name = $2, species = $3, breed = $4, date_of_birth = $5,
			age_text = $6, gender = $7, status = $8, notes = $9, last_visit = $10,
			updated_at = $11
		WHERE id = $12
	`
	patient.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		patient.OwnerID,
		patient.Name,
		patient.Species,
		patient.Breed,
		patient.DateOfBirth,
		patient.AgeText,
		patient.Gender,
		patient.Status,
		patient.Notes,
		patient.LastVisit,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}

func (r *patientRepository) LinkTx(ctx context.Context, tx *sqlx.Tx, patientID, userID, petID uuid.UUID) error {
	query := `
		UPDATE patient_records
		SET linked_user_id = $1, linked_pet_id = $2, updated_at = $3
		WHERE id = $4
	`
	if _, err := tx.ExecContext(ctx, query, userID, petID, time.Now(), patientID); err != nil {
		return fmt.Errorf("failed to link patient: %w", err)
	}
	return nil
}
