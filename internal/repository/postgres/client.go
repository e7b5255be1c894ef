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

type clientRecordRepository struct {
	db *sqlx.DB
}

func NewClientRecordRepository(db *sqlx.DB) repository.ClientRecordRepository {
	return &clientRecordRepository{db: db}
}

func (r *clientRecordRepository) Get(ctx context.Context, id uuid.UUID) (*model.ClientRecord, error) {
	query := `SELECT * FROM client_records WHERE id = $1`
	var record model.ClientRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, fmt.Errorf("failed to get client record: %w", err)
	}
	return &record, nil
}

// FindByContact looks up an owner record within the clinic, preferring an
// email match over a phone match. Returns nil when neither matches.
func (r *clientRecordRepository) FindByContact(ctx context.Context, clinicID uuid.UUID, email, phone string) (*model.ClientRecord, error) {
	if email != "" {
		query := `SELECT * FROM client_records WHERE clinic_id = $1 AND lower(email) = lower($2) LIMIT 1`
		var record model.ClientRecord
		err := r.db.GetContext(ctx, &record, query, clinicID, email)
		if err == nil {
			return &record, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to find client record by email: %w", err)
		}
	}

	if phone != "" {
		query := `SELECT * FROM client_records WHERE clinic_id = $1 AND phone = $2 LIMIT 1`
		var record model.ClientRecord
		err := r.db.GetContext(ctx, &record, query, clinicID, phone)
		if err == nil {
			return &record, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to find client record by phone: %w", err)
		}
	}

	return nil, nil
}

func (r *clientRecordRepository) Create(ctx context.Context, record *model.ClientRecord) error {
	query := `
		INSERT INTO client_records (id, clinic_id, full_name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.ClinicID,
		record.FullName,
		record.Email,
		record.Phone,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client record: %w", err)
	}
	return nil
}

func (r *clientRecordRepository) Update(ctx context.Context, record *model.ClientRecord) error {
	query := `
		UPDATE client_records
		SET full_name = $1, email = $2, phone = $3, updated_at = $4
		WHERE id = $5
	`
	record.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		record.FullName,
		record.Email,
		record.Phone,
		record.UpdatedAt,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client record: %w", err)
	}
	return nil
}
