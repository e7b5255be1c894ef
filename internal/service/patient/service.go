package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
	"github.com/petmatch/clinic-api/internal/service/contact"
	"github.com/petmatch/clinic-api/internal/service/invite"
	apperrors "github.com/petmatch/clinic-api/pkg/errors"
	"github.com/petmatch/clinic-api/pkg/logger"
)

// PatientService is the staff-facing surface: CRUD over clinic patient
// records, with invite creation and refresh riding along on writes. Every
// by-ID operation takes the caller's clinic identity; records of other
// clinics are indistinguishable from missing ones.
type PatientService interface {
	Create(ctx context.Context, clinicID uuid.UUID, req *model.CreatePatientRequest) (*model.PatientRecord, error)
	Update(ctx context.Context, clinicID, patientID uuid.UUID, req *model.UpdatePatientRequest) (*model.PatientRecord, error)
	Get(ctx context.Context, clinicID, patientID uuid.UUID) (*model.PatientRecord, error)
	List(ctx context.Context, clinicID uuid.UUID) ([]*model.PatientRecord, error)
	Invite(ctx context.Context, clinicID, patientID uuid.UUID) (*model.InviteView, error)
}

type Service struct {
	patients repository.PatientRepository
	clients  repository.ClientRecordRepository
	invites  invite.Manager
	logger   *logger.Logger
}

func NewService(patients repository.PatientRepository, clients repository.ClientRecordRepository, invites invite.Manager, logger *logger.Logger) *Service {
	return &Service{
		patients: patients,
		clients:  clients,
		invites:  invites,
		logger:   logger,
	}
}

// Create registers a patient under the clinic, reusing an existing owner
// record when the contact details already match one. Invite creation is best
// effort: the patient write must not fail because the invite path did.
func (s *Service) Create(ctx context.Context, clinicID uuid.UUID, req *model.CreatePatientRequest) (*model.PatientRecord, error) {
	owner, err := s.findOrCreateOwner(ctx, clinicID, req.OwnerName, req.OwnerEmail, req.OwnerPhone)
	if err != nil {
		return nil, err
	}

	patient := &model.PatientRecord{
		Base:        model.Base{ID: uuid.New()},
		ClinicID:    clinicID,
		OwnerID:     owner.ID,
		Name:        req.Name,
		Species:     req.Species,
		Breed:       req.Breed,
		DateOfBirth: req.DateOfBirth,
		AgeText:     ageTextFor(req.Age, req.DateOfBirth),
		Gender:      req.Gender,
		Status:      statusOrDefault(req.Status),
		Notes:       req.Notes,
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.refreshInvite(ctx, patient, owner)
	return patient, nil
}

// Update applies partial edits. Owner contact changes propagate to the owner
// record and re-snapshot the pending invite.
func (s *Service) Update(ctx context.Context, clinicID, patientID uuid.UUID, req *model.UpdatePatientRequest) (*model.PatientRecord, error) {
	patient, err := s.getScoped(ctx, clinicID, patientID)
	if err != nil {
		return nil, err
	}
	owner, err := s.clients.Get(ctx, patient.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner record: %w", err)
	}

	applyPatch(patient, req)
	if err := s.patients.Update(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	if ownerChanged(owner, req) {
		if req.OwnerName != nil {
			owner.FullName = *req.OwnerName
		}
		if req.OwnerEmail != nil {
			owner.Email = emptyToNil(contact.NormalizeEmail(*req.OwnerEmail))
		}
		if req.OwnerPhone != nil {
			owner.Phone = emptyToNil(contact.NormalizePhone(*req.OwnerPhone))
		}
		if err := s.clients.Update(ctx, owner); err != nil {
			return nil, fmt.Errorf("failed to update owner record: %w", err)
		}
		s.refreshInvite(ctx, patient, owner)
	}

	return patient, nil
}

func (s *Service) Get(ctx context.Context, clinicID, patientID uuid.UUID) (*model.PatientRecord, error) {
	return s.getScoped(ctx, clinicID, patientID)
}

func (s *Service) List(ctx context.Context, clinicID uuid.UUID) ([]*model.PatientRecord, error) {
	return s.patients.List(ctx, clinicID)
}

// Invite explicitly mints or refreshes the patient's invite and returns the
// shareable view for staff to forward.
func (s *Service) Invite(ctx context.Context, clinicID, patientID uuid.UUID) (*model.InviteView, error) {
	patient, err := s.getScoped(ctx, clinicID, patientID)
	if err != nil {
		return nil, err
	}
	owner, err := s.clients.Get(ctx, patient.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load owner record: %w", err)
	}

	inv, err := s.invites.CreateOrRefresh(ctx, patient, owner)
	if err != nil {
		return nil, err
	}
	return s.invites.GetView(ctx, inv.Token)
}

// getScoped loads a patient and enforces clinic ownership. A record belonging
// to another clinic reads as not found.
func (s *Service) getScoped(ctx context.Context, clinicID, patientID uuid.UUID) (*model.PatientRecord, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	if patient.ClinicID != clinicID {
		return nil, apperrors.NotFound("patient", nil)
	}
	return patient, nil
}

func (s *Service) refreshInvite(ctx context.Context, patient *model.PatientRecord, owner *model.ClientRecord) {
	if _, err := s.invites.CreateOrRefresh(ctx, patient, owner); err != nil {
		s.logger.Warn("failed to refresh invite for patient",
			"patient_id", patient.ID.String(), "error", err.Error())
	}
}

func (s *Service) findOrCreateOwner(ctx context.Context, clinicID uuid.UUID, name, email, phone string) (*model.ClientRecord, error) {
	normalizedEmail := contact.NormalizeEmail(email)
	normalizedPhone := contact.NormalizePhone(phone)

	owner, err := s.clients.FindByContact(ctx, clinicID, normalizedEmail, normalizedPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up owner record: %w", err)
	}
	if owner != nil {
		return owner, nil
	}

	owner = &model.ClientRecord{
		Base:     model.Base{ID: uuid.New()},
		ClinicID: clinicID,
		FullName: name,
		Email:    emptyToNil(normalizedEmail),
		Phone:    emptyToNil(normalizedPhone),
	}
	if err := s.clients.Create(ctx, owner); err != nil {
		return nil, fmt.Errorf("failed to create owner record: %w", err)
	}
	return owner, nil
}

func applyPatch(patient *model.PatientRecord, req *model.UpdatePatientRequest) {
	if req.Name != nil {
		patient.Name = *req.Name
	}
	if req.Species != nil {
		patient.Species = *req.Species
	}
	if req.Breed != nil {
		patient.Breed = *req.Breed
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = req.DateOfBirth
	}
	if req.Age != nil {
		patient.AgeText = emptyToNil(*req.Age)
	}
	if req.Gender != nil {
		patient.Gender = *req.Gender
	}
	if req.Status != nil {
		patient.Status = *req.Status
	}
	if req.Notes != nil {
		patient.Notes = *req.Notes
	}
}

func ownerChanged(owner *model.ClientRecord, req *model.UpdatePatientRequest) bool {
	if req.OwnerName != nil && owner.FullName != *req.OwnerName {
		return true
	}
	if req.OwnerEmail != nil && !ptrEq(owner.Email, emptyToNil(contact.NormalizeEmail(*req.OwnerEmail))) {
		return true
	}
	if req.OwnerPhone != nil && !ptrEq(owner.Phone, emptyToNil(contact.NormalizePhone(*req.OwnerPhone))) {
		return true
	}
	return false
}

// ageTextFor prefers the free-text age staff typed; with only a birth date it
// renders a rough "N years" / "N months" string for the record card.
func ageTextFor(age string, dob *time.Time) *string {
	if age != "" {
		return &age
	}
	if dob == nil {
		return nil
	}
	months := int(time.Since(*dob).Hours() / (24 * 30))
	var text string
	switch {
	case months >= 12:
		text = fmt.Sprintf("%d years", months/12)
	case months >= 1:
		text = fmt.Sprintf("%d months", months)
	default:
		text = "under a month"
	}
	return &text
}

func statusOrDefault(status string) string {
	if status == "" {
		return string(model.PatientStatusActive)
	}
	return status
}

func emptyToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
