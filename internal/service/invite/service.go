package invite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/patrickmn/go-cache"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
	"github.com/petmatch/clinic-api/internal/service/contact"
	"github.com/petmatch/clinic-api/internal/service/notifier"
	"github.com/petmatch/clinic-api/internal/service/reconcile"
	apperrors "github.com/petmatch/clinic-api/pkg/errors"
	"github.com/petmatch/clinic-api/pkg/logger"
)

const (
	clinicCacheTTL     = 10 * time.Minute
	clinicCacheCleanup = 30 * time.Minute
)

// Config carries the share-link settings burned into invite views.
type Config struct {
	LinkBase    string
	DownloadURL string
}

// Manager drives the invite lifecycle: creation and refresh from staff edits,
// claiming by matching accounts, and acceptance or decline by the recipient.
type Manager interface {
	CreateOrRefresh(ctx context.Context, patient *model.PatientRecord, owner *model.ClientRecord) (*model.Invite, error)
	ClaimAllPendingForAccount(ctx context.Context, account *model.Account)
	Respond(ctx context.Context, accountID uuid.UUID, token string, accept bool) (*model.InviteView, error)
	ListForAccount(ctx context.Context, account *model.Account, status model.InviteStatus) ([]*model.InviteView, error)
	GetView(ctx context.Context, token string) (*model.InviteView, error)
}

type Service struct {
	invites    repository.InviteRepository
	patients   repository.PatientRepository
	clinics    repository.ClinicRepository
	accounts   repository.AccountRepository
	outbox     repository.OutboxRepository
	notifier   notifier.Notifier
	reconciler reconcile.Reconciler
	config     Config
	clinicName *cache.Cache
	logger     *logger.Logger
}

func NewService(
	invites repository.InviteRepository,
	patients repository.PatientRepository,
	clinics repository.ClinicRepository,
	accounts repository.AccountRepository,
	outbox repository.OutboxRepository,
	notifier notifier.Notifier,
	reconciler reconcile.Reconciler,
	config Config,
	logger *logger.Logger,
) *Service {
	return &Service{
		invites:    invites,
		patients:   patients,
		clinics:    clinics,
		accounts:   accounts,
		outbox:     outbox,
		notifier:   notifier,
		reconciler: reconciler,
		config:     config,
		clinicName: cache.New(clinicCacheTTL, clinicCacheCleanup),
		logger:     logger,
	}
}

// CreateOrRefresh keeps at most one pending invite per patient. When one
// exists its contact snapshot is refreshed from the owner record; otherwise a
// new invite is minted. Either way an immediate claim attempt runs so an owner
// who already has an account sees the invite without re-registering.
func (s *Service) CreateOrRefresh(ctx context.Context, patient *model.PatientRecord, owner *model.ClientRecord) (*model.Invite, error) {
	phone := normalizedPtr(owner.Phone, contact.NormalizePhone)
	email := normalizedPtr(owner.Email, contact.NormalizeEmail)

	invite, err := s.invites.FindPendingForPatient(ctx, patient.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pending invite: %w", err)
	}

	if invite != nil {
		var changed []string
		if !strPtrEqual(invite.Phone, phone) {
			invite.Phone = phone
			changed = append(changed, "phone")
		}
		if !strPtrEqual(invite.Email, email) {
			invite.Email = email
			changed = append(changed, "email")
		}
		if patient.LinkedPetID != nil && !uuidPtrEqual(invite.IntendedPetID, patient.LinkedPetID) {
			invite.IntendedPetID = patient.LinkedPetID
			changed = append(changed, "intended_pet_id")
		}
		if len(changed) > 0 {
			if err := s.invites.UpdateFields(ctx, invite, changed...); err != nil {
				return nil, fmt.Errorf("failed to refresh invite: %w", err)
			}
		}
	} else {
		token, err := s.invites.GenerateToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite token: %w", err)
		}
		invite = &model.Invite{
			Base:          model.Base{ID: uuid.New()},
			ClinicID:      patient.ClinicID,
			PatientID:     patient.ID,
			OwnerRecordID: owner.ID,
			Token:         token,
			Status:        model.InviteStatusPending,
			Phone:         phone,
			Email:         email,
			IntendedPetID: patient.LinkedPetID,
		}
		if err := s.invites.Create(ctx, invite); err != nil {
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}
		s.publishEvent(ctx, model.EventInviteCreated, invite)
	}

	s.tryImmediateClaim(ctx, invite, patient)
	return invite, nil
}

// tryImmediateClaim binds the invite to an already-registered account whose
// contact details match the snapshot. First successful bind wins; failures are
// logged and never surface to the staff request that triggered them.
func (s *Service) tryImmediateClaim(ctx context.Context, invite *model.Invite, patient *model.PatientRecord) {
	query := contact.QueryFor(strOrEmpty(invite.Email), strOrEmpty(invite.Phone))
	if query.Empty() {
		return
	}

	matches, err := s.accounts.FindByContact(ctx, query)
	if err != nil {
		s.logger.Warn("account match failed during invite claim",
			"invite_id", invite.ID.String(), "error", err.Error())
		return
	}

	for _, account := range matches {
		bound, err := s.invites.ClaimIfUnbound(ctx, invite.ID, account.ID, time.Now())
		if err != nil {
			s.logger.Warn("invite claim failed",
				"invite_id", invite.ID.String(), "account_id", account.ID.String(), "error", err.Error())
			continue
		}
		if !bound {
			continue
		}

		invite.RecipientID = &account.ID
		s.notifyClaim(ctx, invite, account.ID, patient)
		s.publishEvent(ctx, model.EventInviteClaimed, invite)
		return
	}
}

// ClaimAllPendingForAccount sweeps pending invites whose snapshots match the
// account's contact details. Runs after registration, contact updates and on
// invite listing; entirely best effort.
func (s *Service) ClaimAllPendingForAccount(ctx context.Context, account *model.Account) {
	query := contact.QueryFor(account.Email, account.Phone)
	if query.Empty() {
		return
	}

	invites, err := s.invites.FindPendingMatching(ctx, query)
	if err != nil {
		s.logger.Warn("pending invite sweep failed",
			"account_id", account.ID.String(), "error", err.Error())
		return
	}

	for _, invite := range invites {
		bound, err := s.invites.ClaimIfUnbound(ctx, invite.ID, account.ID, time.Now())
		if err != nil {
			s.logger.Warn("invite claim failed during sweep",
				"invite_id", invite.ID.String(), "error", err.Error())
			continue
		}
		if !bound {
			continue
		}

		invite.RecipientID = &account.ID
		s.notifyClaim(ctx, invite, account.ID, nil)
		s.publishEvent(ctx, model.EventInviteClaimed, invite)
	}
}

func (s *Service) notifyClaim(ctx context.Context, invite *model.Invite, accountID uuid.UUID, patient *model.PatientRecord) {
	if patient == nil {
		var err error
		patient, err = s.patients.Get(ctx, invite.PatientID)
		if err != nil {
			s.logger.Warn("failed to load patient for invite notification",
				"invite_id", invite.ID.String(), "error", err.Error())
			return
		}
	}
	if err := s.notifier.NotifyInvite(ctx, accountID, invite, s.clinicNameFor(ctx, invite.ClinicID), patient.Name); err != nil {
		s.logger.Warn("failed to create invite notification",
			"invite_id", invite.ID.String(), "error", err.Error())
	}
}

// Respond handles accept and decline. Responding to an invite that already
// reached a terminal state is a no-op returning the current state; responding
// to an invite bound to a different account is forbidden. Acceptance resolves
// the canonical pet and links the clinic record in one transaction with the
// status flip.
func (s *Service) Respond(ctx context.Context, accountID uuid.UUID, token string, accept bool) (*model.InviteView, error) {
	invite, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("invite", err)
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	if invite.RecipientID != nil && *invite.RecipientID != accountID {
		return nil, apperrors.Forbidden("invite belongs to another account", nil)
	}
	if invite.Status != model.InviteStatusPending {
		return s.toView(ctx, invite), nil
	}

	status := model.InviteStatusDeclined
	eventType := model.EventInviteDeclined
	if accept {
		status = model.InviteStatusAccepted
		eventType = model.EventInviteAccepted
	}

	patient, err := s.patients.Get(ctx, invite.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}
	clinic, err := s.clinics.Get(ctx, invite.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to load clinic: %w", err)
	}

	now := time.Now()
	resolved := false
	err = s.invites.WithTx(ctx, func(tx *sqlx.Tx) error {
		ok, err := s.invites.ResolveTx(ctx, tx, invite.ID, status, accountID, now)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race: someone else resolved it first.
			return nil
		}
		resolved = true

		if accept {
			pet, err := s.reconciler.Resolve(ctx, tx, patient, clinic, accountID, invite.IntendedPetID)
			if err != nil {
				return err
			}
			if err := s.patients.LinkTx(ctx, tx, patient.ID, accountID, pet.ID); err != nil {
				return err
			}
		}

		return s.createEventTx(ctx, tx, eventType, invite.ID, accountID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to respond to invite: %w", err)
	}

	if !resolved {
		fresh, err := s.invites.GetByToken(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to reload invite: %w", err)
		}
		return s.toView(ctx, fresh), nil
	}

	invite.Status = status
	invite.RecipientID = &accountID
	if accept {
		invite.AcceptedAt = &now
	} else {
		invite.DeclinedAt = &now
	}

	if err := s.notifier.RemoveInviteNotification(ctx, accountID, invite.Token); err != nil {
		s.logger.Warn("failed to remove invite notification",
			"invite_id", invite.ID.String(), "error", err.Error())
	}

	return s.toView(ctx, invite), nil
}

// ListForAccount sweeps for newly matching invites first so an owner who just
// changed their phone number sees the invite on the next refresh.
func (s *Service) ListForAccount(ctx context.Context, account *model.Account, status model.InviteStatus) ([]*model.InviteView, error) {
	s.ClaimAllPendingForAccount(ctx, account)

	invites, err := s.invites.ListForRecipient(ctx, account.ID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}

	views := make([]*model.InviteView, 0, len(invites))
	for _, invite := range invites {
		views = append(views, s.toView(ctx, invite))
	}
	return views, nil
}

func (s *Service) GetView(ctx context.Context, token string) (*model.InviteView, error) {
	invite, err := s.invites.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("invite", err)
		}
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	return s.toView(ctx, invite), nil
}

func (s *Service) toView(ctx context.Context, invite *model.Invite) *model.InviteView {
	patientName := ""
	if patient, err := s.patients.Get(ctx, invite.PatientID); err == nil {
		patientName = patient.Name
	}
	clinicName := s.clinicNameFor(ctx, invite.ClinicID)
	link := s.buildLink(invite.Token)

	return &model.InviteView{
		ID:            invite.ID,
		Token:         invite.Token,
		Status:        invite.Status,
		ClinicID:      invite.ClinicID,
		ClinicName:    clinicName,
		PatientID:     invite.PatientID,
		PatientName:   patientName,
		InviteLink:    link,
		InviteMessage: s.buildMessage(clinicName, patientName, link),
		CreatedAt:     invite.CreatedAt,
		UpdatedAt:     invite.UpdatedAt,
		AcceptedAt:    invite.AcceptedAt,
		DeclinedAt:    invite.DeclinedAt,
	}
}

func (s *Service) buildLink(token string) string {
	return fmt.Sprintf("%s/%s", s.config.LinkBase, token)
}

// buildMessage renders the Arabic share text clinic staff forward to owners
// over WhatsApp.
func (s *Service) buildMessage(clinicName, patientName, link string) string {
	msg := fmt.Sprintf(
		"عيادة %s أضافت حيوانك الأليف %s 🐾\nحمّل التطبيق واقبل الدعوة لمتابعة سجلاته الصحية:\n%s",
		clinicName, patientName, link,
	)
	if s.config.DownloadURL != "" {
		msg += "\n" + s.config.DownloadURL
	}
	return msg
}

// clinicNameFor caches clinic names; clinics rename rarely and every view
// render needs one.
func (s *Service) clinicNameFor(ctx context.Context, clinicID uuid.UUID) string {
	key := clinicID.String()
	if name, ok := s.clinicName.Get(key); ok {
		return name.(string)
	}
	clinic, err := s.clinics.Get(ctx, clinicID)
	if err != nil {
		s.logger.Warn("failed to load clinic", "clinic_id", key, "error", err.Error())
		return ""
	}
	s.clinicName.Set(key, clinic.Name, cache.DefaultExpiration)
	return clinic.Name
}

type inviteEventPayload struct {
	InviteID  uuid.UUID `json:"invite_id"`
	AccountID uuid.UUID `json:"account_id,omitempty"`
}

func (s *Service) createEventTx(ctx context.Context, tx *sqlx.Tx, eventType string, inviteID, accountID uuid.UUID) error {
	payload, err := json.Marshal(inviteEventPayload{InviteID: inviteID, AccountID: accountID})
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    string(model.OutboxStatusPending),
	}
	return s.outbox.CreateTx(ctx, tx, event)
}

// publishEvent writes a lifecycle event outside any transaction. Best effort:
// the invite row is the source of truth, events only fan out.
func (s *Service) publishEvent(ctx context.Context, eventType string, invite *model.Invite) {
	var accountID uuid.UUID
	if invite.RecipientID != nil {
		accountID = *invite.RecipientID
	}
	payload, err := json.Marshal(inviteEventPayload{InviteID: invite.ID, AccountID: accountID})
	if err != nil {
		s.logger.Warn("failed to marshal event payload", "error", err.Error())
		return
	}
	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    string(model.OutboxStatusPending),
	}
	if err := s.outbox.Create(ctx, event); err != nil {
		s.logger.Warn("failed to enqueue event", "event_type", eventType, "error", err.Error())
	}
}

func normalizedPtr(value *string, normalize func(string) string) *string {
	if value == nil {
		return nil
	}
	normalized := normalize(*value)
	if normalized == "" {
		return nil
	}
	return &normalized
}

func strOrEmpty(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
