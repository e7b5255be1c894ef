package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petmatch/clinic-api/internal/model"
)

// All repository interfaces in one file
type (
	ClinicRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error)
		List(ctx context.Context) ([]*model.Clinic, error)
		Create(ctx context.Context, clinic *model.Clinic) error
	}

	// ClientRecordRepository manages clinic-scoped owner records.
	ClientRecordRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.ClientRecord, error)
		FindByContact(ctx context.Context, clinicID uuid.UUID, email, phone string) (*model.ClientRecord, error)
		Create(ctx context.Context, record *model.ClientRecord) error
		Update(ctx context.Context, record *model.ClientRecord) error
	}

	PatientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.PatientRecord, error)
		List(ctx context.Context, clinicID uuid.UUID) ([]*model.PatientRecord, error)
		Create(ctx context.Context, patient *model.PatientRecord) error
		Update(ctx context.Context, patient *model.PatientRecord) error
		// LinkTx binds the patient to its resolved account and canonical pet
		// inside the caller's transaction.
		LinkTx(ctx context.Context, tx *sqlx.Tx, patientID, userID, petID uuid.UUID) error
	}

	// InviteRepository is the invite store: token generation, scoped lookups
	// and the conditional claim primitive.
	InviteRepository interface {
		GenerateToken(ctx context.Context) (string, error)
		GetByToken(ctx context.Context, token string) (*model.Invite, error)
		FindPendingForPatient(ctx context.Context, patientID uuid.UUID) (*model.Invite, error)
		FindPendingMatching(ctx context.Context, query model.ContactQuery) ([]*model.Invite, error)
		ListForRecipient(ctx context.Context, accountID uuid.UUID, status model.InviteStatus) ([]*model.Invite, error)
		Create(ctx context.Context, invite *model.Invite) error
		UpdateFields(ctx context.Context, invite *model.Invite, fields ...string) error
		// ClaimIfUnbound atomically binds the recipient when the invite is
		// unclaimed or already points at this account. Returns the bound state.
		ClaimIfUnbound(ctx context.Context, inviteID, accountID uuid.UUID, at time.Time) (bool, error)
		// ResolveTx flips a pending invite to accepted/declined inside the
		// caller's transaction. Returns false when the row was no longer pending.
		ResolveTx(ctx context.Context, tx *sqlx.Tx, inviteID uuid.UUID, status model.InviteStatus, recipientID uuid.UUID, at time.Time) (bool, error)
		WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
	}

	// AccountRepository reads app accounts; FindByContact is the identity
	// matcher's data-layer predicate.
	AccountRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
		GetByEmail(ctx context.Context, email string) (*model.Account, error)
		FindByContact(ctx context.Context, query model.ContactQuery) ([]*model.Account, error)
		Create(ctx context.Context, account *model.Account) error
		Update(ctx context.Context, account *model.Account) error
	}

	PetRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Pet, error)
		FindOwnedByNameAndType(ctx context.Context, ownerID uuid.UUID, name string, petType model.PetType) (*model.Pet, error)
		CreateTx(ctx context.Context, tx *sqlx.Tx, pet *model.Pet) error
		GetOrCreatePlaceholderBreed(ctx context.Context, petType model.PetType) (*model.Breed, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		ExistsByTypeAndTag(ctx context.Context, userID uuid.UUID, typ, tokenTag string) (bool, error)
		DeleteByTypeAndTag(ctx context.Context, userID uuid.UUID, typ, tokenTag string) error
		ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Notification, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		// GetPendingEventsWithLock returns new events plus failed ones whose
		// retry window has elapsed.
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
