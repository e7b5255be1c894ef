package invite

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/service/contact"
	apperrors "github.com/petmatch/clinic-api/pkg/errors"
	"github.com/petmatch/clinic-api/pkg/logger"
)

// --- fakes -----------------------------------------------------------------

type fakeInviteRepo struct {
	invites map[uuid.UUID]*model.Invite
	tokens  int
}

func newFakeInviteRepo() *fakeInviteRepo {
	return &fakeInviteRepo{invites: make(map[uuid.UUID]*model.Invite)}
}

func (f *fakeInviteRepo) GenerateToken(ctx context.Context) (string, error) {
	f.tokens++
	return uuid.NewString()[:12], nil
}

func (f *fakeInviteRepo) GetByToken(ctx context.Context, token string) (*model.Invite, error) {
	for _, inv := range f.invites {
		if inv.Token == token {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeInviteRepo) FindPendingForPatient(ctx context.Context, patientID uuid.UUID) (*model.Invite, error) {
	for _, inv := range f.invites {
		if inv.PatientID == patientID && inv.Status == model.InviteStatusPending {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeInviteRepo) FindPendingMatching(ctx context.Context, query model.ContactQuery) ([]*model.Invite, error) {
	if query.Empty() {
		return nil, nil
	}
	var out []*model.Invite
	for _, inv := range f.invites {
		if inv.Status != model.InviteStatusPending {
			continue
		}
		if matchesContact(inv, query) {
			copied := *inv
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func matchesContact(inv *model.Invite, query model.ContactQuery) bool {
	if query.Email != "" && inv.Email != nil && *inv.Email == query.Email {
		return true
	}
	if inv.Phone == nil {
		return false
	}
	return phoneMatches(*inv.Phone, query)
}

// phoneMatches mirrors the storage predicate: exact variants compare by
// equality, suffix windows match anywhere in the stored number.
func phoneMatches(phone string, query model.ContactQuery) bool {
	for _, variant := range query.PhoneVariants {
		if phone == variant {
			return true
		}
	}
	for _, suffix := range query.PhoneSuffixes {
		if strings.Contains(phone, suffix) {
			return true
		}
	}
	return false
}

func (f *fakeInviteRepo) ListForRecipient(ctx context.Context, accountID uuid.UUID, status model.InviteStatus) ([]*model.Invite, error) {
	var out []*model.Invite
	for _, inv := range f.invites {
		if inv.RecipientID == nil || *inv.RecipientID != accountID {
			continue
		}
		if status != "" && inv.Status != status {
			continue
		}
		copied := *inv
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeInviteRepo) Create(ctx context.Context, invite *model.Invite) error {
	invite.CreatedAt = time.Now()
	invite.UpdatedAt = time.Now()
	copied := *invite
	f.invites[invite.ID] = &copied
	return nil
}

func (f *fakeInviteRepo) UpdateFields(ctx context.Context, invite *model.Invite, fields ...string) error {
	stored, ok := f.invites[invite.ID]
	if !ok {
		return errors.New("invite not found")
	}
	for _, field := range fields {
		switch field {
		case "phone":
			stored.Phone = invite.Phone
		case "email":
			stored.Email = invite.Email
		case "intended_pet_id":
			stored.IntendedPetID = invite.IntendedPetID
		}
	}
	stored.UpdatedAt = time.Now()
	return nil
}

func (f *fakeInviteRepo) ClaimIfUnbound(ctx context.Context, inviteID, accountID uuid.UUID, at time.Time) (bool, error) {
	inv, ok := f.invites[inviteID]
	if !ok || inv.Status != model.InviteStatusPending {
		return false, nil
	}
	if inv.RecipientID != nil && *inv.RecipientID != accountID {
		return false, nil
	}
	inv.RecipientID = &accountID
	if inv.ClaimedAt == nil {
		inv.ClaimedAt = &at
	}
	return true, nil
}

func (f *fakeInviteRepo) ResolveTx(ctx context.Context, tx *sqlx.Tx, inviteID uuid.UUID, status model.InviteStatus, recipientID uuid.UUID, at time.Time) (bool, error) {
	inv, ok := f.invites[inviteID]
	if !ok || inv.Status != model.InviteStatusPending {
		return false, nil
	}
	inv.Status = status
	inv.RecipientID = &recipientID
	if status == model.InviteStatusAccepted {
		inv.AcceptedAt = &at
	} else {
		inv.DeclinedAt = &at
	}
	return true, nil
}

func (f *fakeInviteRepo) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return fn(nil)
}

func (f *fakeInviteRepo) pendingCount(patientID uuid.UUID) int {
	n := 0
	for _, inv := range f.invites {
		if inv.PatientID == patientID && inv.Status == model.InviteStatusPending {
			n++
		}
	}
	return n
}

type fakePatientRepo struct {
	patients map[uuid.UUID]*model.PatientRecord
	links    int
}

func newFakePatientRepo() *fakePatientRepo {
	return &fakePatientRepo{patients: make(map[uuid.UUID]*model.PatientRecord)}
}

func (f *fakePatientRepo) Get(ctx context.Context, id uuid.UUID) (*model.PatientRecord, error) {
	if p, ok := f.patients[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePatientRepo) List(ctx context.Context, clinicID uuid.UUID) ([]*model.PatientRecord, error) {
	return nil, nil
}

func (f *fakePatientRepo) Create(ctx context.Context, p *model.PatientRecord) error {
	f.patients[p.ID] = p
	return nil
}

func (f *fakePatientRepo) Update(ctx context.Context, p *model.PatientRecord) error {
	f.patients[p.ID] = p
	return nil
}

func (f *fakePatientRepo) LinkTx(ctx context.Context, tx *sqlx.Tx, patientID, userID, petID uuid.UUID) error {
	p, ok := f.patients[patientID]
	if !ok {
		return errors.New("patient not found")
	}
	p.LinkedUserID = &userID
	p.LinkedPetID = &petID
	f.links++
	return nil
}

type fakeClinicRepo struct {
	clinics map[uuid.UUID]*model.Clinic
}

func (f *fakeClinicRepo) Get(ctx context.Context, id uuid.UUID) (*model.Clinic, error) {
	if c, ok := f.clinics[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}
func (f *fakeClinicRepo) List(ctx context.Context) ([]*model.Clinic, error) { return nil, nil }

func (f *fakeClinicRepo) Create(ctx context.Context, c *model.Clinic) error {
	f.clinics[c.ID] = c
	return nil
}

type fakeAccountRepo struct {
	accounts []*model.Account
}

func (f *fakeAccountRepo) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	for _, a := range f.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	for _, a := range f.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccountRepo) FindByContact(ctx context.Context, query model.ContactQuery) ([]*model.Account, error) {
	if query.Empty() {
		return nil, nil
	}
	var out []*model.Account
	for _, a := range f.accounts {
		if query.Email != "" && contact.NormalizeEmail(a.Email) == query.Email {
			out = append(out, a)
			continue
		}
		if phoneMatches(a.Phone, query) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) Create(ctx context.Context, a *model.Account) error {
	f.accounts = append(f.accounts, a)
	return nil
}

func (f *fakeAccountRepo) Update(ctx context.Context, a *model.Account) error { return nil }

type fakeOutboxRepo struct {
	events []*model.OutboxEvent
}

func (f *fakeOutboxRepo) Create(ctx context.Context, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeOutboxRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeOutboxRepo) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	return nil, nil
}

func (f *fakeOutboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string, retryAt *time.Time) error {
	return nil
}

func (f *fakeOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeOutboxRepo) typesSeen() []string {
	var out []string
	for _, e := range f.events {
		out = append(out, e.EventType)
	}
	return out
}

type fakeNotifier struct {
	notified map[string]int // accountID|token -> count
	removed  []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{notified: make(map[string]int)}
}

func (f *fakeNotifier) NotifyInvite(ctx context.Context, accountID uuid.UUID, invite *model.Invite, clinicName, patientName string) error {
	f.notified[accountID.String()+"|"+invite.Token]++
	return nil
}

func (f *fakeNotifier) RemoveInviteNotification(ctx context.Context, accountID uuid.UUID, token string) error {
	f.removed = append(f.removed, token)
	return nil
}

func (f *fakeNotifier) ListForUser(ctx context.Context, accountID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	return nil, nil
}

type fakeReconciler struct {
	pets     map[uuid.UUID]*model.Pet
	resolved int
}

func newFakeReconciler() *fakeReconciler {
	return &fakeReconciler{pets: make(map[uuid.UUID]*model.Pet)}
}

func (f *fakeReconciler) Resolve(ctx context.Context, tx *sqlx.Tx, patient *model.PatientRecord, clinic *model.Clinic, accountID uuid.UUID, intendedPetID *uuid.UUID) (*model.Pet, error) {
	f.resolved++
	for _, p := range f.pets {
		if p.OwnerID == accountID && p.Name == patient.Name {
			return p, nil
		}
	}
	pet := &model.Pet{Base: model.Base{ID: uuid.New()}, OwnerID: accountID, Name: patient.Name}
	f.pets[pet.ID] = pet
	return pet, nil
}

// --- fixture ---------------------------------------------------------------

type fixture struct {
	svc        *Service
	invites    *fakeInviteRepo
	patients   *fakePatientRepo
	clinics    *fakeClinicRepo
	accounts   *fakeAccountRepo
	outbox     *fakeOutboxRepo
	notifier   *fakeNotifier
	reconciler *fakeReconciler
	clinic     *model.Clinic
	patient    *model.PatientRecord
	owner      *model.ClientRecord
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		invites:    newFakeInviteRepo(),
		patients:   newFakePatientRepo(),
		clinics:    &fakeClinicRepo{clinics: make(map[uuid.UUID]*model.Clinic)},
		accounts:   &fakeAccountRepo{},
		outbox:     &fakeOutboxRepo{},
		notifier:   newFakeNotifier(),
		reconciler: newFakeReconciler(),
	}

	f.clinic = &model.Clinic{Base: model.Base{ID: uuid.New()}, Name: "Happy Paws", Address: "Cairo"}
	f.clinics.clinics[f.clinic.ID] = f.clinic

	phone := "+201012345678"
	f.owner = &model.ClientRecord{
		Base:     model.Base{ID: uuid.New()},
		ClinicID: f.clinic.ID,
		FullName: "Sara",
		Phone:    &phone,
	}
	f.patient = &model.PatientRecord{
		Base:     model.Base{ID: uuid.New()},
		ClinicID: f.clinic.ID,
		OwnerID:  f.owner.ID,
		Name:     "Milo",
		Species:  "cat",
	}
	f.patients.patients[f.patient.ID] = f.patient

	f.svc = NewService(
		f.invites, f.patients, f.clinics, f.accounts, f.outbox,
		f.notifier, f.reconciler,
		Config{LinkBase: "https://app.petmatch.com/invite", DownloadURL: "https://petmatch.com/get"},
		logger.NewLogger(nil),
	)
	return f
}

func (f *fixture) account(email, phone string) *model.Account {
	a := &model.Account{Base: model.Base{ID: uuid.New()}, Email: email, Phone: phone}
	f.accounts.accounts = append(f.accounts.accounts, a)
	return a
}

// --- tests -----------------------------------------------------------------

func TestCreateOrRefreshKeepsSinglePendingInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateOrRefresh(ctx, f.patient, f.owner)
	require.NoError(t, err)

	newPhone := "+201099999999"
	f.owner.Phone = &newPhone
	second, err := f.svc.CreateOrRefresh(ctx, f.patient, f.owner)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Token, second.Token)
	assert.Equal(t, 1, f.invites.pendingCount(f.patient.ID))
	require.NotNil(t, f.invites.invites[first.ID].Phone)
	assert.Equal(t, "+201099999999", *f.invites.invites[first.ID].Phone)
}

func TestCreateOrRefreshSnapshotsNormalizedContact(t *testing.T) {
	f := newFixture(t)
	raw := "+20 (101) 234-5678"
	f.owner.Phone = &raw
	email := " Sara@Example.COM "
	f.owner.Email = &email

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	require.NotNil(t, invite.Phone)
	assert.Equal(t, "+201012345678", *invite.Phone)
	require.NotNil(t, invite.Email)
	assert.Equal(t, "sara@example.com", *invite.Email)
}

func TestCreateClaimsImmediatelyForMatchingAccount(t *testing.T) {
	f := newFixture(t)
	account := f.account("sara@example.com", "01012345678")

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	stored := f.invites.invites[invite.ID]
	require.NotNil(t, stored.RecipientID)
	assert.Equal(t, account.ID, *stored.RecipientID)
	assert.Equal(t, model.InviteStatusPending, stored.Status)
	assert.Equal(t, 1, f.notifier.notified[account.ID.String()+"|"+stored.Token])
	assert.Contains(t, f.outbox.typesSeen(), model.EventInviteCreated)
	assert.Contains(t, f.outbox.typesSeen(), model.EventInviteClaimed)
}

func TestSweepSkipsInviteBoundToOtherAccount(t *testing.T) {
	f := newFixture(t)
	first := f.account("first@example.com", "+201012345678")

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)
	require.Equal(t, first.ID, *f.invites.invites[invite.ID].RecipientID)

	// A second account with the same number must not steal the claim.
	second := f.account("second@example.com", "+201012345678")
	f.svc.ClaimAllPendingForAccount(context.Background(), second)

	assert.Equal(t, first.ID, *f.invites.invites[invite.ID].RecipientID)
	assert.Zero(t, f.notifier.notified[second.ID.String()+"|"+invite.Token])
}

func TestSweepIsIdempotentForSameAccount(t *testing.T) {
	f := newFixture(t)
	account := f.account("sara@example.com", "+201012345678")

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	f.svc.ClaimAllPendingForAccount(context.Background(), account)
	f.svc.ClaimAllPendingForAccount(context.Background(), account)

	stored := f.invites.invites[invite.ID]
	assert.Equal(t, account.ID, *stored.RecipientID)
	firstClaim := *stored.ClaimedAt
	assert.Equal(t, firstClaim, *stored.ClaimedAt)
}

func TestSweepMatchesPhoneSuffix(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	// Registered without the country code.
	account := f.account("other@example.com", "01012345678")
	f.svc.ClaimAllPendingForAccount(context.Background(), account)

	stored := f.invites.invites[invite.ID]
	require.NotNil(t, stored.RecipientID)
	assert.Equal(t, account.ID, *stored.RecipientID)
}

func TestSweepShortNumberMatchesExactlyOrNotAtAll(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	// "2345678" is a substring of the snapshot "+201012345678", but short
	// numbers carry no suffix windows and must not claim by containment.
	account := f.account("short@example.com", "2345678")
	f.svc.ClaimAllPendingForAccount(context.Background(), account)

	assert.Nil(t, f.invites.invites[invite.ID].RecipientID)
	assert.Zero(t, f.notifier.notified[account.ID.String()+"|"+invite.Token])
}

func TestAcceptLinksPatientAndResolvesPet(t *testing.T) {
	f := newFixture(t)
	account := f.account("sara@example.com", "+201012345678")

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	view, err := f.svc.Respond(context.Background(), account.ID, invite.Token, true)
	require.NoError(t, err)

	assert.Equal(t, model.InviteStatusAccepted, view.Status)
	assert.NotNil(t, view.AcceptedAt)
	assert.Equal(t, 1, f.patients.links)
	require.NotNil(t, f.patients.patients[f.patient.ID].LinkedUserID)
	assert.Equal(t, account.ID, *f.patients.patients[f.patient.ID].LinkedUserID)
	assert.NotNil(t, f.patients.patients[f.patient.ID].LinkedPetID)
	assert.Contains(t, f.outbox.typesSeen(), model.EventInviteAccepted)
	assert.Contains(t, f.notifier.removed, invite.Token)
}

func TestAcceptTwiceDoesNotDuplicatePetOrLink(t *testing.T) {
	f := newFixture(t)
	account := f.account("sara@example.com", "+201012345678")

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), account.ID, invite.Token, true)
	require.NoError(t, err)
	view, err := f.svc.Respond(context.Background(), account.ID, invite.Token, true)
	require.NoError(t, err)

	assert.Equal(t, model.InviteStatusAccepted, view.Status)
	assert.Equal(t, 1, f.reconciler.resolved)
	assert.Equal(t, 1, f.patients.links)
	assert.Len(t, f.reconciler.pets, 1)
}

func TestDeclineDoesNotLink(t *testing.T) {
	f := newFixture(t)
	account := f.account("sara@example.com", "+201012345678")

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	view, err := f.svc.Respond(context.Background(), account.ID, invite.Token, false)
	require.NoError(t, err)

	assert.Equal(t, model.InviteStatusDeclined, view.Status)
	assert.NotNil(t, view.DeclinedAt)
	assert.Zero(t, f.patients.links)
	assert.Zero(t, f.reconciler.resolved)
	assert.Nil(t, f.patients.patients[f.patient.ID].LinkedUserID)
	assert.Contains(t, f.outbox.typesSeen(), model.EventInviteDeclined)
}

func TestRespondAfterDeclineIsNoOp(t *testing.T) {
	f := newFixture(t)
	account := f.account("sara@example.com", "+201012345678")

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	_, err = f.svc.Respond(context.Background(), account.ID, invite.Token, false)
	require.NoError(t, err)

	view, err := f.svc.Respond(context.Background(), account.ID, invite.Token, true)
	require.NoError(t, err)
	assert.Equal(t, model.InviteStatusDeclined, view.Status)
	assert.Zero(t, f.patients.links)
}

func TestRespondForbiddenForOtherAccount(t *testing.T) {
	f := newFixture(t)
	owner := f.account("sara@example.com", "+201012345678")
	stranger := f.account("mallory@example.com", "+15550001111")

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)
	require.Equal(t, owner.ID, *f.invites.invites[invite.ID].RecipientID)

	_, err = f.svc.Respond(context.Background(), stranger.ID, invite.Token, true)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrForbidden, appErr.Code)
}

func TestRespondUnknownTokenNotFound(t *testing.T) {
	f := newFixture(t)
	account := f.account("sara@example.com", "+201012345678")

	_, err := f.svc.Respond(context.Background(), account.ID, "no-such-token", true)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrNotFound, appErr.Code)
}

func TestListForAccountSweepsFirst(t *testing.T) {
	f := newFixture(t)

	invite, err := f.svc.CreateOrRefresh(context.Background(), f.patient, f.owner)
	require.NoError(t, err)

	// Account registers after the invite exists; listing must surface it.
	account := f.account("late@example.com", "+201012345678")
	views, err := f.svc.ListForAccount(context.Background(), account, "")
	require.NoError(t, err)

	require.Len(t, views, 1)
	assert.Equal(t, invite.Token, views[0].Token)
	assert.Equal(t, "Happy Paws", views[0].ClinicName)
	assert.Equal(t, "Milo", views[0].PatientName)
	assert.Equal(t, "https://app.petmatch.com/invite/"+invite.Token, views[0].InviteLink)
	assert.Contains(t, views[0].InviteMessage, "Happy Paws")
	assert.Contains(t, views[0].InviteMessage, "Milo")
	assert.Contains(t, views[0].InviteMessage, views[0].InviteLink)
}

func TestEndToEndMilo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Staff registers Milo; no app account exists yet.
	invite, err := f.svc.CreateOrRefresh(ctx, f.patient, f.owner)
	require.NoError(t, err)
	assert.Nil(t, f.invites.invites[invite.ID].RecipientID)

	// Sara installs the app and registers with the same number.
	sara := f.account("sara@example.com", "01012345678")
	f.svc.ClaimAllPendingForAccount(ctx, sara)
	require.NotNil(t, f.invites.invites[invite.ID].RecipientID)
	assert.Equal(t, 1, f.notifier.notified[sara.ID.String()+"|"+invite.Token])

	// She accepts from the notification.
	view, err := f.svc.Respond(ctx, sara.ID, invite.Token, true)
	require.NoError(t, err)
	assert.Equal(t, model.InviteStatusAccepted, view.Status)

	linked := f.patients.patients[f.patient.ID]
	require.NotNil(t, linked.LinkedUserID)
	require.NotNil(t, linked.LinkedPetID)
	assert.Equal(t, sara.ID, *linked.LinkedUserID)

	pet := f.reconciler.pets[*linked.LinkedPetID]
	require.NotNil(t, pet)
	assert.Equal(t, "Milo", pet.Name)
	assert.Equal(t, sara.ID, pet.OwnerID)
}
