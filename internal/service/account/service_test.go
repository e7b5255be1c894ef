package account

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petmatch/clinic-api/internal/model"
	apperrors "github.com/petmatch/clinic-api/pkg/errors"
	"github.com/petmatch/clinic-api/pkg/logger"
	"github.com/petmatch/clinic-api/pkg/security"
)

type fakeAccounts struct {
	byID map[uuid.UUID]*model.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: make(map[uuid.UUID]*model.Account)}
}

func (f *fakeAccounts) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	if a, ok := f.byID[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	for _, a := range f.byID {
		if a.Email == email {
			copied := *a
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAccounts) FindByContact(ctx context.Context, query model.ContactQuery) ([]*model.Account, error) {
	return nil, nil
}

func (f *fakeAccounts) Create(ctx context.Context, a *model.Account) error {
	f.byID[a.ID] = a
	return nil
}

func (f *fakeAccounts) Update(ctx context.Context, a *model.Account) error {
	f.byID[a.ID] = a
	return nil
}

type sweepRecorder struct {
	swept []uuid.UUID
}

func (r *sweepRecorder) CreateOrRefresh(ctx context.Context, patient *model.PatientRecord, owner *model.ClientRecord) (*model.Invite, error) {
	return nil, nil
}

func (r *sweepRecorder) ClaimAllPendingForAccount(ctx context.Context, account *model.Account) {
	r.swept = append(r.swept, account.ID)
}

func (r *sweepRecorder) Respond(ctx context.Context, accountID uuid.UUID, token string, accept bool) (*model.InviteView, error) {
	return nil, nil
}

func (r *sweepRecorder) ListForAccount(ctx context.Context, account *model.Account, status model.InviteStatus) ([]*model.InviteView, error) {
	return nil, nil
}

func (r *sweepRecorder) GetView(ctx context.Context, token string) (*model.InviteView, error) {
	return nil, nil
}

func newTestService() (*Service, *fakeAccounts, *sweepRecorder) {
	accounts := newFakeAccounts()
	sweeps := &sweepRecorder{}
	svc := NewService(accounts, security.NewBcryptHasher(4), sweeps, logger.NewLogger(nil))
	return svc, accounts, sweeps
}

func TestRegisterNormalizesContactAndSweeps(t *testing.T) {
	svc, _, sweeps := newTestService()

	account, err := svc.Register(context.Background(), &model.RegisterAccountRequest{
		Email:    " Sara@Example.COM ",
		Phone:    "+20 101 234 5678",
		FullName: "Sara",
		Password: "password123",
	})
	require.NoError(t, err)

	assert.Equal(t, "sara@example.com", account.Email)
	assert.Equal(t, "+201012345678", account.Phone)
	assert.NotEqual(t, "password123", account.PasswordHash)
	assert.Equal(t, []uuid.UUID{account.ID}, sweeps.swept)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	req := &model.RegisterAccountRequest{
		Email: "sara@example.com", Phone: "0101", FullName: "Sara", Password: "password123",
	}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
}

func TestLogin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterAccountRequest{
		Email: "sara@example.com", Phone: "0101", FullName: "Sara", Password: "password123",
	})
	require.NoError(t, err)

	account, err := svc.Login(ctx, &model.LoginRequest{Email: "Sara@Example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotNil(t, account.LastLoginAt)

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "sara@example.com", Password: "wrong-password"})
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrUnauthorized, appErr.Code)
}

func TestUpdateContactSweepsOnlyOnChange(t *testing.T) {
	svc, _, sweeps := newTestService()
	ctx := context.Background()

	account, err := svc.Register(ctx, &model.RegisterAccountRequest{
		Email: "sara@example.com", Phone: "01012345678", FullName: "Sara", Password: "password123",
	})
	require.NoError(t, err)
	require.Len(t, sweeps.swept, 1)

	// FCM token alone does not affect matching.
	token := "fcm-token"
	_, err = svc.UpdateContact(ctx, account.ID, &model.UpdateContactRequest{FCMToken: &token})
	require.NoError(t, err)
	assert.Len(t, sweeps.swept, 1)

	newPhone := "01099999999"
	updated, err := svc.UpdateContact(ctx, account.ID, &model.UpdateContactRequest{Phone: &newPhone})
	require.NoError(t, err)
	assert.Equal(t, "01099999999", updated.Phone)
	assert.Len(t, sweeps.swept, 2)
}
