package account

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
	"github.com/petmatch/clinic-api/pkg/security"
)

// AccountService owns app-side account lifecycle. Registration and contact
// updates both finish with a pending-invite sweep so clinic invites created
// before the account existed attach themselves immediately.
type AccountService interface {
	Register(ctx context.Context, req *model.RegisterAccountRequest) (*model.Account, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.Account, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
	UpdateContact(ctx context.Context, id uuid.UUID, req *model.UpdateContactRequest) (*model.Account, error)
}

type Service struct {
	accounts repository.AccountRepository
	hasher   security.PasswordHasher
	invites  invite.Manager
	logger   *logger.Logger
}

func NewService(accounts repository.AccountRepository, hasher security.PasswordHasher, invites invite.Manager, logger *logger.Logger) *Service {
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		invites:  invites,
		logger:   logger,
	}
}

func (s *Service) Register(ctx context.Context, req *model.RegisterAccountRequest) (*model.Account, error) {
	email := contact.NormalizeEmail(req.Email)

	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if existing != nil {
		return nil, apperrors.Conflict("email already registered", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	account := &model.Account{
		Base:         model.Base{ID: uuid.New()},
		Email:        email,
		Phone:        contact.NormalizePhone(req.Phone),
		FullName:     req.FullName,
		PasswordHash: hash,
		Status:       string(model.AccountStatusActive),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.invites.ClaimAllPendingForAccount(ctx, account)
	return account, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, contact.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.Unauthorized(nil)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := s.hasher.Compare(account.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	now := time.Now()
	account.LastLoginAt = &now
	if err := s.accounts.Update(ctx, account); err != nil {
		s.logger.Warn("failed to record login time",
			"account_id", account.ID.String(), "error", err.Error())
	}

	return account, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("account", err)
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

// UpdateContact changes the contact fields invites match against, so a sweep
// runs afterwards to pick up invites the new details now reach.
func (s *Service) UpdateContact(ctx context.Context, id uuid.UUID, req *model.UpdateContactRequest) (*model.Account, error) {
	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	contactChanged := false
	if req.Email != nil {
		email := contact.NormalizeEmail(*req.Email)
		if email != account.Email {
			other, err := s.accounts.GetByEmail(ctx, email)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
			}
			if other != nil && other.ID != account.ID {
				return nil, apperrors.Conflict("email already registered", nil)
			}
			account.Email = email
			contactChanged = true
		}
	}
	if req.Phone != nil {
		phone := contact.NormalizePhone(*req.Phone)
		if phone != account.Phone {
			account.Phone = phone
			contactChanged = true
		}
	}
	if req.FCMToken != nil {
		account.FCMToken = req.FCMToken
	}

	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	if contactChanged {
		s.invites.ClaimAllPendingForAccount(ctx, account)
	}
	return account, nil
}
