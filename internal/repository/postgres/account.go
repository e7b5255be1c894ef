package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
)

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `SELECT * FROM accounts WHERE id = $1`
	var account model.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT * FROM accounts WHERE lower(email) = lower($1)`
	var account model.Account
	if err := r.db.GetContext(ctx, &account, query, email); err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return &account, nil
}

// FindByContact is the identity matcher's data-layer query: email equality,
// phone variant equality, or a loose suffix-window match, all parameterized.
// False positives are acceptable (the user confirms by accepting or
// declining); silently dropping a real match is not, hence the wide OR.
func (r *accountRepository) FindByContact(ctx context.Context, query model.ContactQuery) ([]*model.Account, error) {
	if query.Empty() {
		return nil, nil
	}

	clauses, args := contactClauses(query, "email", "phone", 1)
	sqlQuery := fmt.Sprintf(`
		SELECT DISTINCT * FROM accounts
		WHERE %s
		ORDER BY created_at
	`, strings.Join(clauses, " OR "))

	var accounts []*model.Account
	if err := r.db.SelectContext(ctx, &accounts, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to find accounts by contact: %w", err)
	}
	return accounts, nil
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (id, email, phone, full_name, password_hash, fcm_token, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.Phone,
		account.FullName,
		account.PasswordHash,
		account.FCMToken,
		account.Status,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	query := `
		UPDATE accounts
		SET email = $1, phone = $2, full_name = $3, fcm_token = $4, status = $5,
			last_login_at = $6, updated_at = $7
		WHERE id = $8
	`
	account.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, query,
		account.Email,
		account.Phone,
		account.FullName,
		account.FCMToken,
		account.Status,
		account.LastLoginAt,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}
