package postgres

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
)

const (
	// 9 random bytes encode to 12 URL-safe characters.
	tokenBytes       = 9
	tokenMaxAttempts = 5
	fallbackHexBytes = 16
)

type inviteRepository struct {
	BaseRepository
}

func NewInviteRepository(db *sqlx.DB) repository.InviteRepository {
	return &inviteRepository{BaseRepository: NewBaseRepository(db)}
}

// GenerateToken returns a short URL-safe token that is guaranteed not to be
// present in storage. Collisions on the short form are retried a bounded
// number of times before falling back to a 32-hex-character token.
func (r *inviteRepository) GenerateToken(ctx context.Context) (string, error) {
	return generateUniqueToken(func(token string) (bool, error) {
		return r.tokenExists(ctx, token)
	})
}

func generateUniqueToken(exists func(string) (bool, error)) (string, error) {
	for i := 0; i < tokenMaxAttempts; i++ {
		buf := make([]byte, tokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		token := base64.RawURLEncoding.EncodeToString(buf)

		taken, err := exists(token)
		if err != nil {
			return "", err
		}
		if !taken {
			return token, nil
		}
	}

	buf := make([]byte, fallbackHexBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	token := hex.EncodeToString(buf)
	taken, err := exists(token)
	if err != nil {
		return "", err
	}
	if taken {
		return "", fmt.Errorf("token collision on fallback token")
	}
	return token, nil
}

func (r *inviteRepository) tokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM invites WHERE token = $1)`
	if err := r.db.GetContext(ctx, &exists, query, token); err != nil {
		return false, fmt.Errorf("failed to check token uniqueness: %w", err)
	}
	return exists, nil
}

func (r *inviteRepository) GetByToken(ctx context.Context, token string) (*model.Invite, error) {
	query := `SELECT * FROM invites WHERE token = $1`
	var invite model.Invite
	if err := r.db.GetContext(ctx, &invite, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get invite by token: %w", err)
	}
	return &invite, nil
}

func (r *inviteRepository) FindPendingForPatient(ctx context.Context, patientID uuid.UUID) (*model.Invite, error) {
	query := `
		SELECT * FROM invites
		WHERE patient_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var invite model.Invite
	err := r.db.GetContext(ctx, &invite, query, patientID, model.InviteStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending invite: %w", err)
	}
	return &invite, nil
}

// FindPendingMatching returns pending invites whose contact snapshot matches
// the query: email equality, phone variant equality, or a suffix window by
// containment or ends-with. Predicates are composed as parameterized OR
// clauses; an empty query matches nothing.
func (r *inviteRepository) FindPendingMatching(ctx context.Context, query model.ContactQuery) ([]*model.Invite, error) {
	if query.Empty() {
		return nil, nil
	}

	clauses, args := contactClauses(query, "email", "phone", 2)
	sqlQuery := fmt.Sprintf(`
		SELECT DISTINCT * FROM invites
		WHERE status = $1 AND (%s)
		ORDER BY created_at
	`, strings.Join(clauses, " OR "))
	args = append([]interface{}{model.InviteStatusPending}, args...)

	var invites []*model.Invite
	if err := r.db.SelectContext(ctx, &invites, sqlQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to match pending invites: %w", err)
	}
	return invites, nil
}

func (r *inviteRepository) ListForRecipient(ctx context.Context, accountID uuid.UUID, status model.InviteStatus) ([]*model.Invite, error) {
	var invites []*model.Invite
	if status == "" {
		query := `SELECT * FROM invites WHERE recipient_id = $1 ORDER BY created_at DESC`
		if err := r.db.SelectContext(ctx, &invites, query, accountID); err != nil {
			return nil, fmt.Errorf("failed to list invites: %w", err)
		}
		return invites, nil
	}
	query := `SELECT * FROM invites WHERE recipient_id = $1 AND status = $2 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &invites, query, accountID, status); err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return invites, nil
}

func (r *inviteRepository) Create(ctx context.Context, invite *model.Invite) error {
	query := `
		INSERT INTO invites (
			id, clinic_id, patient_id, owner_record_id, token, status, phone, email,
			recipient_id, intended_pet_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	invite.CreatedAt = time.Now()
	invite.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		invite.ID,
		invite.ClinicID,
		invite.PatientID,
		invite.OwnerRecordID,
		invite.Token,
		invite.Status,
		invite.Phone,
		invite.Email,
		invite.RecipientID,
		invite.IntendedPetID,
		invite.CreatedAt,
		invite.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

var inviteColumns = map[string]func(*model.Invite) interface{}{
	"phone":           func(i *model.Invite) interface{} { return i.Phone },
	"email":           func(i *model.Invite) interface{} { return i.Email },
	"status":          func(i *model.Invite) interface{} { return i.Status },
	"recipient_id":    func(i *model.Invite) interface{} { return i.RecipientID },
	"intended_pet_id": func(i *model.Invite) interface{} { return i.IntendedPetID },
	"claimed_at":      func(i *model.Invite) interface{} { return i.ClaimedAt },
	"accepted_at":     func(i *model.Invite) interface{} { return i.AcceptedAt },
	"declined_at":     func(i *model.Invite) interface{} { return i.DeclinedAt },
}

// UpdateFields performs a partial update of the named columns, always bumping
// updated_at.
func (r *inviteRepository) UpdateFields(ctx context.Context, invite *model.Invite, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}

	sets := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+2)
	for _, field := range fields {
		getter, ok := inviteColumns[field]
		if !ok {
			return fmt.Errorf("unknown invite field %q", field)
		}
		args = append(args, getter(invite))
		sets = append(sets, fmt.Sprintf("%s = $%d", field, len(args)))
	}

	invite.UpdatedAt = time.Now()
	args = append(args, invite.UpdatedAt)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, invite.ID)

	query := fmt.Sprintf("UPDATE invites SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update invite: %w", err)
	}
	return nil
}

// ClaimIfUnbound is the atomic decision point for concurrent claims: the
// conditional UPDATE succeeds only while the invite is unclaimed or already
// bound to this same account.
func (r *inviteRepository) ClaimIfUnbound(ctx context.Context, inviteID, accountID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE invites
		SET recipient_id = $1,
			claimed_at = COALESCE(claimed_at, $2),
			updated_at = $2
		WHERE id = $3
			AND status = $4
			AND (recipient_id IS NULL OR recipient_id = $1)
	`
	res, err := r.db.ExecContext(ctx, query, accountID, at, inviteID, model.InviteStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim invite: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return rows == 1, nil
}

// ResolveTx flips a pending invite into a terminal status within the caller's
// transaction. Returns false when another request already resolved it.
func (r *inviteRepository) ResolveTx(ctx context.Context, tx *sqlx.Tx, inviteID uuid.UUID, status model.InviteStatus, recipientID uuid.UUID, at time.Time) (bool, error) {
	var column string
	switch status {
	case model.InviteStatusAccepted:
		column = "accepted_at"
	case model.InviteStatusDeclined:
		column = "declined_at"
	default:
		return false, fmt.Errorf("invalid terminal status %q", status)
	}

	query := fmt.Sprintf(`
		UPDATE invites
		SET status = $1,
			recipient_id = $2,
			claimed_at = COALESCE(claimed_at, $3),
			%s = $3,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`, column)

	res, err := tx.ExecContext(ctx, query, status, recipientID, at, inviteID, model.InviteStatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to resolve invite: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read resolve result: %w", err)
	}
	return rows == 1, nil
}

// contactClauses builds the OR predicate shared by invite and account
// matching. Placeholders start at argOffset to leave room for leading
// parameters in the caller's query.
func contactClauses(query model.ContactQuery, emailCol, phoneCol string, argOffset int) ([]string, []interface{}) {
	var clauses []string
	var args []interface{}

	next := func(v interface{}) int {
		args = append(args, v)
		return argOffset + len(args) - 1
	}

	if query.Email != "" {
		clauses = append(clauses, fmt.Sprintf("lower(%s) = $%d", emailCol, next(query.Email)))
	}
	for _, variant := range query.PhoneVariants {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", phoneCol, next(variant)))
	}
	// Suffix windows tolerate stored numbers that carry extra prefix digits
	// (country code, trunk zero) around the same line. Exact variants never
	// match loosely.
	for _, suffix := range query.PhoneSuffixes {
		n := next(suffix)
		clauses = append(clauses, fmt.Sprintf("%s LIKE '%%' || $%d || '%%'", phoneCol, n))
		clauses = append(clauses, fmt.Sprintf("%s LIKE '%%' || $%d", phoneCol, n))
	}

	return clauses, args
}
