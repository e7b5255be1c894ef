package postgres

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petmatch/clinic-api/internal/model"
)

func TestGenerateUniqueTokenShortForm(t *testing.T) {
	token, err := generateUniqueToken(func(string) (bool, error) { return false, nil })
	require.NoError(t, err)
	assert.Len(t, token, 12)
}

func TestGenerateUniqueTokenUniqueOverMany(t *testing.T) {
	seen := make(map[string]struct{})
	exists := func(token string) (bool, error) {
		_, ok := seen[token]
		return ok, nil
	}

	for i := 0; i < 1000; i++ {
		token, err := generateUniqueToken(exists)
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup, "token %q issued twice", token)
		seen[token] = struct{}{}
	}
}

func TestGenerateUniqueTokenFallsBackAfterCollisions(t *testing.T) {
	calls := 0
	exists := func(token string) (bool, error) {
		calls++
		// Every short token collides; only the hex fallback is free.
		return len(token) == 12, nil
	}

	token, err := generateUniqueToken(exists)
	require.NoError(t, err)
	assert.Len(t, token, 32)
	assert.Equal(t, tokenMaxAttempts+1, calls)
}

func TestGenerateUniqueTokenPropagatesLookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := generateUniqueToken(func(string) (bool, error) { return false, boom })
	require.ErrorIs(t, err, boom)
}

func TestContactClausesExactVariantsGetEqualityOnly(t *testing.T) {
	clauses, args := contactClauses(model.ContactQuery{
		PhoneVariants: []string{"201012345678", "1012345678"},
	}, "email", "phone", 1)

	assert.Equal(t, []string{
		"phone = $1",
		"phone = $2",
	}, clauses)
	assert.Equal(t, []interface{}{"201012345678", "1012345678"}, args)
}

func TestContactClausesSuffixesGetLooseMatch(t *testing.T) {
	clauses, args := contactClauses(model.ContactQuery{
		PhoneSuffixes: []string{"1012345678"},
	}, "email", "phone", 1)

	assert.Equal(t, []string{
		"phone LIKE '%' || $1 || '%'",
		"phone LIKE '%' || $1",
	}, clauses)
	assert.Equal(t, []interface{}{"1012345678"}, args)
}

func TestContactClausesEmailVariantsAndSuffixesNumbering(t *testing.T) {
	clauses, args := contactClauses(model.ContactQuery{
		Email:         "owner@example.com",
		PhoneVariants: []string{"01012345678"},
		PhoneSuffixes: []string{"12345678"},
	}, "email", "phone", 2)

	assert.Equal(t, []string{
		"lower(email) = $2",
		"phone = $3",
		"phone LIKE '%' || $4 || '%'",
		"phone LIKE '%' || $4",
	}, clauses)
	assert.Equal(t, []interface{}{"owner@example.com", "01012345678", "12345678"}, args)
}
