package contact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Owner@Example.COM", "owner@example.com"},
		{"trims", "  owner@example.com  ", "owner@example.com"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEmail(tt.input))
		})
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain digits", "01012345678", "01012345678"},
		{"keeps leading plus", "+20 101 234 5678", "+201012345678"},
		{"strips formatting", "(010) 123-45678", "01012345678"},
		{"plus after spaces", "  +20-10-1234-5678", "+201012345678"},
		{"no digits", "abc", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestPhoneVariantsAreExactFormsOnly(t *testing.T) {
	variants := PhoneVariants("+201012345678")

	// Equality-comparable forms only; suffix windows live in PhoneSuffixes.
	assert.Equal(t, []string{"201012345678"}, variants)
}

func TestPhoneVariantsStripsLeadingZeros(t *testing.T) {
	variants := PhoneVariants("01012345678")

	assert.Equal(t, []string{"01012345678", "1012345678"}, variants)
}

func TestPhoneSuffixes(t *testing.T) {
	suffixes := PhoneSuffixes("+201012345678")

	// The 10/9/8 digit windows that survive a dropped country code or trunk
	// prefix.
	assert.Equal(t, []string{"1012345678", "012345678", "12345678"}, suffixes)
}

func TestPhoneSuffixesShortNumbersYieldNone(t *testing.T) {
	assert.Empty(t, PhoneSuffixes("1234567"))
	assert.Equal(t, []string{"1234567"}, PhoneVariants("1234567"))
}

func TestPhoneVariantsDeduplicates(t *testing.T) {
	variants := PhoneVariants("+201012345678", "201012345678", "")

	counts := make(map[string]int)
	for _, v := range variants {
		counts[v]++
	}
	for v, n := range counts {
		assert.Equal(t, 1, n, "variant %q appears %d times", v, n)
	}
}

func TestQueryForEmptyInputs(t *testing.T) {
	q := QueryFor("", "")
	assert.True(t, q.Empty())
}

func TestQueryForPopulatesVariantsAndSuffixes(t *testing.T) {
	q := QueryFor("Owner@Example.com", "+201012345678")

	assert.Equal(t, "owner@example.com", q.Email)
	assert.Equal(t, []string{"201012345678"}, q.PhoneVariants)
	assert.Equal(t, []string{"1012345678", "012345678", "12345678"}, q.PhoneSuffixes)
}
