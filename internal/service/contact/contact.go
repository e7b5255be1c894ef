package contact

import (
	"strings"

	"github.com/petmatch/clinic-api/internal/model"
)

// NormalizeEmail trims and lowercases an email address. Returns "" when the
// input is empty or whitespace.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips everything but digits from a phone string, keeping a
// leading "+" when the original starts with one. Returns "" when no digits
// remain. It never fails: clinic staff and app users type phone numbers in
// every imaginable format.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, ch := range phone {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(strings.TrimSpace(phone), "+") {
		return "+" + digits
	}
	return digits
}

// suffixLengths are the trailing-digit windows tolerated during matching.
// A local number with a missing country code keeps its last 10 digits; 9 and
// 8 cover region formats that also drop a trunk prefix.
var suffixLengths = []int{10, 9, 8}

// PhoneVariants builds the exact-match representations for the given phone
// strings: the full digit string and the digit string with leading zeros
// stripped. These are compared for equality only; loose matching runs on
// PhoneSuffixes. Duplicates are removed; order is stable for deterministic
// queries.
func PhoneVariants(phones ...string) []string {
	var variants []string
	add := dedupAppender(&variants)

	for _, phone := range phones {
		digits := bareDigits(phone)
		if digits == "" {
			continue
		}
		add(digits)
		add(strings.TrimLeft(digits, "0"))
	}
	return variants
}

// PhoneSuffixes builds the 10/9/8-digit trailing windows of each number for
// loose matching. Numbers of 7 digits or fewer are too short to identify a
// line without context and yield no suffixes.
func PhoneSuffixes(phones ...string) []string {
	var suffixes []string
	add := dedupAppender(&suffixes)

	for _, phone := range phones {
		digits := bareDigits(phone)
		if len(digits) <= 7 {
			continue
		}
		for _, n := range suffixLengths {
			if len(digits) > n {
				add(digits[len(digits)-n:])
			}
		}
	}
	return suffixes
}

func bareDigits(phone string) string {
	return strings.TrimPrefix(NormalizePhone(phone), "+")
}

func dedupAppender(out *[]string) func(string) {
	seen := make(map[string]struct{})
	return func(v string) {
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		*out = append(*out, v)
	}
}

// QueryFor assembles the matcher input for a phone/email pair. Either part
// may be empty; an entirely empty query must never wildcard-match, which
// callers enforce through ContactQuery.Empty.
func QueryFor(email string, phones ...string) model.ContactQuery {
	return model.ContactQuery{
		Email:         NormalizeEmail(email),
		PhoneVariants: PhoneVariants(phones...),
		PhoneSuffixes: PhoneSuffixes(phones...),
	}
}
