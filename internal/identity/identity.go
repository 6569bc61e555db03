// Package identity derives profile fields from campus email addresses.
// Everything here is pure string manipulation; storage decides which
// derived values actually stick.
package identity

import (
	"strconv"
	"strings"
	"unicode"
)

// DerivedNames holds the first/last name guessed from an email local-part.
type DerivedNames struct {
	FirstName *string
	LastName  *string
}

// DeriveNames splits the local-part on '.', '_' and '-', strips digits
// from each token and title-cases the survivors. The first token becomes
// the first name, the second (if any) the last name. Nothing left after
// stripping means both stay nil.
func DeriveNames(email string) DerivedNames {
	local := localPart(email)

	var tokens []string
	for _, raw := range strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	}) {
		stripped := strings.Map(func(r rune) rune {
			if unicode.IsDigit(r) {
				return -1
			}
			return r
		}, raw)
		stripped = strings.TrimSpace(stripped)
		if stripped != "" {
			tokens = append(tokens, stripped)
		}
	}

	if len(tokens) == 0 {
		return DerivedNames{}
	}

	names := DerivedNames{FirstName: ptr(titleCase(tokens[0]))}
	if len(tokens) >= 2 {
		names.LastName = ptr(titleCase(tokens[1]))
	}
	return names
}

// DeriveUsername turns the email local-part into a username candidate:
// lowercase, invalid characters replaced with '_', runs of underscores
// collapsed, leading/trailing underscores trimmed. Returns "" when fewer
// than 3 characters remain; truncates to 20.
func DeriveUsername(email string) string {
	local := strings.ToLower(localPart(email))

	var b strings.Builder
	for _, r := range local {
		if isUsernameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := b.String()
	for strings.Contains(cleaned, "__") {
		cleaned = strings.ReplaceAll(cleaned, "__", "_")
	}
	cleaned = strings.Trim(cleaned, "_")

	if len(cleaned) < 3 {
		return ""
	}
	if len(cleaned) > 20 {
		cleaned = cleaned[:20]
	}
	return cleaned
}

// NormalizeUsername validates a user-chosen username: lowercase, only
// [a-z0-9_] kept (no underscore collapsing), length must land in [3,20].
// Returns "" when invalid.
func NormalizeUsername(input string) string {
	lowered := strings.ToLower(input)

	var b strings.Builder
	for _, r := range lowered {
		if isUsernameRune(r) {
			b.WriteRune(r)
		}
	}

	normalized := b.String()
	if len(normalized) < 3 || len(normalized) > 20 {
		return ""
	}
	return normalized
}

// UsernameCandidates lists the usernames to try for a base, in order:
// the base itself, then base truncated to 18 chars with suffixes _2.._9.
// Deliberately bounded; an empty base yields no candidates.
func UsernameCandidates(base string) []string {
	if base == "" {
		return nil
	}

	candidates := make([]string, 0, 9)
	candidates = append(candidates, base)

	stem := base
	if len(stem) > 18 {
		stem = stem[:18]
	}
	for i := 2; i <= 9; i++ {
		candidates = append(candidates, stem+"_"+strconv.Itoa(i))
	}
	return candidates
}

// ComputeDisplayName picks what to show for a user, in priority order:
// @username, "First Last", "First", the email local-part, then "Student".
func ComputeDisplayName(firstName, lastName *string, email string, username *string) string {
	if username != nil && *username != "" {
		return "@" + *username
	}

	first := trimmed(firstName)
	last := trimmed(lastName)
	if first != "" && last != "" {
		return first + " " + last
	}
	if first != "" {
		return first
	}

	if local := localPart(email); local != "" {
		return local
	}
	return "Student"
}

func localPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

func isUsernameRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func ptr(s string) *string { return &s }
