package security

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSearchQueryLength defines the maximum allowed length for search queries, in runes
const MaxSearchQueryLength = 100

var (
	// ErrQueryTooLong is returned for queries longer than MaxSearchQueryLength
	ErrQueryTooLong = errors.New("search query too long")
	// ErrQueryInvalidChars is returned for queries containing characters outside the allowed set
	ErrQueryInvalidChars = errors.New("search query contains invalid characters")
)

// ValidateSearchQuery trims a user-supplied search term and rejects anything
// outside letters, digits, spaces and the punctuation found in names and emails.
// LIKE wildcards are accepted; EscapeLike makes them match literally.
func ValidateSearchQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	if utf8.RuneCountInString(query) > MaxSearchQueryLength {
		return "", ErrQueryTooLong
	}

	for _, char := range query {
		if !isValidSearchChar(char) {
			return "", ErrQueryInvalidChars
		}
	}

	return query, nil
}

// isValidSearchChar checks if a character is safe for search queries
func isValidSearchChar(char rune) bool {
	return unicode.IsLetter(char) || unicode.IsNumber(char) ||
		char == ' ' || char == '-' || char == '_' || char == '.' ||
		char == '@' || char == '+' || char == '\'' ||
		char == '%' || char == '\\'
}

// EscapeLike escapes LIKE wildcards so the term matches literally.
// Use together with `ESCAPE '\'`.
func EscapeLike(query string) string {
	if query == "" {
		return ""
	}

	query = strings.ReplaceAll(query, `\`, `\\`)
	query = strings.ReplaceAll(query, "%", `\%`)
	query = strings.ReplaceAll(query, "_", `\_`)

	return query
}
