package core

import (
	"net/url"
	"regexp"
	"strings"
)

// emailPattern is a shape check only: something@something.tld, no spaces.
// \p{Z} widens RE2's ASCII \s to Unicode separators such as NBSP.
var emailPattern = regexp.MustCompile(`^[^@\s\p{Z}\x{FEFF}]+@[^@\s\p{Z}\x{FEFF}]+\.[^@\s\p{Z}\x{FEFF}]+$`)

// ValidateSubmission checks a decoded JSON body. Checks run in order:
// honeypot, presence, types, email format. The first failure wins.
func ValidateSubmission(raw map[string]any) (Submission, error) {
	if truthy(raw["website"]) {
		return Submission{}, ErrHoneypot
	}

	name, email, message := raw["name"], raw["email"], raw["message"]
	if !truthy(name) || !truthy(email) || !truthy(message) {
		return Submission{}, ErrMissingFields
	}

	nameStr, ok1 := name.(string)
	emailStr, ok2 := email.(string)
	messageStr, ok3 := message.(string)
	if !ok1 || !ok2 || !ok3 {
		return Submission{}, ErrInvalidFieldTypes
	}

	if !emailPattern.MatchString(emailStr) {
		return Submission{}, ErrInvalidEmailFormat
	}

	return Submission{
		Name:    nameStr,
		Email:   emailStr,
		Message: messageStr,
	}, nil
}

// ValidateQuery extracts the single "query" parameter of a search request.
func ValidateQuery(values url.Values) (string, error) {
	queries, ok := values["query"]
	if !ok || len(queries) != 1 {
		return "", ErrMissingQuery
	}
	query := strings.TrimSpace(queries[0])
	if query == "" {
		return "", ErrMissingQuery
	}
	return query, nil
}

// truthy mirrors how loosely typed form payloads treat presence:
// null, "", false and 0 count as absent.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return true
	}
}
