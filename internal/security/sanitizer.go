// Package security provides input sanitization for public form fields.
package security

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Link errors
var (
	ErrInvalidURL    = errors.New("invalid URL format")
	ErrInvalidScheme = errors.New("URL must use http or https scheme")
)

// HoneypotField is the hidden form field bots tend to fill in. A non-empty
// value means the submission is discarded without feedback.
const HoneypotField = "website_url"

// Length limits.
const (
	DefaultMaxTextLength = 10000
	DefaultMaxURLLength  = 500
	MaxEmailLength       = 254
)

var (
	angleBrackets  = regexp.MustCompile(`[<>]`)
	javascriptURI  = regexp.MustCompile(`(?i)javascript:`)
	inlineHandlers = regexp.MustCompile(`(?i)on\w+\s*=`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// ValidateURL checks that rawURL parses as an absolute http(s) link with a
// host. Any host is accepted, private and loopback addresses included.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrInvalidScheme
	}
	if u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// SanitizeText trims input, removes angle brackets, javascript: prefixes and
// inline event handler patterns (both case-insensitive) and caps the result
// at max runes. A non-positive max means DefaultMaxTextLength.
func SanitizeText(input string, max int) string {
	if max <= 0 {
		max = DefaultMaxTextLength
	}
	s := strings.TrimSpace(input)
	s = angleBrackets.ReplaceAllString(s, "")
	s = javascriptURI.ReplaceAllString(s, "")
	s = inlineHandlers.ReplaceAllString(s, "")
	return truncate(s, max)
}

// SanitizeURL returns input trimmed and capped at 500 runes when it is an
// http(s) link, and "" otherwise.
func SanitizeURL(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" || ValidateURL(trimmed) != nil {
		return ""
	}
	return truncate(trimmed, DefaultMaxURLLength)
}

// IsValidURL reports whether input is empty or an http(s) link.
func IsValidURL(input string) bool {
	if strings.TrimSpace(input) == "" {
		return true
	}
	return ValidateURL(input) == nil
}

// IsValidEmail reports whether email looks like local@domain.tld and fits
// in 254 bytes.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email)) && len(email) <= MaxEmailLength
}

// IsHoneypotTripped reports whether the hidden field was filled in.
func IsHoneypotTripped(value string) bool {
	return value != ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
