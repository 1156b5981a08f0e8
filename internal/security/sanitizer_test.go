package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims", "  hello  ", "hello"},
		{"strips angle brackets", "<b>bold</b>", "bbold/b"},
		{"strips script tags", "<script>alert(1)</script>", "scriptalert(1)/script"},
		{"strips javascript scheme", "javascript:alert(1)", "alert(1)"},
		{"strips javascript scheme any case", "JaVaScRiPt:alert(1)", "alert(1)"},
		{"strips inline handlers", `x onclick="steal()"`, `x "steal()"`},
		{"strips handlers with spaces", "img onError  =boom", "img boom"},
		{"strips handlers any case", "ONLOAD=go", "go"},
		{"keeps plain text", "We'd like a quote for 3 seats.", "We'd like a quote for 3 seats."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeText(tc.input, 0))
		})
	}
}

func TestSanitizeText_Length(t *testing.T) {
	t.Run("defaults to 10000 runes", func(t *testing.T) {
		out := SanitizeText(strings.Repeat("a", 12000), 0)
		assert.Len(t, out, DefaultMaxTextLength)
	})

	t.Run("caps at max", func(t *testing.T) {
		assert.Equal(t, "hello", SanitizeText("hello world", 5))
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		out := SanitizeText(strings.Repeat("é", 10), 4)
		assert.Equal(t, "éééé", out)
	})

	t.Run("trims before capping", func(t *testing.T) {
		assert.Equal(t, "abc", SanitizeText("   abcdef", 3))
	})
}

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"   ", ""},
		{"https://linkedin.com/in/jane", "https://linkedin.com/in/jane"},
		{"  http://jane.dev  ", "http://jane.dev"},
		{"ftp://files.example.com", ""},
		{"javascript:alert(1)", ""},
		{"not a url", ""},
		{"jane.dev", ""},
		{"http://localhost:3000", "http://localhost:3000"},
		{"http://192.168.1.10/portfolio", "http://192.168.1.10/portfolio"},
		{"https://[::1]:8443/cv", "https://[::1]:8443/cv"},
		{"https://", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeURL(tc.input))
		})
	}

	t.Run("caps at 500 runes", func(t *testing.T) {
		long := "https://example.com/" + strings.Repeat("a", 600)
		out := SanitizeURL(long)
		assert.Len(t, out, DefaultMaxURLLength)
		assert.True(t, strings.HasPrefix(out, "https://example.com/"))
	})
}

func TestIsValidURL(t *testing.T) {
	assert.True(t, IsValidURL(""))
	assert.True(t, IsValidURL("  "))
	assert.True(t, IsValidURL("https://example.com"))
	assert.False(t, IsValidURL("mailto:jane@example.com"))
	assert.False(t, IsValidURL("example.com"))
	assert.True(t, IsValidURL("http://localhost:3000"))
	assert.True(t, IsValidURL("http://192.168.1.10/portfolio"))
}

func TestIsValidEmail(t *testing.T) {
	valid := []string{"a@b.com", "jane.doe+site@example.co.uk", " padded@example.com "}
	for _, e := range valid {
		assert.True(t, IsValidEmail(e), e)
	}

	invalid := []string{
		"",
		"plain",
		"a@b",
		"a b@c.com",
		"a@@b.com",
		strings.Repeat("a", 250) + "@b.com",
	}
	for _, e := range invalid {
		assert.False(t, IsValidEmail(e), e)
	}
}

func TestIsHoneypotTripped(t *testing.T) {
	assert.Equal(t, "website_url", HoneypotField)
	assert.False(t, IsHoneypotTripped(""))
	assert.True(t, IsHoneypotTripped("http://spam.example"))
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url  string
		want error
	}{
		{"https://example.com", nil},
		{"HTTP://Example.com/Path", nil},
		{"http://10.0.0.5:8080/", nil},
		{"http://localhost", nil},
		{"not-a-url", ErrInvalidScheme},
		{"ftp://example.com", ErrInvalidScheme},
		{"mailto:test@example.com", ErrInvalidScheme},
		{"javascript:alert(1)", ErrInvalidScheme},
		{"data:text/html,hi", ErrInvalidScheme},
		{"https://", ErrInvalidURL},
		{"http://[::1", ErrInvalidURL},
	}

	for _, tc := range tests {
		t.Run(tc.url, func(t *testing.T) {
			err := ValidateURL(tc.url)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
