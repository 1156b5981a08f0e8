package simulator

import (
	"regexp"
	"sort"
	"strings"
)

// MaxSubdomainLength caps derived and edited subdomains.
const MaxSubdomainLength = 32

var (
	nonSlugChars     = regexp.MustCompile(`[^a-z0-9\s-]`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
	hyphenRuns       = regexp.MustCompile(`-+`)
	subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Slugify turns free text into a subdomain label: lowercased, characters
// outside [a-z0-9 whitespace -] dropped, whitespace runs replaced by a
// hyphen, hyphen runs collapsed and the result cut to 32 bytes.
// Slugify(Slugify(s)) == Slugify(s).
func Slugify(text string) string {
	s := strings.ToLower(text)
	s = nonSlugChars.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	if len(s) > MaxSubdomainLength {
		s = s[:MaxSubdomainLength]
	}
	return s
}

// Form is the input that starts a build.
type Form struct {
	CompanyName string `json:"company_name"`
	// Subdomain is optional. When empty it is derived from CompanyName.
	Subdomain string `json:"subdomain"`
	Email     string `json:"email"`
	Prompt    string `json:"prompt"`
}

// Normalize fills in the derived subdomain. An edited subdomain goes
// through Slugify as well, the same transform the input field applies.
func (f Form) Normalize() Form {
	if strings.TrimSpace(f.Subdomain) == "" {
		f.Subdomain = Slugify(f.CompanyName)
	} else {
		f.Subdomain = Slugify(f.Subdomain)
	}
	f.Email = strings.TrimSpace(f.Email)
	return f
}

// Field names used in FieldErrors.
const (
	FieldCompanyName = "company_name"
	FieldSubdomain   = "subdomain"
	FieldEmail       = "email"
)

// FieldErrors maps a form field to its message.
type FieldErrors map[string]string

// Error implements error.
func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid build form: " + strings.Join(parts, "; ")
}

// Validate checks a normalized form. It returns nil when the form is valid.
func (f Form) Validate() FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(f.CompanyName) == "" {
		errs[FieldCompanyName] = "Company name is required"
	}

	switch {
	case strings.TrimSpace(f.Subdomain) == "":
		errs[FieldSubdomain] = "Subdomain is required"
	case !subdomainPattern.MatchString(f.Subdomain):
		errs[FieldSubdomain] = "Only lowercase letters, numbers and hyphens"
	}

	switch {
	case strings.TrimSpace(f.Email) == "":
		errs[FieldEmail] = "Email is required"
	case !emailPattern.MatchString(f.Email):
		errs[FieldEmail] = "Enter a valid email address"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
