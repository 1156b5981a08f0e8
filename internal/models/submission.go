// Package models contains the records stored for public form submissions.
package models

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/withaibuild/site/internal/security"
)

// Field limits.
const (
	MaxNameLength    = 100
	MaxMessageLength = 3000
	MaxCoverLength   = 5000
	MaxRequestLength = 2000
	MaxEmailLength   = security.MaxEmailLength
)

// User-facing validation messages.
const (
	MsgRequiredFields   = "Please fill in all required fields."
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgEmailRequired    = "Please enter your email address."
	MsgInvalidLinkedIn  = "Please enter a valid LinkedIn URL."
	MsgInvalidPortfolio = "Please enter a valid portfolio URL."
)

// Lookup errors
var (
	ErrUnknownRole = errors.New("unknown role")
)

// ValidationError describes the first invalid field of a submission.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements error.
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// Topic is the subject of a contact message.
type Topic string

const (
	TopicGeneral     Topic = "general"
	TopicSales       Topic = "sales"
	TopicSupport     Topic = "support"
	TopicBilling     Topic = "billing"
	TopicPress       Topic = "press"
	TopicPartnership Topic = "partnership"
)

var validTopics = map[Topic]bool{
	TopicGeneral:     true,
	TopicSales:       true,
	TopicSupport:     true,
	TopicBilling:     true,
	TopicPress:       true,
	TopicPartnership: true,
}

// ParseTopic returns the topic for s. Unknown values fall back to general.
func ParseTopic(s string) Topic {
	t := Topic(strings.TrimSpace(s))
	if validTopics[t] {
		return t
	}
	return TopicGeneral
}

// ContactInput is the raw contact form.
type ContactInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Topic    string `json:"topic"`
	Message  string `json:"message"`
	Honeypot string `json:"website_url"`
}

// ContactMessage is a stored contact form submission.
type ContactMessage struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Topic     Topic     `json:"topic"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewContactMessage sanitizes and validates a contact form.
func NewContactMessage(in ContactInput) (ContactMessage, error) {
	m := ContactMessage{
		Name:    security.SanitizeText(in.Name, MaxNameLength),
		Email:   security.SanitizeText(in.Email, MaxEmailLength),
		Topic:   ParseTopic(in.Topic),
		Message: security.SanitizeText(in.Message, MaxMessageLength),
	}

	switch {
	case m.Name == "":
		return m, invalid("name", MsgRequiredFields)
	case m.Email == "":
		return m, invalid("email", MsgRequiredFields)
	case m.Message == "":
		return m, invalid("message", MsgRequiredFields)
	case !security.IsValidEmail(m.Email):
		return m, invalid("email", MsgInvalidEmail)
	}
	return m, nil
}

// ApplicationInput is the raw job application form.
type ApplicationInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	LinkedIn  string `json:"linkedin"`
	Portfolio string `json:"portfolio"`
	Cover     string `json:"cover"`
	Honeypot  string `json:"website_url"`
}

// JobApplication is a stored job application. Role holds the role title.
type JobApplication struct {
	ID        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	LinkedIn  string    `json:"linkedin"`
	Portfolio string    `json:"portfolio"`
	Cover     string    `json:"cover"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJobApplication sanitizes and validates an application for role.
func NewJobApplication(role Role, in ApplicationInput) (JobApplication, error) {
	a := JobApplication{
		Role:      role.Title,
		Name:      security.SanitizeText(in.Name, MaxNameLength),
		Email:     security.SanitizeText(in.Email, MaxEmailLength),
		LinkedIn:  security.SanitizeURL(in.LinkedIn),
		Portfolio: security.SanitizeURL(in.Portfolio),
		Cover:     security.SanitizeText(in.Cover, MaxCoverLength),
	}

	switch {
	case a.Name == "":
		return a, invalid("name", MsgRequiredFields)
	case a.Email == "":
		return a, invalid("email", MsgRequiredFields)
	case a.Cover == "":
		return a, invalid("cover", MsgRequiredFields)
	case !security.IsValidEmail(a.Email):
		return a, invalid("email", MsgInvalidEmail)
	case !security.IsValidURL(in.LinkedIn):
		return a, invalid("linkedin", MsgInvalidLinkedIn)
	case !security.IsValidURL(in.Portfolio):
		return a, invalid("portfolio", MsgInvalidPortfolio)
	}
	return a, nil
}

// NewsletterInput is the raw newsletter signup.
type NewsletterInput struct {
	Email    string `json:"email"`
	Honeypot string `json:"website_url"`
}

// NewsletterSubscriber is a stored newsletter address.
type NewsletterSubscriber struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNewsletterSubscriber validates a signup.
func NewNewsletterSubscriber(in NewsletterInput) (NewsletterSubscriber, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return NewsletterSubscriber{}, invalid("email", MsgEmailRequired)
	}
	if !security.IsValidEmail(in.Email) {
		return NewsletterSubscriber{}, invalid("email", MsgInvalidEmail)
	}
	if len(email) > MaxEmailLength {
		email = email[:MaxEmailLength]
	}
	return NewsletterSubscriber{Email: email}, nil
}

// FeatureRequestInput is the raw roadmap feature request.
type FeatureRequestInput struct {
	Email    string `json:"email"`
	Request  string `json:"request"`
	Honeypot string `json:"website_url"`
}

// FeatureRequest is a stored roadmap suggestion. Email is optional.
type FeatureRequest struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Request   string    `json:"request"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFeatureRequest sanitizes and validates a feature request.
func NewFeatureRequest(in FeatureRequestInput) (FeatureRequest, error) {
	r := FeatureRequest{Request: security.SanitizeText(in.Request, MaxRequestLength)}
	if strings.TrimSpace(in.Email) != "" {
		r.Email = security.SanitizeText(in.Email, MaxEmailLength)
	}

	if r.Request == "" {
		return r, invalid("request", MsgRequiredFields)
	}
	if r.Email != "" && !security.IsValidEmail(r.Email) {
		return r, invalid("email", MsgInvalidEmail)
	}
	return r, nil
}
