// Package services contains business logic.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/withaibuild/site/internal/metrics"
	"github.com/withaibuild/site/internal/models"
	"github.com/withaibuild/site/internal/notify"
	"github.com/withaibuild/site/internal/ratelimit"
	"github.com/withaibuild/site/internal/repository"
	"github.com/withaibuild/site/internal/security"
	"github.com/withaibuild/site/pkg/logger"
)

// Form names used in logs and metrics.
const (
	FormContact        = "contact"
	FormApplication    = "job_application"
	FormNewsletter     = "newsletter"
	FormFeatureRequest = "feature_request"
)

// MsgSubmissionFailed is shown to the user when storing a submission fails.
const MsgSubmissionFailed = "Something went wrong. Please try again."

// Submission errors.
var (
	ErrSubmissionFailed = errors.New("submission failed")
	ErrStoreUnavailable = errors.New("submission store unavailable")
)

// ValidationError describes the first invalid field of a submission.
type ValidationError = models.ValidationError

// RateLimitError is returned when a client exhausted the form's budget.
type RateLimitError struct {
	Form       string
	RetryAfter int // Whole seconds until the next attempt is allowed
}

// Error implements error. The text is shown to the user as is.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Too many attempts. Please wait %d seconds before trying again.", e.RetryAfter)
}

// Outcome is the result of an accepted submission.
type Outcome string

const (
	// OutcomeAccepted means the submission was stored.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeDiscarded means the honeypot was filled and nothing was stored.
	OutcomeDiscarded Outcome = "discarded"
	// OutcomeAlreadySubscribed means the newsletter address already existed.
	OutcomeAlreadySubscribed Outcome = "already_subscribed"
)

// FormLimiters holds one sliding-window limiter per form.
type FormLimiters struct {
	Contact        *ratelimit.Limiter
	Application    *ratelimit.Limiter
	Newsletter     *ratelimit.Limiter
	FeatureRequest *ratelimit.Limiter
}

// FormService processes public form submissions.
type FormService struct {
	repo     repository.SubmissionRepository
	limiters FormLimiters
	relay    *notify.Relay
	log      *logger.Logger
}

// NewFormService creates a FormService. A nil repo makes every submission
// fail with ErrStoreUnavailable; a nil relay disables notifications.
func NewFormService(repo repository.SubmissionRepository, limiters FormLimiters, relay *notify.Relay, log *logger.Logger) (*FormService, error) {
	if limiters.Contact == nil || limiters.Application == nil || limiters.Newsletter == nil || limiters.FeatureRequest == nil {
		return nil, errors.New("services: every form needs a limiter")
	}
	if relay == nil {
		relay = notify.NewRelay(0, log)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &FormService{repo: repo, limiters: limiters, relay: relay, log: log}, nil
}

// SubmitContact stores a contact message.
func (s *FormService) SubmitContact(ctx context.Context, clientIP string, in models.ContactInput) (Outcome, error) {
	if s.trapped(FormContact, in.Honeypot) {
		return OutcomeDiscarded, nil
	}

	msg, err := models.NewContactMessage(in)
	if err != nil {
		return "", s.rejected(FormContact, err)
	}
	if err := s.admit(ctx, FormContact, s.limiters.Contact, clientIP); err != nil {
		return "", err
	}
	if s.repo == nil {
		return "", s.unavailable(FormContact)
	}
	if err := s.repo.InsertContact(ctx, &msg); err != nil {
		return "", s.failed(FormContact, err)
	}

	s.accepted(FormContact, fmt.Sprintf("New contact message [%s] from %s <%s>\n\n%s", msg.Topic, msg.Name, msg.Email, msg.Message))
	return OutcomeAccepted, nil
}

// SubmitApplication stores a job application for the open role roleID.
func (s *FormService) SubmitApplication(ctx context.Context, clientIP, roleID string, in models.ApplicationInput) (Outcome, error) {
	role, err := models.FindRole(roleID)
	if err != nil {
		return "", err
	}
	if s.trapped(FormApplication, in.Honeypot) {
		return OutcomeDiscarded, nil
	}

	app, err := models.NewJobApplication(role, in)
	if err != nil {
		return "", s.rejected(FormApplication, err)
	}
	if err := s.admit(ctx, FormApplication, s.limiters.Application, clientIP); err != nil {
		return "", err
	}
	if s.repo == nil {
		return "", s.unavailable(FormApplication)
	}
	if err := s.repo.InsertApplication(ctx, &app); err != nil {
		return "", s.failed(FormApplication, err)
	}

	s.accepted(FormApplication, fmt.Sprintf("New application for %s from %s <%s>", app.Role, app.Name, app.Email))
	return OutcomeAccepted, nil
}

// SubscribeNewsletter stores a newsletter address. Subscribing twice is not
// an error.
func (s *FormService) SubscribeNewsletter(ctx context.Context, clientIP string, in models.NewsletterInput) (Outcome, error) {
	if s.trapped(FormNewsletter, in.Honeypot) {
		return OutcomeDiscarded, nil
	}

	sub, err := models.NewNewsletterSubscriber(in)
	if err != nil {
		return "", s.rejected(FormNewsletter, err)
	}
	if err := s.admit(ctx, FormNewsletter, s.limiters.Newsletter, clientIP); err != nil {
		return "", err
	}
	if s.repo == nil {
		return "", s.unavailable(FormNewsletter)
	}

	err = s.repo.InsertSubscriber(ctx, &sub)
	switch {
	case errors.Is(err, repository.ErrAlreadySubscribed):
		metrics.RecordFormSubmission(FormNewsletter, string(OutcomeAlreadySubscribed))
		return OutcomeAlreadySubscribed, nil
	case err != nil:
		return "", s.failed(FormNewsletter, err)
	}

	s.accepted(FormNewsletter, "New newsletter subscriber: "+sub.Email)
	return OutcomeAccepted, nil
}

// SubmitFeatureRequest stores a roadmap feature request.
func (s *FormService) SubmitFeatureRequest(ctx context.Context, clientIP string, in models.FeatureRequestInput) (Outcome, error) {
	if s.trapped(FormFeatureRequest, in.Honeypot) {
		return OutcomeDiscarded, nil
	}

	fr, err := models.NewFeatureRequest(in)
	if err != nil {
		return "", s.rejected(FormFeatureRequest, err)
	}
	if err := s.admit(ctx, FormFeatureRequest, s.limiters.FeatureRequest, clientIP); err != nil {
		return "", err
	}
	if s.repo == nil {
		return "", s.unavailable(FormFeatureRequest)
	}
	if err := s.repo.InsertFeatureRequest(ctx, &fr); err != nil {
		return "", s.failed(FormFeatureRequest, err)
	}

	from := fr.Email
	if from == "" {
		from = "anonymous"
	}
	s.accepted(FormFeatureRequest, fmt.Sprintf("New feature request from %s\n\n%s", from, fr.Request))
	return OutcomeAccepted, nil
}

// HealthCheck reports whether submissions can be stored.
func (s *FormService) HealthCheck(ctx context.Context) error {
	if s.repo == nil {
		return ErrStoreUnavailable
	}
	return s.repo.HealthCheck(ctx)
}

func (s *FormService) trapped(form, honeypot string) bool {
	if !security.IsHoneypotTripped(honeypot) {
		return false
	}
	metrics.RecordFormSubmission(form, string(OutcomeDiscarded))
	s.log.Debug("honeypot tripped, submission discarded", "form", form)
	return true
}

func (s *FormService) rejected(form string, err error) error {
	metrics.RecordFormSubmission(form, "invalid")
	return err
}

// admit consumes one attempt from the client's budget for form.
func (s *FormService) admit(ctx context.Context, form string, lim *ratelimit.Limiter, clientIP string) error {
	if clientIP == "" {
		clientIP = "unknown"
	}
	res := lim.Scoped(clientIP).Check(ctx)
	if res.Allowed {
		return nil
	}
	metrics.RecordFormRateLimited(form)
	metrics.RecordFormSubmission(form, "rate_limited")
	return &RateLimitError{Form: form, RetryAfter: res.RetryAfterSeconds()}
}

func (s *FormService) unavailable(form string) error {
	metrics.RecordFormSubmission(form, "failed")
	return ErrStoreUnavailable
}

func (s *FormService) failed(form string, err error) error {
	metrics.RecordFormSubmission(form, "failed")
	s.log.Error("failed to store submission", "form", form, "error", err.Error())
	return fmt.Errorf("%w: %s", ErrSubmissionFailed, form)
}

func (s *FormService) accepted(form, notice string) {
	metrics.RecordFormSubmission(form, string(OutcomeAccepted))
	s.relay.Send(notice)
}
