// Package repository handles persistence of form submissions.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/withaibuild/site/internal/metrics"
	"github.com/withaibuild/site/internal/models"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint hit.
const uniqueViolation = "23505"

// ErrAlreadySubscribed is returned when a newsletter address is stored.
var ErrAlreadySubscribed = errors.New("email already subscribed")

// SubmissionRepository stores form submissions. Each insert is a single
// atomic statement.
type SubmissionRepository interface {
	// InsertContact stores a contact message.
	InsertContact(ctx context.Context, m *models.ContactMessage) error

	// InsertApplication stores a job application.
	InsertApplication(ctx context.Context, a *models.JobApplication) error

	// InsertSubscriber stores a newsletter address. A duplicate address
	// returns ErrAlreadySubscribed.
	InsertSubscriber(ctx context.Context, s *models.NewsletterSubscriber) error

	// InsertFeatureRequest stores a roadmap feature request.
	InsertFeatureRequest(ctx context.Context, r *models.FeatureRequest) error

	// HealthCheck verifies the repository is healthy.
	HealthCheck(ctx context.Context) error
}

// DB is the subset of *database.Pool the repository needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresSubmissionRepository implements SubmissionRepository on PostgreSQL.
type PostgresSubmissionRepository struct {
	db DB
}

// NewPostgresSubmissionRepository creates a PostgreSQL-backed repository.
func NewPostgresSubmissionRepository(db DB) *PostgresSubmissionRepository {
	return &PostgresSubmissionRepository{db: db}
}

// InsertContact stores a contact message and fills in its id and timestamp.
func (r *PostgresSubmissionRepository) InsertContact(ctx context.Context, m *models.ContactMessage) error {
	query := `
		INSERT INTO contact_messages (name, email, topic, message)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.insert(ctx, "insert_contact", query,
		[]any{m.Name, m.Email, string(m.Topic), m.Message},
		&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact message: %w", err)
	}
	return nil
}

// InsertApplication stores a job application and fills in its id and timestamp.
func (r *PostgresSubmissionRepository) InsertApplication(ctx context.Context, a *models.JobApplication) error {
	query := `
		INSERT INTO job_applications (role, name, email, linkedin, portfolio, cover)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := r.insert(ctx, "insert_application", query,
		[]any{a.Role, a.Name, a.Email, a.LinkedIn, a.Portfolio, a.Cover},
		&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job application: %w", err)
	}
	return nil
}

// InsertSubscriber stores a newsletter address.
func (r *PostgresSubmissionRepository) InsertSubscriber(ctx context.Context, s *models.NewsletterSubscriber) error {
	query := `
		INSERT INTO newsletter_subscribers (email)
		VALUES ($1)
		RETURNING id, created_at
	`

	err := r.insert(ctx, "insert_subscriber", query, []any{s.Email}, &s.ID, &s.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrAlreadySubscribed
		}
		return fmt.Errorf("failed to insert newsletter subscriber: %w", err)
	}
	return nil
}

// InsertFeatureRequest stores a feature request.
func (r *PostgresSubmissionRepository) InsertFeatureRequest(ctx context.Context, fr *models.FeatureRequest) error {
	query := `
		INSERT INTO feature_requests (email, request)
		VALUES ($1, $2)
		RETURNING id, created_at
	`

	err := r.insert(ctx, "insert_feature_request", query, []any{fr.Email, fr.Request}, &fr.ID, &fr.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert feature request: %w", err)
	}
	return nil
}

// HealthCheck verifies the database connection is healthy.
func (r *PostgresSubmissionRepository) HealthCheck(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *PostgresSubmissionRepository) insert(ctx context.Context, op, query string, args []any, dest ...any) error {
	start := time.Now()
	err := r.db.QueryRow(ctx, query, args...).Scan(dest...)
	metrics.RecordDBQuery(op, time.Since(start))
	return err
}

// isDuplicateKeyError checks if the error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
