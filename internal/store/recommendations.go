// ABOUTME: Recommendation store methods: create, fetch, list, and review decisions
// ABOUTME: Status transitions only leave "pending"; decided recommendations are final

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrAlreadyDecided is returned when changing the status of a recommendation
// that was already accepted or rejected.
var ErrAlreadyDecided = errors.New("recommendation already decided")

const recommendationColumns = `id, document, kind, title, detail, severity, status, created_by, decided_by, created_at, updated_at`

// CreateRecommendation inserts r. ID, Status, Severity and timestamps are
// filled in when unset.
func (s *SQLiteStore) CreateRecommendation(ctx context.Context, r *Recommendation) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = RecommendationPending
	}
	if r.Severity == "" {
		r.Severity = "info"
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = r.CreatedAt

	query := `INSERT INTO recommendations (` + recommendationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.Document,
		r.Kind,
		r.Title,
		r.Detail,
		r.Severity,
		r.Status,
		r.CreatedBy,
		r.DecidedBy,
		formatTime(r.CreatedAt),
		formatTime(r.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("recommendation %s: %w", r.ID, ErrDuplicate)
		}
		return fmt.Errorf("inserting recommendation: %w", err)
	}

	s.logger.Debug("created recommendation", "id", r.ID, "document", r.Document, "kind", r.Kind)
	return nil
}

// GetRecommendation retrieves a recommendation by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *SQLiteStore) GetRecommendation(ctx context.Context, id string) (*Recommendation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recommendationColumns+` FROM recommendations WHERE id = ?`, id)
	r, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecommendations returns recommendations matching the filter, newest first.
func (s *SQLiteStore) ListRecommendations(ctx context.Context, f RecommendationFilter) ([]Recommendation, error) {
	var status *string
	if f.Status != nil {
		str := string(*f.Status)
		status = &str
	}

	query := `SELECT ` + recommendationColumns + ` FROM recommendations
		WHERE (? IS NULL OR document = ?)
		  AND (? IS NULL OR status = ?)
		ORDER BY created_at DESC, id
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query,
		f.Document, f.Document,
		status, status,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Recommendation{}
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recommendations: %w", err)
	}
	return out, nil
}

// SetRecommendationStatus records a review decision. Only pending
// recommendations can change; others return ErrAlreadyDecided.
func (s *SQLiteStore) SetRecommendationStatus(ctx context.Context, id string, status RecommendationStatus, decidedBy string) (*Recommendation, error) {
	if !status.Valid() || status == RecommendationPending {
		return nil, fmt.Errorf("invalid target status %q", status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE recommendations SET status = ?, decided_by = ?, updated_at = ? WHERE id = ? AND status = 'pending'`,
		status, decidedBy, formatTime(time.Now()), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating recommendation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking update: %w", err)
	}

	r, err := s.GetRecommendation(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return r, ErrAlreadyDecided
	}

	s.logger.Info("recommendation decided", "id", id, "status", status, "decided_by", decidedBy)
	return r, nil
}

func scanRecommendation(scanner interface{ Scan(dest ...any) error }) (Recommendation, error) {
	var r Recommendation
	var status, createdAt, updatedAt string
	if err := scanner.Scan(
		&r.ID,
		&r.Document,
		&r.Kind,
		&r.Title,
		&r.Detail,
		&r.Severity,
		&status,
		&r.CreatedBy,
		&r.DecidedBy,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scanning recommendation: %w", err)
	}
	r.Status = RecommendationStatus(status)

	var err error
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return r, err
	}
	return r, nil
}
