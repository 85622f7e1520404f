// ABOUTME: Store interface and data types for dbp-gateway persistence
// ABOUTME: Defines request log and recommendation records and their filters

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when inserting an entity whose ID already exists
var ErrDuplicate = errors.New("already exists")

// RequestLog records the outcome of one handled request.
type RequestLog struct {
	Seq        int64 // assigned by the database, increasing
	RequestID  string
	ClientID   string // empty when authentication failed
	Kind       string // "tool" or "resource"
	Target     string
	Status     string // "success" or "error"
	Code       string // error code, empty on success
	Stage      string // last completed stage
	DurationMS int64
	CreatedAt  time.Time
}

// RequestLogFilter narrows ListRequestLog results. Nil fields match everything.
type RequestLogFilter struct {
	Since    *time.Time
	ClientID *string
	Status   *string
	Target   *string
	Limit    int // default 100, max 1000
}

// RecommendationStatus is the review state of a recommendation.
type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationAccepted RecommendationStatus = "accepted"
	RecommendationRejected RecommendationStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s RecommendationStatus) Valid() bool {
	switch s {
	case RecommendationPending, RecommendationAccepted, RecommendationRejected:
		return true
	}
	return false
}

// Recommendation is a suggested change to a documentation file, usually
// derived from a consistency finding.
type Recommendation struct {
	ID        string
	Document  string // path relative to the docs root
	Kind      string // finding kind that produced it, e.g. "broken_link"
	Title     string
	Detail    string
	Severity  string // "info", "warning", "error"
	Status    RecommendationStatus
	CreatedBy string // client id that generated it
	DecidedBy string // client id that accepted or rejected it
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecommendationFilter narrows ListRecommendations results.
type RecommendationFilter struct {
	Document *string
	Status   *RecommendationStatus
	Limit    int // default 100, max 1000
}

// Store is the persistence interface used by the server.
type Store interface {
	AppendRequestLog(ctx context.Context, e *RequestLog) error
	ListRequestLog(ctx context.Context, f RequestLogFilter) ([]RequestLog, error)

	CreateRecommendation(ctx context.Context, r *Recommendation) error
	GetRecommendation(ctx context.Context, id string) (*Recommendation, error)
	ListRecommendations(ctx context.Context, f RecommendationFilter) ([]Recommendation, error)
	SetRecommendationStatus(ctx context.Context, id string, status RecommendationStatus, decidedBy string) (*Recommendation, error)

	Close() error
}

// normalizeLimit applies default (100) and cap (1000) to list limits.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}
