// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu              sync.RWMutex
	requests        []RequestLog
	recommendations map[string]*Recommendation
	nextSeq         int64
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		recommendations: make(map[string]*Recommendation),
	}
}

// AppendRequestLog stores a copy of e.
func (m *MockStore) AppendRequestLog(_ context.Context, e *RequestLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.nextSeq++
	e.Seq = m.nextSeq
	m.requests = append(m.requests, *e)
	return nil
}

// ListRequestLog returns matching entries newest first.
func (m *MockStore) ListRequestLog(_ context.Context, f RequestLogFilter) ([]RequestLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeLimit(f.Limit)
	out := []RequestLog{}
	for i := len(m.requests) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.requests[i]
		if f.Since != nil && e.CreatedAt.Before(*f.Since) {
			continue
		}
		if f.ClientID != nil && e.ClientID != *f.ClientID {
			continue
		}
		if f.Status != nil && e.Status != *f.Status {
			continue
		}
		if f.Target != nil && e.Target != *f.Target {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// CreateRecommendation stores a copy of r, filling defaults like SQLiteStore.
func (m *MockStore) CreateRecommendation(_ context.Context, r *Recommendation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if _, exists := m.recommendations[r.ID]; exists {
		return fmt.Errorf("recommendation %s: %w", r.ID, ErrDuplicate)
	}
	if r.Status == "" {
		r.Status = RecommendationPending
	}
	if r.Severity == "" {
		r.Severity = "info"
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt

	// Make a copy to avoid external modification
	c := *r
	m.recommendations[c.ID] = &c
	return nil
}

// GetRecommendation retrieves a recommendation by ID.
func (m *MockStore) GetRecommendation(_ context.Context, id string) (*Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.recommendations[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *r
	return &c, nil
}

// ListRecommendations returns matching recommendations newest first.
func (m *MockStore) ListRecommendations(_ context.Context, f RecommendationFilter) ([]Recommendation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Recommendation{}
	for _, r := range m.recommendations {
		if f.Document != nil && r.Document != *f.Document {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit := normalizeLimit(f.Limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetRecommendationStatus records a review decision on a pending recommendation.
func (m *MockStore) SetRecommendationStatus(_ context.Context, id string, status RecommendationStatus, decidedBy string) (*Recommendation, error) {
	if !status.Valid() || status == RecommendationPending {
		return nil, fmt.Errorf("invalid target status %q", status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.recommendations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.Status != RecommendationPending {
		c := *r
		return &c, ErrAlreadyDecided
	}
	r.Status = status
	r.DecidedBy = decidedBy
	r.UpdatedAt = time.Now().UTC()
	c := *r
	return &c, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}
