// Package store provides storage backends for ComplaintDesk.
//
// Report stores append finalized complaints to a tabular destination
// (an xlsx workbook, SQLite or PostgreSQL). Session stores keep the
// in-progress dialogue of each user (in memory, SQL or Redis).
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
)

// ErrDSNNotSet is returned when a backend is constructed without a DSN.
var ErrDSNNotSet = errors.New("database DSN not set")

// ReportStore is the append-only destination for finalized complaints.
type ReportStore interface {
	// EnsureInitialized creates the backing table or file with its header
	// if it does not exist. It is idempotent.
	EnsureInitialized(ctx context.Context) error
	// Append durably adds one record. Appends are serialized.
	Append(ctx context.Context, rec models.ComplaintRecord) error
	// Close releases held resources.
	Close() error
}

// SessionStore persists in-progress sessions keyed by user id.
type SessionStore interface {
	// GetSession returns nil, nil when no session exists.
	GetSession(ctx context.Context, userID string) (*models.Session, error)
	SaveSession(ctx context.Context, s models.Session) error
	DeleteSession(ctx context.Context, userID string) error
}

// PersistenceError reports a storage failure. A record whose Append
// returned a PersistenceError was not submitted.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(backend, op string, err error) error {
	return &PersistenceError{Backend: backend, Op: op, Err: err}
}

// InMemoryStore keeps reports and sessions in process memory.
type InMemoryStore struct {
	mu       sync.RWMutex
	records  []models.ComplaintRecord
	sessions map[string]models.Session
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]models.Session)}
}

// EnsureInitialized is a no-op for the in-memory store.
func (s *InMemoryStore) EnsureInitialized(ctx context.Context) error {
	return nil
}

// Append stores a record after validating it.
func (s *InMemoryStore) Append(ctx context.Context, rec models.ComplaintRecord) error {
	if err := ctx.Err(); err != nil {
		return persistErr("memory", "append", err)
	}
	if err := rec.Validate(); err != nil {
		return persistErr("memory", "append", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	slog.Debug("InMemoryStore Append succeeded", "id", rec.ID, "count", len(s.records))
	return nil
}

// Records returns a copy of the appended records.
func (s *InMemoryStore) Records() []models.ComplaintRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ComplaintRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *InMemoryStore) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *InMemoryStore) SaveSession(ctx context.Context, sess models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
	return nil
}

func (s *InMemoryStore) DeleteSession(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// SessionCount returns the number of stored sessions.
func (s *InMemoryStore) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
