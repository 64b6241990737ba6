// Store-backed state management.

package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/BTreeMap/ComplaintDesk/internal/store"
)

// StoreBasedStateManager implements StateManager using a SessionStore backend.
// Callers serialize access per user; see UserLocks.
type StoreBasedStateManager struct {
	store store.SessionStore
	now   func() time.Time
}

// NewStoreBasedStateManager creates a new StateManager backed by a SessionStore.
func NewStoreBasedStateManager(st store.SessionStore) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st, now: time.Now}
}

// Get retrieves the session for a user, creating an idle one if absent.
func (sm *StoreBasedStateManager) Get(ctx context.Context, userID string) (models.Session, error) {
	sess, err := sm.store.GetSession(ctx, userID)
	if err != nil {
		slog.Error("StateManager Get error", "error", err, "userID", userID)
		return models.Session{}, err
	}
	if sess == nil {
		slog.Debug("StateManager Get not found, starting idle session", "userID", userID)
		return models.NewSession(userID, sm.now()), nil
	}
	if !sess.Step.IsValid() || sess.Step == models.StepComplete {
		slog.Warn("StateManager Get found unusable step, treating as idle", "userID", userID, "step", sess.Step)
		return models.NewSession(userID, sm.now()), nil
	}
	return *sess, nil
}

// Set merges patch into the user's session and saves it.
func (sm *StoreBasedStateManager) Set(ctx context.Context, userID string, patch models.SessionPatch) (models.Session, error) {
	sess, err := sm.Get(ctx, userID)
	if err != nil {
		return models.Session{}, err
	}

	if patch.Step != "" {
		sess.Step = patch.Step
	}
	sess.Fields = sess.Fields.Merge(patch.Fields)
	sess.UpdatedAt = sm.now()

	if err := sm.store.SaveSession(ctx, sess); err != nil {
		slog.Error("StateManager Set save error", "error", err, "userID", userID, "step", sess.Step)
		return models.Session{}, err
	}

	slog.Debug("StateManager Set succeeded", "userID", userID, "step", sess.Step)
	return sess, nil
}

// Reset removes all state for a user.
func (sm *StoreBasedStateManager) Reset(ctx context.Context, userID string) error {
	if err := sm.store.DeleteSession(ctx, userID); err != nil {
		slog.Error("StateManager Reset error", "error", err, "userID", userID)
		return err
	}
	slog.Debug("StateManager Reset succeeded", "userID", userID)
	return nil
}
