// State management interfaces for the complaint dialogue.

package flow

import (
	"context"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
)

// StateManager owns per-user session state.
type StateManager interface {
	// Get returns the session for userID, or a fresh idle session if none exists.
	Get(ctx context.Context, userID string) (models.Session, error)

	// Set applies patch to the session and returns the result.
	Set(ctx context.Context, userID string, patch models.SessionPatch) (models.Session, error)

	// Reset clears the session back to idle with no fields.
	Reset(ctx context.Context, userID string) error
}

// Recorder receives engine observations. The metrics package provides a
// Prometheus implementation.
type Recorder interface {
	ObserveEvent(kind models.EventKind)
	ObserveTransition(from, to models.Step)
	ObserveValidationFailure(field string)
	ObserveSubmission(success bool, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveEvent(models.EventKind)          {}
func (nopRecorder) ObserveTransition(models.Step, models.Step) {}
func (nopRecorder) ObserveValidationFailure(string)       {}
func (nopRecorder) ObserveSubmission(bool, time.Duration) {}
