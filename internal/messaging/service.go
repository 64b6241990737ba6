// Package messaging connects the complaint engine to chat transports.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
)

// Constants for service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for event channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable chat transport.
type Service interface {
	// Start begins any background processing (e.g., listening for messages).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the event channel.
	Stop() error

	// Send delivers a reply to a user, rendering its keyboard as the
	// transport allows.
	Send(ctx context.Context, userID string, reply models.Reply) error

	// Events returns a channel of inbound user events.
	Events() <-chan models.Event
}

// CanonicalizePhone strips everything but digits from a phone-based user id.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// eventQueue is the inbound side shared by the transports.
type eventQueue struct {
	name    string
	events  chan models.Event
	mu      sync.RWMutex
	stopped bool
}

func newEventQueue(name string) *eventQueue {
	return &eventQueue{
		name:   name,
		events: make(chan models.Event, DefaultChannelBufferSize),
	}
}

// emit forwards ev, dropping it if the service is stopped or the channel
// stays full for DefaultChannelTimeout.
func (q *eventQueue) emit(ev models.Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		slog.Warn("Dropping inbound event (service stopped)", "service", q.name, "userID", ev.UserID)
		return false
	}

	select {
	case q.events <- ev:
		slog.Debug("Inbound event forwarded", "service", q.name, "userID", ev.UserID, "event", ev.Kind)
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("Events channel blocked, dropping event", "service", q.name, "userID", ev.UserID, "timeout", DefaultChannelTimeout)
		return false
	}
}

func (q *eventQueue) isStopped() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.stopped
}

// stop closes the channel once. Emitters hold the read lock, so no send
// can race with the close.
func (q *eventQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	close(q.events)
	slog.Info("Messaging service stopped and channel closed", "service", q.name)
}
