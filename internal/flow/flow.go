// Package flow implements the complaint dialogue state machine.
//
// An Engine receives one user event at a time, reads and updates that user's
// session through a StateManager, and returns the replies to deliver. A
// complaint reaches the ReportStore only once every field has been collected.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/catalog"
	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/BTreeMap/ComplaintDesk/internal/store"
)

// Engine drives the complaint dialogue for all users.
type Engine struct {
	catalog    *catalog.Catalog
	sessions   StateManager
	reports    store.ReportStore
	locks      *UserLocks
	texts      Texts
	projectURL string
	now        func() time.Time
	recorder   Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithTexts replaces the built-in texts.
func WithTexts(t Texts) Option {
	return func(e *Engine) { e.texts = t }
}

// WithSupportText replaces the contact details shown by the Support entry.
func WithSupportText(text string) Option {
	return func(e *Engine) {
		if text != "" {
			e.texts.SupportInfo = text
		}
	}
}

// WithProjectURL adds an external link button to the main menu.
func WithProjectURL(url string) Option {
	return func(e *Engine) { e.projectURL = url }
}

// WithClock sets the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// NewEngine creates an Engine.
func NewEngine(cat *catalog.Catalog, sessions StateManager, reports store.ReportStore, opts ...Option) *Engine {
	e := &Engine{
		catalog:  cat,
		sessions: sessions,
		reports:  reports,
		locks:    NewUserLocks(),
		texts:    DefaultTexts(),
		now:      time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle processes a single event and returns the replies for the user.
//
// Replies are returned even when err is non-nil: a *ValidationError comes
// with a re-prompt, a *store.PersistenceError with a failure message. An
// event that does not fit the current step returns no replies and an error
// matching ErrUnexpectedEvent; callers ignore it.
func (e *Engine) Handle(ctx context.Context, ev models.Event) ([]models.Reply, error) {
	if err := ev.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event: %w", err)
	}

	unlock := e.locks.Lock(ev.UserID)
	defer unlock()

	e.recorder.ObserveEvent(ev.Kind)

	sess, err := e.sessions.Get(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	slog.Debug("Engine.Handle", "userID", ev.UserID, "event", ev.Kind, "step", sess.Step)

	var replies []models.Reply
	switch ev.Kind {
	case models.EventCommand:
		replies, err = e.handleCommand(ctx, sess, ev.Command)
	case models.EventMenuSelect:
		replies, err = e.handleMenu(ctx, sess, ev.Choice)
	case models.EventTextInput:
		replies, err = e.handleText(ctx, sess, ev.Text)
	}

	var verr *ValidationError
	switch {
	case errors.Is(err, ErrUnexpectedEvent):
		slog.Warn("Ignoring out-of-step event", "userID", ev.UserID, "event", ev.Kind, "step", sess.Step)
	case errors.As(err, &verr):
		e.recorder.ObserveValidationFailure(verr.Field)
		slog.Warn("Validation failed", "userID", ev.UserID, "field", verr.Field, "value", verr.Value)
	}
	return replies, err
}

func (e *Engine) handleCommand(ctx context.Context, sess models.Session, name string) ([]models.Reply, error) {
	switch name {
	case models.CommandStart:
		if err := e.reset(ctx, sess); err != nil {
			return nil, err
		}
		return []models.Reply{e.texts.mainMenu(e.projectURL)}, nil
	case models.CommandHelp:
		return []models.Reply{e.texts.help()}, nil
	case models.CommandReset, models.CommandClear:
		if err := e.reset(ctx, sess); err != nil {
			return nil, err
		}
		slog.Info("Session reset by command", "userID", sess.UserID, "command", name)
		return []models.Reply{models.PlainMessage(e.texts.ResetDone)}, nil
	default:
		return nil, fmt.Errorf("command %q: %w", name, ErrUnexpectedEvent)
	}
}

func (e *Engine) handleMenu(ctx context.Context, sess models.Session, choice string) ([]models.Reply, error) {
	if choice == ChoiceBackToStart {
		if err := e.reset(ctx, sess); err != nil {
			return nil, err
		}
		return []models.Reply{e.texts.mainMenu(e.projectURL)}, nil
	}

	switch sess.Step {
	case models.StepIdle:
		switch choice {
		case ChoiceHouseProblem:
			if err := e.advance(ctx, sess, models.StepAwaitingCategory, models.Fields{}); err != nil {
				return nil, err
			}
			return []models.Reply{e.texts.categoryMenu(e.catalog)}, nil
		case ChoiceSupport:
			return []models.Reply{models.Prompt(e.texts.SupportInfo, e.texts.backButton())}, nil
		case ChoiceClearChat:
			return []models.Reply{models.Prompt(e.texts.ChatCleared, e.texts.backButton())}, nil
		}

	case models.StepAwaitingCategory:
		switch {
		case choice == ChoiceOtherProblem:
			if err := e.advance(ctx, sess, models.StepAwaitingFreeformProblem, models.Fields{}); err != nil {
				return nil, err
			}
			return []models.Reply{models.PlainMessage(e.texts.DescribeProblem)}, nil
		case choice == "" || isMenuChoice(choice):
			// Stale buttons from another screen are not categories.
		default:
			problem := e.catalog.Lookup(choice)
			if err := e.advance(ctx, sess, models.StepAwaitingFullName, models.Fields{ProblemType: problem}); err != nil {
				return nil, err
			}
			return []models.Reply{models.PlainMessage(e.texts.EnterFullName)}, nil
		}

	case models.StepAwaitingFloor:
		if floor, ok := strings.CutPrefix(choice, floorChoicePrefix); ok && isDigits(floor) {
			if err := e.advance(ctx, sess, models.StepAwaitingApartment, models.Fields{Floor: floor}); err != nil {
				return nil, err
			}
			return []models.Reply{
				models.PlainMessage(fmt.Sprintf(e.texts.FloorSelected, floor)),
				models.PlainMessage(e.texts.EnterApartment),
			}, nil
		}
	}

	return nil, fmt.Errorf("choice %q at %s: %w", choice, sess.Step, ErrUnexpectedEvent)
}

// handleText stores free-text fields trimmed. The floor is checked as sent,
// so surrounding whitespace makes it invalid.
func (e *Engine) handleText(ctx context.Context, sess models.Session, raw string) ([]models.Reply, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, fmt.Errorf("empty text at %s: %w", sess.Step, ErrUnexpectedEvent)
	}

	var (
		next   models.Step
		fields models.Fields
		reply  models.Reply
	)
	switch sess.Step {
	case models.StepAwaitingFreeformProblem:
		next, fields, reply = models.StepAwaitingFullName, models.Fields{ProblemType: text}, models.PlainMessage(e.texts.EnterFullName)
	case models.StepAwaitingFullName:
		next, fields, reply = models.StepAwaitingFloor, models.Fields{FullName: text}, e.texts.floorPrompt(e.texts.EnterFloor)
	case models.StepAwaitingFloor:
		if !isDigits(raw) {
			return []models.Reply{e.texts.floorPrompt(e.texts.InvalidFloor)},
				&ValidationError{Field: "floor", Value: raw, Err: ErrInvalidFloor}
		}
		next, fields, reply = models.StepAwaitingApartment, models.Fields{Floor: text}, models.PlainMessage(e.texts.EnterApartment)
	case models.StepAwaitingApartment:
		next, fields, reply = models.StepAwaitingHouseNumber, models.Fields{Apartment: text}, models.PlainMessage(e.texts.EnterHouse)
	case models.StepAwaitingHouseNumber:
		next, fields, reply = models.StepAwaitingIntercom, models.Fields{HouseNumber: text}, models.PlainMessage(e.texts.EnterIntercom)
	case models.StepAwaitingIntercom:
		return e.submit(ctx, sess, text)
	default:
		return nil, fmt.Errorf("text at %s: %w", sess.Step, ErrUnexpectedEvent)
	}

	if err := e.advance(ctx, sess, next, fields); err != nil {
		return nil, err
	}
	return []models.Reply{reply}, nil
}

// submit builds the record and appends it. On failure the session is left
// at StepAwaitingIntercom so that re-sending the intercom retries.
func (e *Engine) submit(ctx context.Context, sess models.Session, intercom string) ([]models.Reply, error) {
	rec, err := models.NewComplaintRecord(sess.Fields.Merge(models.Fields{Intercom: intercom}), e.now())
	if err != nil {
		slog.Error("Session cannot form a complete record, resetting", "userID", sess.UserID, "error", err)
		if rerr := e.reset(ctx, sess); rerr != nil {
			slog.Error("Failed to reset broken session", "userID", sess.UserID, "error", rerr)
		}
		return []models.Reply{models.PlainMessage(e.texts.SessionLost)}, fmt.Errorf("incomplete session: %w", err)
	}

	started := time.Now()
	err = e.reports.Append(ctx, rec)
	e.recorder.ObserveSubmission(err == nil, time.Since(started))
	if err != nil {
		slog.Error("Complaint append failed", "userID", sess.UserID, "recordID", rec.ID, "error", err)
		return []models.Reply{models.PlainMessage(e.texts.SubmitFailed)}, fmt.Errorf("failed to submit complaint: %w", err)
	}

	slog.Info("Complaint submitted", "userID", sess.UserID, "recordID", rec.ID, "problem", rec.ProblemType)
	e.recorder.ObserveTransition(sess.Step, models.StepComplete)
	if err := e.sessions.Reset(ctx, sess.UserID); err != nil {
		// The record is stored, so the user still gets the confirmation.
		slog.Error("Failed to clear session after submission", "userID", sess.UserID, "error", err)
	} else {
		e.recorder.ObserveTransition(models.StepComplete, models.StepIdle)
	}
	return []models.Reply{models.PlainMessage(e.texts.Submitted)}, nil
}

func (e *Engine) advance(ctx context.Context, sess models.Session, next models.Step, fields models.Fields) error {
	if _, err := e.sessions.Set(ctx, sess.UserID, models.SessionPatch{Step: next, Fields: fields}); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	e.recorder.ObserveTransition(sess.Step, next)
	return nil
}

func (e *Engine) reset(ctx context.Context, sess models.Session) error {
	if err := e.sessions.Reset(ctx, sess.UserID); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}
	if sess.Step != models.StepIdle {
		e.recorder.ObserveTransition(sess.Step, models.StepIdle)
	}
	return nil
}

func isMenuChoice(choice string) bool {
	switch choice {
	case ChoiceHouseProblem, ChoiceSupport, ChoiceClearChat:
		return true
	}
	return strings.HasPrefix(choice, floorChoicePrefix)
}
