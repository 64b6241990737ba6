package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/BTreeMap/ComplaintDesk/internal/twiliowhatsapp"
)

// TwilioService implements Service using the Twilio API. Inbound messages
// arrive through TwilioWebhookHandler.
type TwilioService struct {
	client    twiliowhatsapp.Sender
	keyboards *KeyboardState
	queue     *eventQueue
}

// NewTwilioService creates a new TwilioService around client.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{
		client:    client,
		keyboards: NewKeyboardState(),
		queue:     newEventQueue("twilio"),
	}
}

// Start is a no-op for Twilio; inbound traffic comes from the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the event channel.
func (s *TwilioService) Stop() error {
	s.queue.stop()
	return nil
}

// Send renders reply as text and sends it via Twilio.
func (s *TwilioService) Send(ctx context.Context, userID string, reply models.Reply) error {
	if s.queue.isStopped() {
		return ErrServiceStopped
	}
	to, err := CanonicalizePhone(userID)
	if err != nil {
		slog.Error("TwilioService Send validation error", "error", err, "userID", userID)
		return err
	}

	body := s.keyboards.Render(to, reply)
	if err := s.client.SendMessage(ctx, to, body); err != nil {
		return fmt.Errorf("twilio send: %w", err)
	}
	return nil
}

// Events returns a channel of inbound events.
func (s *TwilioService) Events() <-chan models.Event {
	return s.queue.events
}

// TwilioWebhookHandler handles inbound Twilio webhook requests and emits
// them as events.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Twilio webhook received")

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := strings.TrimPrefix(r.FormValue("From"), twiliowhatsapp.WhatsAppPrefix)
	body := r.FormValue("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	userID, err := CanonicalizePhone(from)
	if err != nil {
		slog.Warn("Twilio webhook invalid sender", "from", from, "error", err)
		http.Error(w, "Invalid sender", http.StatusBadRequest)
		return
	}

	if ev, ok := s.keyboards.Parse(userID, body); ok {
		s.queue.emit(ev)
	} else {
		slog.Debug("TwilioService ignoring unknown command", "from", userID)
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
