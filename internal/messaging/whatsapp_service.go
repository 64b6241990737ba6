package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/BTreeMap/ComplaintDesk/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
// Keyboards are rendered as numbered lists.
type WhatsAppService struct {
	client    whatsapp.Sender
	waClient  *whatsapp.Client // Access to underlying client for event handling
	keyboards *KeyboardState
	queue     *eventQueue
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given Sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		keyboards: NewKeyboardState(),
		queue:     newEventQueue("whatsapp"),
	}

	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")

	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		switch v := evt.(type) {
		case *events.Message:
			s.handleIncomingMessage(v)
		case *events.Disconnected:
			slog.Warn("WhatsAppService disconnected")
		default:
			// Receipts, presence and the rest are not used.
		}
	})
	slog.Info("WhatsAppService event handler registered")
	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	slog.Info("WhatsAppService Stop invoked")
	s.queue.stop()
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	return nil
}

// Send renders reply as text and sends it.
func (s *WhatsAppService) Send(ctx context.Context, userID string, reply models.Reply) error {
	if s.queue.isStopped() {
		return ErrServiceStopped
	}
	to, err := CanonicalizePhone(userID)
	if err != nil {
		slog.Error("WhatsAppService Send validation error", "error", err, "userID", userID)
		return err
	}

	body := s.keyboards.Render(to, reply)
	if err := s.client.SendMessage(ctx, to, body); err != nil {
		slog.Error("WhatsAppService Send error", "error", err, "to", to)
		return fmt.Errorf("whatsapp send: %w", err)
	}
	slog.Debug("WhatsAppService message sent", "to", to, "keyboard", len(reply.Keyboard))
	return nil
}

// Events returns a channel of inbound events.
func (s *WhatsAppService) Events() <-chan models.Event {
	return s.queue.events
}

// handleIncomingMessage processes incoming text messages from residents.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	var text string
	switch {
	case evt.Message.Conversation != nil:
		text = *evt.Message.Conversation
	case evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil:
		text = *evt.Message.ExtendedTextMessage.Text
	default:
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	s.handleIncomingText(evt.Info.Sender.User, text)
}

func (s *WhatsAppService) handleIncomingText(sender, text string) {
	from, err := CanonicalizePhone(sender)
	if err != nil {
		slog.Warn("WhatsAppService ignoring message from invalid sender", "sender", sender, "error", err)
		return
	}
	ev, ok := s.keyboards.Parse(from, text)
	if !ok {
		slog.Debug("WhatsAppService ignoring unknown command", "from", from)
		return
	}
	s.queue.emit(ev)
}
