package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/nats-io/nats.go"
)

// Default NATS subjects.
const (
	DefaultNATSInboundSubject  = "complaintdesk.events"
	DefaultNATSOutboundSubject = "complaintdesk.replies"
)

// Publisher is the part of *nats.Conn used for outbound replies.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSService bridges the engine to a NATS bus. Inbound messages are JSON
// models.Event values; replies are published as JSON
// models.OutboundMessage values with keyboards left structured for the
// consumer to render.
type NATSService struct {
	conn            *nats.Conn
	pub             Publisher
	inboundSubject  string
	outboundSubject string
	sub             *nats.Subscription
	queue           *eventQueue
}

// NATSOption configures a NATSService.
type NATSOption func(*NATSService)

// WithNATSSubjects overrides the inbound and outbound subjects.
func WithNATSSubjects(inbound, outbound string) NATSOption {
	return func(s *NATSService) {
		if inbound != "" {
			s.inboundSubject = inbound
		}
		if outbound != "" {
			s.outboundSubject = outbound
		}
	}
}

// WithPublisher replaces the publisher used for replies.
func WithPublisher(p Publisher) NATSOption {
	return func(s *NATSService) { s.pub = p }
}

// ConnectNATS dials url with reconnects enabled.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("Connected to NATS server", "url", url)
	return conn, nil
}

// NewNATSService creates a NATSService on conn. conn may be nil when a
// Publisher is supplied, which is how tests drive it.
func NewNATSService(conn *nats.Conn, opts ...NATSOption) *NATSService {
	s := &NATSService{
		conn:            conn,
		inboundSubject:  DefaultNATSInboundSubject,
		outboundSubject: DefaultNATSOutboundSubject,
		queue:           newEventQueue("nats"),
	}
	if conn != nil {
		s.pub = conn
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the inbound subject.
func (s *NATSService) Start(ctx context.Context) error {
	if s.conn == nil {
		slog.Debug("NATSService has no connection, skipping subscription")
		return nil
	}
	sub, err := s.conn.Subscribe(s.inboundSubject, func(msg *nats.Msg) {
		s.handleMessage(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.inboundSubject, err)
	}
	s.sub = sub
	slog.Info("NATSService subscribed", "subject", s.inboundSubject)
	return nil
}

// Stop unsubscribes, drains the connection and closes the event channel.
func (s *NATSService) Stop() error {
	if s.sub != nil {
		if err := s.sub.Unsubscribe(); err != nil {
			slog.Warn("NATSService unsubscribe failed", "error", err)
		}
	}
	s.queue.stop()
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// Send publishes reply for userID on the outbound subject.
func (s *NATSService) Send(ctx context.Context, userID string, reply models.Reply) error {
	if s.queue.isStopped() {
		return ErrServiceStopped
	}
	if s.pub == nil {
		return fmt.Errorf("nats: no publisher configured")
	}
	data, err := json.Marshal(models.OutboundMessage{UserID: userID, Reply: reply, Time: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal reply: %w", err)
	}
	if err := s.pub.Publish(s.outboundSubject, data); err != nil {
		slog.Error("NATSService publish failed", "error", err, "userID", userID)
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Events returns a channel of inbound events.
func (s *NATSService) Events() <-chan models.Event {
	return s.queue.events
}

func (s *NATSService) handleMessage(data []byte) {
	var ev models.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("NATSService dropping malformed event", "error", err)
		return
	}
	if err := ev.Validate(); err != nil {
		slog.Warn("NATSService dropping invalid event", "error", err, "userID", ev.UserID)
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	s.queue.emit(ev)
}
