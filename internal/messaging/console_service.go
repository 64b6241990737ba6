package messaging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
)

// ConsoleUserID is the user id of the single console resident.
const ConsoleUserID = "console"

// ConsoleService is a text transport over a reader and a writer, used for
// local simulation.
type ConsoleService struct {
	in        io.Reader
	out       io.Writer
	outMu     sync.Mutex
	keyboards *KeyboardState
	queue     *eventQueue
}

// NewConsoleService creates a ConsoleService reading lines from in.
func NewConsoleService(in io.Reader, out io.Writer) *ConsoleService {
	return &ConsoleService{
		in:        in,
		out:       out,
		keyboards: NewKeyboardState(),
		queue:     newEventQueue("console"),
	}
}

// Start reads input lines in the background. The event channel closes when
// the input ends.
func (s *ConsoleService) Start(ctx context.Context) error {
	go func() {
		defer s.queue.stop()
		s.scan(ctx, func(ev models.Event) { s.queue.emit(ev) })
	}()
	return nil
}

// Serve handles input lines one at a time with h until the input ends, so
// that every reply is written before the next line is read.
func (s *ConsoleService) Serve(ctx context.Context, h Handler) {
	s.scan(ctx, func(ev models.Event) {
		replies, err := h.Handle(ctx, ev)
		if err != nil {
			slog.Debug("ConsoleService handler error", "error", err)
		}
		for _, reply := range replies {
			_ = s.Send(ctx, ev.UserID, reply)
		}
	})
}

func (s *ConsoleService) scan(ctx context.Context, fn func(models.Event)) {
	scanner := bufio.NewScanner(s.in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		ev, ok := s.keyboards.Parse(ConsoleUserID, scanner.Text())
		if !ok {
			s.write("Unknown command. Try /help.")
			continue
		}
		fn(ev)
	}
	if err := scanner.Err(); err != nil {
		slog.Error("ConsoleService read failed", "error", err)
	}
}

// Stop closes the event channel.
func (s *ConsoleService) Stop() error {
	s.queue.stop()
	return nil
}

// Send writes the rendered reply.
func (s *ConsoleService) Send(ctx context.Context, userID string, reply models.Reply) error {
	s.write(s.keyboards.Render(userID, reply))
	return nil
}

// Events returns a channel of inbound events.
func (s *ConsoleService) Events() <-chan models.Event {
	return s.queue.events
}

func (s *ConsoleService) write(text string) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, "%s\n\n", text)
}
