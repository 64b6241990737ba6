package messaging

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
)

// DefaultWorkers is the number of dispatcher workers when none is set.
const DefaultWorkers = 4

// Handler processes one event and returns the replies to send.
type Handler interface {
	Handle(ctx context.Context, ev models.Event) ([]models.Reply, error)
}

// DeliveryRecorder is notified when a reply cannot be delivered.
type DeliveryRecorder interface {
	IncDeliveryFailure()
}

// IgnoreFunc reports whether a handler error means the event was dropped
// on purpose and needs no error log.
type IgnoreFunc func(error) bool

// Dispatcher routes inbound events from a Service to a Handler and sends
// the replies back. Events of one user are always handled in arrival order
// by the same worker; different users are handled concurrently.
type Dispatcher struct {
	svc      Service
	handler  Handler
	workers  int
	ignore   IgnoreFunc
	recorder DeliveryRecorder
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithWorkers sets the number of workers.
func WithWorkers(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

// WithIgnore sets the predicate for silently ignored handler errors.
func WithIgnore(fn IgnoreFunc) DispatcherOption {
	return func(d *Dispatcher) { d.ignore = fn }
}

// WithDeliveryRecorder sets the recorder for failed deliveries.
func WithDeliveryRecorder(r DeliveryRecorder) DispatcherOption {
	return func(d *Dispatcher) { d.recorder = r }
}

// NewDispatcher creates a Dispatcher for svc.
func NewDispatcher(svc Service, handler Handler, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		svc:     svc,
		handler: handler,
		workers: DefaultWorkers,
		ignore:  func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run consumes events until the service's channel closes or ctx is done,
// then waits for in-flight events to finish.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("Dispatcher starting", "workers", d.workers)

	queues := make([]chan models.Event, d.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan models.Event, DefaultChannelBufferSize)
		wg.Add(1)
		go func(q <-chan models.Event) {
			defer wg.Done()
			for ev := range q {
				d.process(ctx, ev)
			}
		}(queues[i])
	}

	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		slog.Info("Dispatcher stopped")
	}()

	for {
		select {
		case ev, ok := <-d.svc.Events():
			if !ok {
				slog.Debug("Dispatcher events channel closed")
				return
			}
			select {
			case queues[shard(ev.UserID, d.workers)] <- ev:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			slog.Debug("Dispatcher stopping due to context cancellation")
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, ev models.Event) {
	replies, err := d.handler.Handle(ctx, ev)
	if err != nil {
		if d.ignore(err) {
			slog.Debug("Dispatcher event ignored", "userID", ev.UserID, "event", ev.Kind, "reason", err)
		} else {
			slog.Error("Dispatcher failed to handle event", "userID", ev.UserID, "event", ev.Kind, "error", err)
		}
	}

	for _, reply := range replies {
		if err := d.svc.Send(ctx, ev.UserID, reply); err != nil {
			if d.recorder != nil {
				d.recorder.IncDeliveryFailure()
			}
			if errors.Is(err, ErrServiceStopped) {
				slog.Warn("Dispatcher dropping reply (service stopped)", "userID", ev.UserID)
				return
			}
			slog.Error("Dispatcher failed to deliver reply", "userID", ev.UserID, "error", err)
			return
		}
	}
}

func shard(userID string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % uint32(n))
}
