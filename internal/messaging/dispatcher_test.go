package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentReply struct {
	UserID string
	Reply  models.Reply
}

// recordingService is an in-memory Service.
type recordingService struct {
	events  chan models.Event
	mu      sync.Mutex
	sent    []sentReply
	sendErr error
}

func newRecordingService() *recordingService {
	return &recordingService{events: make(chan models.Event, DefaultChannelBufferSize)}
}

func (r *recordingService) Start(ctx context.Context) error { return nil }
func (r *recordingService) Stop() error                    { close(r.events); return nil }
func (r *recordingService) Events() <-chan models.Event    { return r.events }

func (r *recordingService) Send(ctx context.Context, userID string, reply models.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sendErr != nil {
		return r.sendErr
	}
	r.sent = append(r.sent, sentReply{UserID: userID, Reply: reply})
	return nil
}

func (r *recordingService) Sent() []sentReply {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentReply(nil), r.sent...)
}

// echoHandler replies with the event text and records the order per user.
type echoHandler struct {
	mu      sync.Mutex
	seen    map[string][]string
	active  map[string]bool
	overlap bool
	err     error
}

func (h *echoHandler) Handle(ctx context.Context, ev models.Event) ([]models.Reply, error) {
	h.mu.Lock()
	if h.seen == nil {
		h.seen = make(map[string][]string)
		h.active = make(map[string]bool)
	}
	if h.active[ev.UserID] {
		h.overlap = true
	}
	h.active[ev.UserID] = true
	h.seen[ev.UserID] = append(h.seen[ev.UserID], ev.Text)
	h.mu.Unlock()

	time.Sleep(time.Millisecond)

	h.mu.Lock()
	h.active[ev.UserID] = false
	h.mu.Unlock()
	return []models.Reply{models.PlainMessage("echo " + ev.Text)}, h.err
}

type countingDeliveryRecorder struct {
	mu    sync.Mutex
	count int
}

func (c *countingDeliveryRecorder) IncDeliveryFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
}

func TestDispatcherPreservesPerUserOrder(t *testing.T) {
	svc := newRecordingService()
	h := &echoHandler{}
	d := NewDispatcher(svc, h, WithWorkers(3))

	const perUser = 20
	users := []string{"a", "b", "c", "d", "e"}
	for i := 0; i < perUser; i++ {
		for _, u := range users {
			svc.events <- models.TextInput(u, fmt.Sprint(i))
		}
	}
	require.NoError(t, svc.Stop())

	d.Run(context.Background())

	assert.False(t, h.overlap, "events of one user must never run concurrently")
	for _, u := range users {
		require.Len(t, h.seen[u], perUser)
		for i, text := range h.seen[u] {
			assert.Equal(t, fmt.Sprint(i), text)
		}
	}
	assert.Len(t, svc.Sent(), perUser*len(users))
}

func TestDispatcherSendsRepliesEvenWithHandlerError(t *testing.T) {
	svc := newRecordingService()
	ignored := errors.New("ignored")
	h := &echoHandler{err: ignored}
	d := NewDispatcher(svc, h, WithIgnore(func(err error) bool { return errors.Is(err, ignored) }))

	svc.events <- models.TextInput("u", "x")
	require.NoError(t, svc.Stop())
	d.Run(context.Background())

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "echo x", sent[0].Reply.Text)
	assert.Equal(t, "u", sent[0].UserID)
}

func TestDispatcherCountsDeliveryFailures(t *testing.T) {
	svc := newRecordingService()
	svc.sendErr = errors.New("network down")
	rec := &countingDeliveryRecorder{}
	d := NewDispatcher(svc, &echoHandler{}, WithDeliveryRecorder(rec))

	svc.events <- models.TextInput("a", "1")
	svc.events <- models.TextInput("b", "2")
	require.NoError(t, svc.Stop())
	d.Run(context.Background())

	assert.Equal(t, 2, rec.count)
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	svc := newRecordingService()
	d := NewDispatcher(svc, &echoHandler{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

func TestShardIsStable(t *testing.T) {
	for _, u := range []string{"a", "79990001122", "console"} {
		assert.Equal(t, shard(u, 7), shard(u, 7))
		assert.Less(t, shard(u, 7), 7)
	}
}
