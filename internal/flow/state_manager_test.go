package flow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/ComplaintDesk/internal/models"
	"github.com/BTreeMap/ComplaintDesk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreBasedStateManagerGetCreatesIdle(t *testing.T) {
	st := store.NewInMemoryStore()
	sm := NewStoreBasedStateManager(st)

	sess, err := sm.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, models.StepIdle, sess.Step)
	assert.True(t, sess.Fields.IsEmpty())
	assert.Equal(t, 0, st.SessionCount(), "Get must not persist a fresh session")
}

func TestStoreBasedStateManagerSetMerges(t *testing.T) {
	st := store.NewInMemoryStore()
	sm := NewStoreBasedStateManager(st)
	ctx := context.Background()

	_, err := sm.Set(ctx, "u1", models.SessionPatch{Step: models.StepAwaitingFullName, Fields: models.Fields{ProblemType: "leak"}})
	require.NoError(t, err)
	sess, err := sm.Set(ctx, "u1", models.SessionPatch{Step: models.StepAwaitingFloor, Fields: models.Fields{FullName: "A"}})
	require.NoError(t, err)

	assert.Equal(t, models.StepAwaitingFloor, sess.Step)
	assert.Equal(t, models.Fields{ProblemType: "leak", FullName: "A"}, sess.Fields)

	// An empty step keeps the current one.
	sess, err = sm.Set(ctx, "u1", models.SessionPatch{Fields: models.Fields{Floor: "2"}})
	require.NoError(t, err)
	assert.Equal(t, models.StepAwaitingFloor, sess.Step)
	assert.Equal(t, "2", sess.Fields.Floor)
}

func TestStoreBasedStateManagerReset(t *testing.T) {
	st := store.NewInMemoryStore()
	sm := NewStoreBasedStateManager(st)
	ctx := context.Background()

	_, err := sm.Set(ctx, "u1", models.SessionPatch{Step: models.StepAwaitingApartment})
	require.NoError(t, err)
	require.NoError(t, sm.Reset(ctx, "u1"))

	sess, err := sm.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StepIdle, sess.Step)
	assert.Equal(t, 0, st.SessionCount())
}

func TestStoreBasedStateManagerIgnoresUnusableStep(t *testing.T) {
	st := store.NewInMemoryStore()
	sm := NewStoreBasedStateManager(st)
	ctx := context.Background()

	for _, step := range []models.Step{models.StepComplete, "BOGUS"} {
		sess := models.NewSession("u1", time.Now())
		sess.Step = step
		sess.Fields.FullName = "left over"
		require.NoError(t, st.SaveSession(ctx, sess))

		got, err := sm.Get(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, models.StepIdle, got.Step, step)
		assert.True(t, got.Fields.IsEmpty())
	}
}

func TestUserLocksSerializePerUser(t *testing.T) {
	locks := NewUserLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("same-user")
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.Len())
}

func TestUserLocksIndependentUsers(t *testing.T) {
	locks := NewUserLocks()
	unlockA := locks.Lock("A")

	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("B")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for B blocked behind A")
	}
	assert.Equal(t, 1, locks.Len())
	unlockA()
	assert.Equal(t, 0, locks.Len())
}
