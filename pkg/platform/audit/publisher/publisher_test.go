package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/platform/audit/store/memory"
	"github.com/RevenueScotland/sets-online-portal-sub000/pkg/requestcontext"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		Type:    audit.EventStepCompleted,
		Flow:    "lbtt",
		Session: "s1",
	})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventStepCompleted, events[0].Type)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{Type: audit.EventStepCompleted, Session: "s1"})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{Type: audit.EventStepRejected, Session: "s1"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	pub.Close()

	events, err := store.ListBySession(context.Background(), "s1")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(events), 10)
	assert.NotEmpty(t, events)
}

func TestPublisher_SetsTimestampAndRequestID(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	before := time.Now()
	require.NoError(t, pub.Emit(ctx, audit.Event{Type: audit.EventChildFolded, Session: "s1"}))
	after := time.Now()

	events, err := pub.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.False(t, events[0].Timestamp.Before(before))
	assert.False(t, events[0].Timestamp.After(after))
	assert.Equal(t, "req-1", events[0].RequestID)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{
		Type:      audit.EventReturnSubmitted,
		Session:   "s1",
		Timestamp: custom,
	}))

	events, err := pub.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

func TestPublisher_SeparatesSessions(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Type: audit.EventStepCompleted, Session: "s1"}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Type: audit.EventFlowDiscarded, Session: "s2"}))

	first, err := pub.List(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, audit.EventStepCompleted, first[0].Type)

	second, err := pub.List(context.Background(), "s2")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, audit.EventFlowDiscarded, second[0].Type)
}
