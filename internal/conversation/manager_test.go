package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounter charges a fixed cost per turn, or fails.
type fakeCounter struct {
	perTurn int
	err     error
	calls   int
}

func (f *fakeCounter) CountTokens(_ context.Context, turns []Turn) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	return len(turns) * f.perTurn, nil
}

func newTestManager(t *testing.T, counter TokenCounter, maxMessages, maxTokens int) (*Manager, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore(24 * time.Hour)
	return NewManager(store, counter, maxMessages, maxTokens), store
}

func userTurn(text string) Turn {
	return NewTurn(RoleUser, TextPart(text))
}

func TestManager_AppendTrimsToMessageCap(t *testing.T) {
	m, _ := newTestManager(t, &fakeCounter{perTurn: 1}, 4, 1000)
	ctx := context.Background()

	// cap = 4: add six turns, expect exactly the last four in order
	for i := 1; i <= 6; i++ {
		require.NoError(t, m.Append(ctx, "u1", userTurn(fmt.Sprintf("msg-%d", i))))
	}

	turns, err := m.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, turns, 4)
	for i, want := range []string{"msg-3", "msg-4", "msg-5", "msg-6"} {
		assert.Equal(t, want, turns[i].Parts[0].Text)
	}
}

func TestManager_AppendRejectsMalformedTurns(t *testing.T) {
	m, _ := newTestManager(t, &fakeCounter{perTurn: 1}, 4, 1000)
	ctx := context.Background()

	assert.Error(t, m.Append(ctx, "u1", Turn{Role: RoleUser}))
	assert.Error(t, m.Append(ctx, "u1", Turn{Role: "assistant", Parts: []Part{TextPart("hi")}}))
}

func TestManager_HistoryEmptyForUnknownUser(t *testing.T) {
	m, _ := newTestManager(t, &fakeCounter{perTurn: 1}, 4, 1000)

	turns, err := m.History(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestManager_HistoryReturnsOwnedCopy(t *testing.T) {
	m, _ := newTestManager(t, &fakeCounter{perTurn: 1}, 4, 1000)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "u1", userTurn("original")))

	turns, err := m.History(ctx, "u1")
	require.NoError(t, err)
	turns[0] = userTurn("mutated")

	again, err := m.History(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0].Parts[0].Text)
}

func TestManager_Clear(t *testing.T) {
	m, _ := newTestManager(t, &fakeCounter{perTurn: 1}, 4, 1000)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "u1", userTurn("hello")))
	require.NoError(t, m.Clear(ctx, "u1"))

	turns, err := m.History(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, turns)

	// Clearing an unknown user is a no-op.
	assert.NoError(t, m.Clear(ctx, "ghost"))
}

func TestManager_PruneDropsOldestUntilBudgetFits(t *testing.T) {
	// budget 100, three turns at 40 tokens each (120 total) → drop one
	m, _ := newTestManager(t, &fakeCounter{perTurn: 40}, 10, 100)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, m.Append(ctx, "u1", userTurn(text)))
	}

	turns, err := m.PruneToTokenBudget(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "second", turns[0].Parts[0].Text)
	assert.Equal(t, "third", turns[1].Parts[0].Text)
}

func TestManager_PrunePersistsTrimmedHistory(t *testing.T) {
	m, _ := newTestManager(t, &fakeCounter{perTurn: 40}, 10, 100)
	ctx := context.Background()

	for _, text := range []string{"first", "second", "third"} {
		require.NoError(t, m.Append(ctx, "u1", userTurn(text)))
	}

	_, err := m.PruneToTokenBudget(ctx, "u1")
	require.NoError(t, err)

	turns, err := m.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestManager_PruneKeepsSingleOversizedTurn(t *testing.T) {
	// budget 10, one turn costing 500 → kept as-is
	m, _ := newTestManager(t, &fakeCounter{perTurn: 500}, 10, 10)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "u1", userTurn("enormous")))

	turns, err := m.PruneToTokenBudget(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "enormous", turns[0].Parts[0].Text)
}

func TestManager_PruneWithinBudgetIsUntouched(t *testing.T) {
	counter := &fakeCounter{perTurn: 10}
	m, _ := newTestManager(t, counter, 10, 1000)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Append(ctx, "u1", userTurn("hi")))
	}

	turns, err := m.PruneToTokenBudget(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, turns, 3)
	assert.Equal(t, 1, counter.calls)
}

func TestManager_PruneFailsOpenOnCounterError(t *testing.T) {
	m, _ := newTestManager(t, &fakeCounter{err: errors.New("counter down")}, 10, 10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, m.Append(ctx, "u1", userTurn("hi")))
	}

	turns, err := m.PruneToTokenBudget(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, turns, 3, "counting failure must not drop history")
}

func TestManager_PruneEmptyHistory(t *testing.T) {
	counter := &fakeCounter{perTurn: 1}
	m, _ := newTestManager(t, counter, 10, 10)

	turns, err := m.PruneToTokenBudget(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Zero(t, counter.calls)
}

func TestManager_PruneNeverReorders(t *testing.T) {
	m, _ := newTestManager(t, &fakeCounter{perTurn: 30}, 20, 100)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		require.NoError(t, m.Append(ctx, "u1", userTurn(fmt.Sprintf("t%d", i))))
	}

	turns, err := m.PruneToTokenBudget(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	for i, want := range []string{"t3", "t4", "t5"} {
		assert.Equal(t, want, turns[i].Parts[0].Text)
	}
}

func TestMemoryStore_CleanupExpiresIdleConversations(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(24 * time.Hour).WithClock(func() time.Time { return now })
	m := NewManager(store, &fakeCounter{perTurn: 1}, 10, 1000)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "idle", userTurn("hello")))

	// 25h later the conversation is past the 24h idle threshold.
	now = now.Add(25 * time.Hour)
	require.NoError(t, m.CleanupInactive(ctx))

	turns, err := m.History(ctx, "idle")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestMemoryStore_CleanupIsIdempotent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(24 * time.Hour).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "active", []Turn{userTurn("hi")}))
	now = now.Add(time.Hour)

	require.NoError(t, store.Cleanup(ctx))
	require.Equal(t, 1, store.Len())
	require.NoError(t, store.Cleanup(ctx))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_CleanupKeepsActiveConversations(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore(24 * time.Hour).WithClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "old", []Turn{userTurn("hi")}))
	now = now.Add(23 * time.Hour)
	require.NoError(t, store.Put(ctx, "new", []Turn{userTurn("hi")}))
	now = now.Add(2 * time.Hour)

	require.NoError(t, store.Cleanup(ctx))
	old, _ := store.Get(ctx, "old")
	fresh, _ := store.Get(ctx, "new")
	assert.Empty(t, old)
	assert.Len(t, fresh, 1)
}
