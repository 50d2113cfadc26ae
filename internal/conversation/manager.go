package conversation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chatrelay/relay/internal/metrics"
)

// TokenCounter estimates the total token cost of a history. The count may
// fail transiently (it is a remote call for hosted models); the manager
// fails open in that case.
type TokenCounter interface {
	CountTokens(ctx context.Context, turns []Turn) (int, error)
}

// Manager owns bounded per-user conversation histories. Message count is
// the cheap always-on backstop applied on every append; the token budget
// is the primary limit, applied by PruneToTokenBudget before each
// completion call.
type Manager struct {
	store       Store
	counter     TokenCounter
	maxMessages int
	maxTokens   int
}

// NewManager creates a conversation manager over the given store.
func NewManager(store Store, counter TokenCounter, maxMessages, maxTokens int) *Manager {
	return &Manager{
		store:       store,
		counter:     counter,
		maxMessages: maxMessages,
		maxTokens:   maxTokens,
	}
}

// Append adds a turn to the user's history, creating it on first use and
// trimming oldest turns beyond the message-count cap.
func (m *Manager) Append(ctx context.Context, userID string, turn Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("invalid role %q", turn.Role)
	}
	if len(turn.Parts) == 0 {
		return fmt.Errorf("turn for %s has no parts", userID)
	}

	turns, err := m.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading history for %s: %w", userID, err)
	}

	turns = append(turns, turn)
	if len(turns) > m.maxMessages {
		turns = turns[len(turns)-m.maxMessages:]
	}

	if err := m.store.Put(ctx, userID, turns); err != nil {
		return fmt.Errorf("saving history for %s: %w", userID, err)
	}
	return nil
}

// History returns an owned copy of the user's history, empty if none.
func (m *Manager) History(ctx context.Context, userID string) ([]Turn, error) {
	return m.store.Get(ctx, userID)
}

// Clear removes the user's history. No-op for unknown users.
func (m *Manager) Clear(ctx context.Context, userID string) error {
	return m.store.Delete(ctx, userID)
}

// CleanupInactive drops conversations idle past the store's threshold.
func (m *Manager) CleanupInactive(ctx context.Context) error {
	return m.store.Cleanup(ctx)
}

// PruneToTokenBudget trims the user's history from the front until its
// counted token cost fits the budget, persists the result, and returns an
// owned copy ready to hand to the completion provider.
//
// Counting failures abort pruning and return the history as trimmed so
// far: a broken counter must never block the user's request. A single
// remaining turn is kept even when it alone exceeds the budget; the
// provider may still reject it downstream.
func (m *Manager) PruneToTokenBudget(ctx context.Context, userID string) ([]Turn, error) {
	turns, err := m.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", userID, err)
	}
	if len(turns) == 0 {
		return nil, nil
	}

	dropped := 0
	for {
		total, err := m.counter.CountTokens(ctx, turns)
		if err != nil {
			slog.Warn("token count failed, keeping history as-is",
				"user_id", userID, "turns", len(turns), "error", err)
			break
		}
		if total <= m.maxTokens {
			break
		}
		if len(turns) == 1 {
			slog.Warn("single turn exceeds token budget, sending anyway",
				"user_id", userID, "tokens", total, "budget", m.maxTokens)
			metrics.OversizedTurnsTotal.Inc()
			break
		}
		turns = turns[1:]
		dropped++
	}

	if dropped > 0 {
		metrics.PrunedTurnsTotal.Add(float64(dropped))
		slog.Debug("pruned history to token budget",
			"user_id", userID, "dropped", dropped, "remaining", len(turns))
		if err := m.store.Put(ctx, userID, turns); err != nil {
			return nil, fmt.Errorf("saving pruned history for %s: %w", userID, err)
		}
	}
	return cloneTurns(turns), nil
}
