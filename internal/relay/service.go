// Package relay ties admission control, conversation state, and the
// completion provider into the service the transport layer talks to.
package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/chatrelay/relay/internal/conversation"
	"github.com/chatrelay/relay/internal/events"
	"github.com/chatrelay/relay/internal/metrics"
	"github.com/chatrelay/relay/internal/ratelimit"
)

// Generator produces a completion for an ordered history, streaming text
// fragments through onDelta as they arrive. On failure the accumulated
// partial text is returned alongside the error.
type Generator interface {
	GenerateStream(ctx context.Context, turns []conversation.Turn, onDelta func(string)) (string, error)
}

// Service is the relay core consumed by the transport layer.
type Service struct {
	limiter       ratelimit.Limiter
	conversations *conversation.Manager
	generator     Generator
	publisher     *events.Publisher

	rateLimit  int
	rateWindow time.Duration
}

// New creates the relay service.
func New(
	limiter ratelimit.Limiter,
	conversations *conversation.Manager,
	generator Generator,
	publisher *events.Publisher,
	rateLimit int,
	rateWindow time.Duration,
) *Service {
	return &Service{
		limiter:       limiter,
		conversations: conversations,
		generator:     generator,
		publisher:     publisher,
		rateLimit:     rateLimit,
		rateWindow:    rateWindow,
	}
}

// SubmitUserTurn runs the admission check and, if admitted, appends the
// user's turn to their history.
func (s *Service) SubmitUserTurn(ctx context.Context, userID string, parts []conversation.Part) bool {
	if !s.limiter.Allow(ctx, userID) {
		metrics.RateLimitedTotal.Inc()
		s.publisher.Publish(ctx, events.SubjectRateLimited, userID, "")
		return false
	}

	if err := s.conversations.Append(ctx, userID, conversation.NewTurn(conversation.RoleUser, parts...)); err != nil {
		// The turn was admitted; a store hiccup should not bounce it.
		slog.Warn("appending user turn", "user_id", userID, "error", err)
	}
	s.publisher.Publish(ctx, events.SubjectAdmitted, userID, "")
	return true
}

// HistoryForCompletion returns the user's history pruned to the token
// budget, as an owned copy ready to send to the provider.
func (s *Service) HistoryForCompletion(ctx context.Context, userID string) []conversation.Turn {
	turns, err := s.conversations.PruneToTokenBudget(ctx, userID)
	if err != nil {
		slog.Warn("pruning history", "user_id", userID, "error", err)
		return nil
	}
	return turns
}

// Clear wipes the user's conversation.
func (s *Service) Clear(ctx context.Context, userID string) {
	if err := s.conversations.Clear(ctx, userID); err != nil {
		slog.Warn("clearing conversation", "user_id", userID, "error", err)
		return
	}
	s.publisher.Publish(ctx, events.SubjectConversationClear, userID, "")
}

// TurnCount returns the current length of the user's history.
func (s *Service) TurnCount(ctx context.Context, userID string) int {
	turns, err := s.conversations.History(ctx, userID)
	if err != nil {
		slog.Warn("loading history", "user_id", userID, "error", err)
		return 0
	}
	return len(turns)
}

// RunPeriodicCleanup trims stale rate windows and idle conversations. It
// never lets a failure escape: the caller is a bare timer loop.
func (s *Service) RunPeriodicCleanup(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during periodic cleanup", "panic", r)
		}
	}()

	start := time.Now()
	s.limiter.Cleanup(ctx)
	if err := s.conversations.CleanupInactive(ctx); err != nil {
		slog.Warn("cleaning up inactive conversations", "error", err)
	}
	slog.Debug("periodic cleanup done", "duration", time.Since(start))
}
