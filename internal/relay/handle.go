package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatrelay/relay/internal/conversation"
	"github.com/chatrelay/relay/internal/events"
	"github.com/chatrelay/relay/internal/llm"
	"github.com/chatrelay/relay/internal/metrics"
)

// Reply is what the transport shows the user for one inbound message.
type Reply struct {
	Text string
	// RateLimited marks an admission rejection; Text already explains
	// the limit.
	RateLimited bool
	// Partial marks a reply cut short by a stream failure. The partial
	// text was surfaced but not recorded in history.
	Partial bool
}

// HandleMessage runs the full relay flow for one inbound message:
// admission, history append, token-budget pruning, streaming completion,
// and history update. onDelta receives text fragments for live display
// and may be nil.
//
// Only a non-empty completed response is appended to history as a model
// turn. Partial text from an interrupted stream is shown to the user but
// never recorded, so a truncated reply cannot poison future context.
func (s *Service) HandleMessage(ctx context.Context, userID string, parts []conversation.Part, onDelta func(string)) Reply {
	if !s.SubmitUserTurn(ctx, userID, parts) {
		metrics.MessagesTotal.WithLabelValues("rate_limited").Inc()
		return Reply{
			RateLimited: true,
			Text: fmt.Sprintf("You're sending messages too quickly: at most %d per %s. Please wait a bit and try again.",
				s.rateLimit, formatWindow(s.rateWindow)),
		}
	}

	history := s.HistoryForCompletion(ctx, userID)

	start := time.Now()
	text, err := s.generator.GenerateStream(ctx, history, onDelta)
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		kind := llm.KindOf(err)
		metrics.MessagesTotal.WithLabelValues("failed").Inc()
		metrics.CompletionFailuresTotal.WithLabelValues(kind.String()).Inc()
		s.publisher.Publish(ctx, events.SubjectCompletionFailed, userID, kind.String())

		switch kind {
		case llm.KindConfiguration:
			slog.Error("completion failed: provider configuration problem", "user_id", userID, "error", err)
		default:
			slog.Warn("completion failed", "user_id", userID, "kind", kind.String(), "error", err)
		}

		notice := failureNotice(kind)
		if text != "" {
			// Interrupted mid-stream: show what we have, flag it, and
			// leave history untouched past the user's own turn.
			return Reply{Text: text + "\n\n" + notice, Partial: true}
		}
		return Reply{Text: notice}
	}

	if text == "" {
		metrics.MessagesTotal.WithLabelValues("empty").Inc()
		return Reply{Text: "The assistant returned an empty response. Please try again."}
	}

	if err := s.conversations.Append(ctx, userID, conversation.NewTurn(conversation.RoleModel, conversation.TextPart(text))); err != nil {
		slog.Warn("appending model turn", "user_id", userID, "error", err)
	}
	metrics.MessagesTotal.WithLabelValues("ok").Inc()
	return Reply{Text: text}
}

// failureNotice maps a failure kind to the user-visible message. Raw
// provider error text never appears here.
func failureNotice(kind llm.Kind) string {
	switch kind {
	case llm.KindQuota:
		return "The assistant has hit its usage limit. Please try again in a little while."
	case llm.KindContentFiltered:
		return "The assistant declined to answer that. Try rephrasing your message."
	case llm.KindConfiguration:
		return "The assistant is misconfigured. Please contact the operator."
	default:
		return "Something went wrong talking to the assistant. Please try again."
	}
}

func formatWindow(w time.Duration) string {
	if w >= time.Minute && w%time.Minute == 0 {
		m := int(w / time.Minute)
		if m == 1 {
			return "minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	return w.String()
}
