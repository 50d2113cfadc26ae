package telegram

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// streamEditor renders a streaming completion as one Telegram message
// that is edited in place as text arrives. Edits are throttled to stay
// under Telegram's per-chat editing limits; the final text is always
// flushed.
type streamEditor struct {
	ctx      context.Context
	api      API
	chatID   int64
	interval time.Duration

	// onDelta is invoked from a single goroutine (the generator's), so
	// no locking is needed around this state.
	buf       strings.Builder
	messageID int64
	lastEdit  time.Time
	lastText  string
}

func newStreamEditor(ctx context.Context, api API, chatID int64, interval time.Duration) *streamEditor {
	return &streamEditor{ctx: ctx, api: api, chatID: chatID, interval: interval}
}

// OnDelta accumulates a text fragment and refreshes the displayed
// message when the throttle allows.
func (e *streamEditor) OnDelta(delta string) {
	e.buf.WriteString(delta)

	if e.messageID == 0 {
		id, err := e.api.SendMessage(e.ctx, e.chatID, streamPlaceholder)
		if err != nil {
			slog.Debug("sending stream placeholder failed", "chat_id", e.chatID, "error", err)
			return
		}
		e.messageID = id
		e.lastEdit = time.Now()
		return
	}

	if time.Since(e.lastEdit) < e.interval {
		return
	}
	e.edit(e.buf.String())
}

// Finish displays the final reply text, reusing the streamed message
// when one exists and sending a fresh message otherwise (e.g. an error
// notice before any delta arrived).
func (e *streamEditor) Finish(text string) {
	if text == "" {
		return
	}
	if e.messageID == 0 {
		if _, err := e.api.SendMessage(e.ctx, e.chatID, text); err != nil {
			slog.Warn("sendMessage failed", "chat_id", e.chatID, "error", err)
		}
		return
	}
	if text != e.lastText {
		e.edit(text)
	}
}

func (e *streamEditor) edit(text string) {
	if err := e.api.EditMessageText(e.ctx, e.chatID, e.messageID, text); err != nil {
		slog.Debug("editMessageText failed", "chat_id", e.chatID, "error", err)
		return
	}
	e.lastEdit = time.Now()
	e.lastText = text
}
