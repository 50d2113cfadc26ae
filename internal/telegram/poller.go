package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/chatrelay/relay/internal/conversation"
	"github.com/chatrelay/relay/internal/relay"
)

const (
	welcomeText = "Hi! I'm a chat assistant. Send me a message (or a photo) and I'll answer.\n\n" +
		"Commands:\n/start – this message\n/clear – forget our conversation\n/help – help"
	helpText = "Send any text or photo and I'll reply, remembering recent context.\n" +
		"Use /clear to reset the conversation if I get confused."
	clearedText = "Conversation cleared."
	// streamPlaceholder is shown while the first tokens are in flight.
	streamPlaceholder = "…"
)

// API is the slice of the Bot API the poller needs. *Client implements it.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	SendTyping(ctx context.Context, chatID int64) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// Relay is the relay-core surface the poller drives.
type Relay interface {
	HandleMessage(ctx context.Context, userID string, parts []conversation.Part, onDelta func(string)) relay.Reply
	Clear(ctx context.Context, userID string)
}

// Poller long-polls Telegram and dispatches each chat's messages to a
// per-chat worker, so one chat never has two completions in flight while
// different chats proceed concurrently.
type Poller struct {
	api          API
	svc          Relay
	pollTimeout  time.Duration
	editInterval time.Duration

	mu     sync.Mutex
	queues map[int64]chan Message
	wg     sync.WaitGroup
}

// NewPoller creates a poller over the given Bot API client and relay.
func NewPoller(api API, svc Relay, pollTimeout, editInterval time.Duration) *Poller {
	return &Poller{
		api:          api,
		svc:          svc,
		pollTimeout:  pollTimeout,
		editInterval: editInterval,
		queues:       make(map[int64]chan Message),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("telegram poller started", "poll_timeout", p.pollTimeout)

	var offset int64
	for ctx.Err() == nil {
		updates, err := p.api.GetUpdates(ctx, offset, int(p.pollTimeout.Seconds()))
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Warn("getUpdates failed", "error", err)
			time.Sleep(2 * time.Second)
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Message == nil {
				continue
			}
			p.dispatch(ctx, *u.Message)
		}
	}

	p.mu.Lock()
	for _, q := range p.queues {
		close(q)
	}
	p.queues = nil
	p.mu.Unlock()
	p.wg.Wait()
	slog.Info("telegram poller stopped")
}

// dispatch hands a message to its chat's worker, starting one on first
// contact. A full queue drops the message rather than stalling the poll
// loop.
func (p *Poller) dispatch(ctx context.Context, msg Message) {
	p.mu.Lock()
	if p.queues == nil {
		p.mu.Unlock()
		return
	}
	q, ok := p.queues[msg.Chat.ID]
	if !ok {
		q = make(chan Message, 16)
		p.queues[msg.Chat.ID] = q
		p.wg.Add(1)
		go p.chatWorker(ctx, q)
	}
	p.mu.Unlock()

	select {
	case q <- msg:
	default:
		slog.Warn("chat queue full, dropping message", "chat_id", msg.Chat.ID)
	}
}

func (p *Poller) chatWorker(ctx context.Context, q <-chan Message) {
	defer p.wg.Done()
	for msg := range q {
		p.handleMessage(ctx, msg)
	}
}

func (p *Poller) handleMessage(ctx context.Context, msg Message) {
	chatID := msg.Chat.ID
	userID := strconv.FormatInt(chatID, 10)

	switch msg.Text {
	case "/start":
		p.send(ctx, chatID, welcomeText)
		return
	case "/help":
		p.send(ctx, chatID, helpText)
		return
	case "/clear":
		p.svc.Clear(ctx, userID)
		p.send(ctx, chatID, clearedText)
		return
	}

	parts := p.buildParts(ctx, msg)
	if len(parts) == 0 {
		return
	}

	if err := p.api.SendTyping(ctx, chatID); err != nil {
		slog.Debug("sendChatAction failed", "error", err)
	}

	stream := newStreamEditor(ctx, p.api, chatID, p.editInterval)
	reply := p.svc.HandleMessage(ctx, userID, parts, stream.OnDelta)
	stream.Finish(reply.Text)
}

// buildParts converts a Telegram message into conversation parts: photo
// (largest size) plus caption, or plain text. Empty result means nothing
// usable; the message is dropped before it reaches the manager.
func (p *Poller) buildParts(ctx context.Context, msg Message) []conversation.Part {
	var parts []conversation.Part

	if len(msg.Photo) > 0 {
		best := msg.Photo[0]
		for _, ph := range msg.Photo[1:] {
			if ph.Width*ph.Height > best.Width*best.Height {
				best = ph
			}
		}
		data, err := p.api.DownloadFile(ctx, best.FileID)
		if err != nil {
			slog.Warn("downloading photo failed", "chat_id", msg.Chat.ID, "error", err)
		} else {
			// Telegram re-encodes photos as JPEG.
			parts = append(parts, conversation.BlobPart("image/jpeg", data))
		}
		if msg.Caption != "" {
			parts = append(parts, conversation.TextPart(msg.Caption))
		}
		return parts
	}

	if msg.Text != "" {
		parts = append(parts, conversation.TextPart(msg.Text))
	}
	return parts
}

func (p *Poller) send(ctx context.Context, chatID int64, text string) {
	if _, err := p.api.SendMessage(ctx, chatID, text); err != nil {
		slog.Warn("sendMessage failed", "chat_id", chatID, "error", err)
	}
}
