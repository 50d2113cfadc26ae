// Package events publishes relay lifecycle events to NATS JetStream for
// downstream consumers (auditing, usage dashboards). Publishing is
// optional and best-effort: a failed publish is logged, never surfaced
// to the user's request.
package events

import "time"

// Stream and subject layout.
const (
	StreamName = "RELAY_EVENTS"

	SubjectAdmitted          = "relay.events.admitted"
	SubjectRateLimited       = "relay.events.rate_limited"
	SubjectCompletionFailed  = "relay.events.completion_failed"
	SubjectConversationClear = "relay.events.conversation_cleared"
)

// Event is one relay occurrence worth telling the outside world about.
type Event struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
