package conversation

import "time"

// Role identifies who contributed a turn. The completion provider's own
// role vocabulary ("assistant", "system", ...) is translated at the LLM
// client boundary; inside the relay only these two values exist.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleModel
}

// Part is an atomic content unit within a turn: either a text span or a
// binary blob tagged with its media type (e.g. an image from a chat
// attachment).
type Part struct {
	Text      string `json:"text,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart builds a binary part tagged with its media type.
func BlobPart(mediaType string, data []byte) Part {
	return Part{MediaType: mediaType, Data: data}
}

// IsBlob reports whether the part carries binary data rather than text.
func (p Part) IsBlob() bool {
	return len(p.Data) > 0
}

// Turn is one role-tagged contribution to a conversation. Parts is never
// empty: events that produce no usable content are dropped before they
// reach the manager.
type Turn struct {
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn builds a turn from one or more parts.
func NewTurn(role Role, parts ...Part) Turn {
	return Turn{Role: role, Parts: parts, Timestamp: time.Now().UTC()}
}

// cloneTurns returns a deep-enough copy of a turn slice: the slice itself
// is owned by the caller, turn structs are copied by value. Part data is
// shared since parts are treated as immutable after creation.
func cloneTurns(turns []Turn) []Turn {
	if len(turns) == 0 {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
