package memory

import (
	"strings"
	"time"
)

// Type classifies what kind of moment a memory captures.
type Type string

const (
	TypeAchievement  Type = "achievement"
	TypeMilestone    Type = "milestone"
	TypeFirstTime    Type = "first_time"
	TypeDramatic     Type = "dramatic"
	TypeConversation Type = "conversation"
	TypeEvent        Type = "event"
	TypeObservation  Type = "observation"
)

var knownTypes = map[Type]bool{
	TypeAchievement:  true,
	TypeMilestone:    true,
	TypeFirstTime:    true,
	TypeDramatic:     true,
	TypeConversation: true,
	TypeEvent:        true,
	TypeObservation:  true,
}

func ParseType(s string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	return t, knownTypes[t]
}

// Context is an open bag of caller-supplied event metadata. A small set of
// keys influences importance scoring; everything else passes through
// untouched.
type Context map[string]any

const (
	ContextRarity      = "rarity"
	ContextMVP         = "mvp"
	ContextIsLegendary = "isLegendary"
	ContextWinStreak   = "winStreak"
	ContextLossStreak  = "lossStreak"
)

func (c Context) String(key string) string {
	if v, ok := c[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (c Context) Bool(key string) bool {
	if v, ok := c[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// Int tolerates the numeric types JSON decoding and callers actually hand us.
func (c Context) Int(key string) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return 0
}

// Memory is a durable, owner-scoped unit of player history used to
// personalize dialogue.
type Memory struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId"`
	Type       Type      `json:"type"`
	Content    string    `json:"content"`
	Emotion    string    `json:"emotion,omitempty"`
	Importance float64   `json:"importance"`
	Context    Context   `json:"context,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (m Memory) Validate() error {
	if len(strings.TrimSpace(m.OwnerID)) == 0 {
		return ValidationError{Field: "ownerId", Reason: "is required"}
	}
	if len(strings.TrimSpace(m.Content)) == 0 {
		return ValidationError{Field: "content", Reason: "is required"}
	}
	if !knownTypes[m.Type] {
		return ValidationError{Field: "type", Reason: "unknown memory type"}
	}
	if m.Importance < 0 || m.Importance > 1 {
		return ValidationError{Field: "importance", Reason: "must be between 0 and 1"}
	}
	return nil
}
