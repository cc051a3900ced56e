package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// ConversationMessage is one entry of an authoring-dialogue transcript.
type ConversationMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Conversation holds short-lived per-user authoring scratch state. At most
// one live row per (user, guild); an upsert replaces state and extends the
// expiry.
type Conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:conv"`

	UserID    snowflake.ID          `bun:"user_id,pk"`
	GuildID   snowflake.ID          `bun:"guild_id,pk"`
	State     map[string]any        `bun:"state,type:jsonb"`
	Messages  []ConversationMessage `bun:"messages,type:jsonb"`
	ExpiresAt time.Time             `bun:"expires_at,notnull"`
	UpdatedAt time.Time             `bun:"updated_at,notnull"`
}

func (c *Conversation) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
