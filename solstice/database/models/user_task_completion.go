package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// UserTaskCompletion records one verified task completion. Unique per
// (user, task); re-submission is detected via the conflict, never paid twice.
type UserTaskCompletion struct {
	bun.BaseModel `bun:"table:user_task_completions,alias:utc"`

	ID                     int64        `bun:"id,pk,autoincrement"`
	UserID                 snowflake.ID `bun:"user_id,notnull"`
	GuildID                snowflake.ID `bun:"guild_id,notnull"`
	TaskID                 int64        `bun:"task_id,notnull"`
	QuestID                int64        `bun:"quest_id,notnull"`
	CompletedAt            time.Time    `bun:"completed_at,notnull"`
	XPAwarded              int64        `bun:"xp_awarded,notnull,default:0"`
	VerificationIdentifier string       `bun:"verification_identifier"`
}
