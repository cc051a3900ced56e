package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// Quest is a unit of user-facing work with an XP reward. A quest either
// carries its own verification (no tasks) or is decomposed into ordered
// tasks; the two completion paths are mutually exclusive.
type Quest struct {
	bun.BaseModel `bun:"table:quests,alias:q"`

	ID               int64              `bun:"id,pk,autoincrement"`
	GuildID          snowflake.ID       `bun:"guild_id,notnull"`
	Name             string             `bun:"name,notnull"`
	Description      string             `bun:"description"`
	XPReward         int64              `bun:"xp_reward,notnull,default:0"`
	Verification     VerificationConfig `bun:"verification,type:jsonb"`
	Active           bool               `bun:"active,notnull,default:true"`
	MaxCompletions   *int               `bun:"max_completions"`
	TotalCompletions int                `bun:"total_completions,notnull,default:0"`
	CreatorID        snowflake.ID       `bun:"creator_id,notnull"`
	CreatedAt        time.Time          `bun:"created_at,notnull"`
	UpdatedAt        time.Time          `bun:"updated_at,notnull"`

	// Relations
	Tasks []*QuestTask `bun:"rel:has-many,join:id=quest_id"`
}

// Exhausted reports whether the quest has reached its completion cap.
func (q *Quest) Exhausted() bool {
	return q.MaxCompletions != nil && q.TotalCompletions >= *q.MaxCompletions
}

// HasTasks reports whether the quest completes through the task path.
func (q *Quest) HasTasks() bool {
	return len(q.Tasks) > 0
}

// ActiveTasks returns the quest's active tasks in position order. Tasks are
// loaded pre-ordered by the repository; this only filters.
func (q *Quest) ActiveTasks() []*QuestTask {
	var active []*QuestTask
	for _, t := range q.Tasks {
		if t.Active {
			active = append(active, t)
		}
	}
	return active
}
