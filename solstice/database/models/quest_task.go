package models

import (
	"time"

	"github.com/uptrace/bun"
)

// QuestTask is one independently verifiable step of a task-based quest.
type QuestTask struct {
	bun.BaseModel `bun:"table:quest_tasks,alias:qt"`

	ID               int64              `bun:"id,pk,autoincrement"`
	QuestID          int64              `bun:"quest_id,notnull"`
	Title            string             `bun:"title,notnull"`
	Points           int64              `bun:"points,notnull,default:0"`
	Verification     VerificationConfig `bun:"verification,type:jsonb"`
	Position         int                `bun:"position,notnull,default:0"`
	Active           bool               `bun:"active,notnull,default:true"`
	MaxCompletions   *int               `bun:"max_completions"`
	TotalCompletions int                `bun:"total_completions,notnull,default:0"`
	CreatedAt        time.Time          `bun:"created_at,notnull"`
	UpdatedAt        time.Time          `bun:"updated_at,notnull"`

	// Relations
	Quest *Quest `bun:"rel:belongs-to,join:quest_id=id"`
}

// Exhausted reports whether the task has reached its completion cap.
func (t *QuestTask) Exhausted() bool {
	return t.MaxCompletions != nil && t.TotalCompletions >= *t.MaxCompletions
}
