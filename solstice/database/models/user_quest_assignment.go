package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentFailed    AssignmentStatus = "failed"
	AssignmentExpired   AssignmentStatus = "expired"
)

// UserQuestAssignment binds one user to one quest in progress or resolved.
// For a given (user, guild) at most one row with status=assigned exists;
// the partial unique index in the schema backs the SKIP LOCKED algorithm.
type UserQuestAssignment struct {
	bun.BaseModel `bun:"table:user_quest_assignments,alias:uqa"`

	ID                     int64            `bun:"id,pk,autoincrement"`
	UserID                 snowflake.ID     `bun:"user_id,notnull"`
	GuildID                snowflake.ID     `bun:"guild_id,notnull"`
	QuestID                int64            `bun:"quest_id,notnull"`
	Status                 AssignmentStatus `bun:"status,notnull,default:'assigned'"`
	AssignedAt             time.Time        `bun:"assigned_at,notnull"`
	CompletedAt            *time.Time       `bun:"completed_at"`
	VerificationIdentifier string           `bun:"verification_identifier"`
	VerificationAttempts   int              `bun:"verification_attempts,notnull,default:0"`
	XPAwarded              int64            `bun:"xp_awarded,notnull,default:0"`
	FailureReason          string           `bun:"failure_reason"`

	// Relations
	Quest *Quest `bun:"rel:belongs-to,join:quest_id=id"`
}

func (a *UserQuestAssignment) Open() bool {
	return a.Status == AssignmentAssigned
}
