package models

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// UserXP is the per-user-per-guild XP ledger aggregate. TotalXP only ever
// grows; it is the sum of every award across both completion paths.
type UserXP struct {
	bun.BaseModel `bun:"table:user_xp,alias:ux"`

	UserID          snowflake.ID `bun:"user_id,pk"`
	GuildID         snowflake.ID `bun:"guild_id,pk"`
	TotalXP         int64        `bun:"total_xp,notnull,default:0"`
	QuestsCompleted int          `bun:"quests_completed,notnull,default:0"`
	LastQuestAt     time.Time    `bun:"last_quest_at"`
	UpdatedAt       time.Time    `bun:"updated_at,notnull"`
}
