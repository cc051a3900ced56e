package migration

import (
	"time"

	"github.com/solsticebot/solstice/solstice/database/models"
)

// LegacyUser is the old bot's user document. Only the fields the XP ledger
// needs are decoded; everything else in the document is ignored.
type LegacyUser struct {
	DiscordID  string    `bson:"discord_id"`
	GuildID    string    `bson:"guild_id"`
	Exp        float64   `bson:"exp"`
	QuestsDone float64   `bson:"questsdone"`
	LastQuest  time.Time `bson:"lastquest"`
}

// LegacyQuestRecord is one completed quest in the old bot's history
// collection. Quests are referenced by name; records whose name no longer
// matches a seeded quest are skipped.
type LegacyQuestRecord struct {
	DiscordID   string    `bson:"discord_id"`
	GuildID     string    `bson:"guild_id"`
	QuestName   string    `bson:"quest_name"`
	Identifier  string    `bson:"identifier"`
	XP          float64   `bson:"exp"`
	CompletedAt time.Time `bson:"completed_at"`
}

// QuestSeed is one quest definition as authored in a seed JSON document.
type QuestSeed struct {
	Name           string                    `json:"name"`
	Description    string                    `json:"description"`
	XPReward       int64                     `json:"xp_reward"`
	Verification   models.VerificationConfig `json:"verification"`
	Active         *bool                     `json:"active"`
	MaxCompletions *int                      `json:"max_completions"`
	Tasks          []TaskSeed                `json:"tasks"`
}

// TaskSeed is one task definition inside a quest seed.
type TaskSeed struct {
	Title          string                    `json:"title"`
	Points         int64                     `json:"points"`
	Verification   models.VerificationConfig `json:"verification"`
	Position       int                       `json:"position"`
	MaxCompletions *int                      `json:"max_completions"`
}

// TableStats tracks per-table import counters.
type TableStats struct {
	Read     int
	Inserted int
	Skipped  int
	Failed   int
}

// MigrationStats aggregates counters across the whole run.
type MigrationStats struct {
	Tables    map[string]*TableStats
	StartTime time.Time
}

func (s *MigrationStats) table(name string) *TableStats {
	t, ok := s.Tables[name]
	if !ok {
		t = &TableStats{}
		s.Tables[name] = t
	}
	return t
}
