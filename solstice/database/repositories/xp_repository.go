package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/uptrace/bun"
)

// XPRepository is the read/command surface of the per-guild XP ledger.
// The completion engines write the ledger through QuestTx.AddLedgerXP so
// awards commit atomically with their completion rows; this repository
// serves progress and leaderboard reads plus standalone adjustments.
type XPRepository interface {
	// Get returns the ledger entry for (user, guild), or a zero entry when
	// the user has never earned XP there.
	Get(ctx context.Context, userID, guildID snowflake.ID) (*models.UserXP, error)

	// Add upserts the entry, adding amount to total_xp, incrementing
	// quests_completed and bumping last_quest_at.
	Add(ctx context.Context, userID, guildID snowflake.ID, amount int64) (*models.UserXP, error)

	// Leaderboard returns entries ordered by total_xp descending. Ties are
	// unordered.
	Leaderboard(ctx context.Context, guildID snowflake.ID, limit int) ([]*models.UserXP, error)
}

type xpRepository struct {
	db *bun.DB
}

func NewXPRepository(db *bun.DB) XPRepository {
	return &xpRepository{db: db}
}

func (r *xpRepository) Get(ctx context.Context, userID, guildID snowflake.ID) (*models.UserXP, error) {
	entry := new(models.UserXP)
	err := r.db.NewSelect().
		Model(entry).
		Where("user_id = ?", userID).
		Where("guild_id = ?", guildID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.UserXP{UserID: userID, GuildID: guildID}, nil
		}
		return nil, &RepositoryError{Operation: "get", Entity: "xp ledger", Err: err}
	}

	return entry, nil
}

func (r *xpRepository) Add(ctx context.Context, userID, guildID snowflake.ID, amount int64) (*models.UserXP, error) {
	now := time.Now()
	entry := &models.UserXP{
		UserID:          userID,
		GuildID:         guildID,
		TotalXP:         amount,
		QuestsCompleted: 1,
		LastQuestAt:     now,
		UpdatedAt:       now,
	}

	_, err := r.db.NewInsert().
		Model(entry).
		On("CONFLICT (user_id, guild_id) DO UPDATE").
		Set("total_xp = ux.total_xp + EXCLUDED.total_xp").
		Set("quests_completed = ux.quests_completed + 1").
		Set("last_quest_at = EXCLUDED.last_quest_at").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, &RepositoryError{Operation: "add", Entity: "xp ledger", Err: err}
	}

	return entry, nil
}

func (r *xpRepository) Leaderboard(ctx context.Context, guildID snowflake.ID, limit int) ([]*models.UserXP, error) {
	var entries []*models.UserXP
	err := r.db.NewSelect().
		Model(&entries).
		Where("guild_id = ?", guildID).
		Order("total_xp DESC").
		Limit(limit).
		Scan(ctx)

	return entries, err
}
