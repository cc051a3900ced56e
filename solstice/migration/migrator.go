package migration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/solsticebot/solstice/solstice/database/repositories"
	"github.com/solsticebot/solstice/solstice/services"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Migrator imports the old bot's Mongo data into Postgres and seeds the
// quest catalog from Spaces. One-off tooling; the running bot never touches
// this package.
type Migrator struct {
	pgDB      *bun.DB
	mongoDB   *mongo.Database
	xpLedger  repositories.XPRepository
	batchSize int
	stats     MigrationStats

	// Mongo collection names (overrideable)
	collNames map[string]string
}

func NewMigrator(pgDB *bun.DB) *Migrator {
	return &Migrator{
		pgDB:      pgDB,
		batchSize: 1000,
		stats: MigrationStats{
			Tables:    make(map[string]*TableStats),
			StartTime: time.Now(),
		},
		collNames: map[string]string{
			"users":      "users",
			"userquests": "userquests",
		},
	}
}

// SetMongo attaches a live Mongo database for the legacy import steps.
func (m *Migrator) SetMongo(db *mongo.Database) { m.mongoDB = db }

// SetLedgerCredit makes ImportQuestHistory also credit each imported quest
// into the XP ledger. For legacy datasets that have per-quest records but no
// aggregate totals collection; do not combine with ImportLedgers or XP is
// counted twice.
func (m *Migrator) SetLedgerCredit(xp repositories.XPRepository) { m.xpLedger = xp }

// SetBatchSize overrides the default batch size for inserts (useful for
// poolers/timeouts)
func (m *Migrator) SetBatchSize(size int) {
	if size > 0 {
		m.batchSize = size
	}
}

// SetCollectionName overrides the Mongo collection name for a given kind.
func (m *Migrator) SetCollectionName(kind, name string) {
	m.collNames[kind] = name
}

// ImportLedgers copies the old bot's per-user XP totals into the ledger.
// Existing ledger rows are left untouched so a re-run never clobbers XP
// earned since the cutover.
func (m *Migrator) ImportLedgers(ctx context.Context) error {
	if m.mongoDB == nil {
		return nil
	}

	stats := m.stats.table("user_xp")

	col := m.mongoDB.Collection(m.collNames["users"])
	cur, err := col.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query users: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.UserXP
	for cur.Next(ctx) {
		var lu LegacyUser
		if err := cur.Decode(&lu); err != nil {
			stats.Failed++
			continue
		}
		stats.Read++

		entry, err := m.convertLedger(lu)
		if err != nil {
			stats.Skipped++
			continue
		}

		batch = append(batch, entry)
		if len(batch) >= m.batchSize {
			if err := m.insertLedgerBatch(ctx, batch, stats); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		if err := m.insertLedgerBatch(ctx, batch, stats); err != nil {
			return err
		}
	}

	slog.Info("Ledger import finished",
		slog.Int("read", stats.Read),
		slog.Int("inserted", stats.Inserted),
		slog.Int("skipped", stats.Skipped))
	return nil
}

func (m *Migrator) convertLedger(lu LegacyUser) (*models.UserXP, error) {
	userID, err := snowflake.Parse(lu.DiscordID)
	if err != nil {
		return nil, fmt.Errorf("bad discord_id %q: %w", lu.DiscordID, err)
	}
	guildID, err := snowflake.Parse(lu.GuildID)
	if err != nil {
		return nil, fmt.Errorf("bad guild_id %q: %w", lu.GuildID, err)
	}

	return &models.UserXP{
		UserID:          userID,
		GuildID:         guildID,
		TotalXP:         int64(lu.Exp),
		QuestsCompleted: int(lu.QuestsDone),
		LastQuestAt:     lu.LastQuest,
		UpdatedAt:       time.Now(),
	}, nil
}

func (m *Migrator) insertLedgerBatch(ctx context.Context, batch []*models.UserXP, stats *TableStats) error {
	res, err := m.pgDB.NewInsert().
		Model(&batch).
		On("CONFLICT (user_id, guild_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert ledger batch: %w", err)
	}

	affected, _ := res.RowsAffected()
	stats.Inserted += int(affected)
	stats.Skipped += len(batch) - int(affected)
	return nil
}

// ImportQuestHistory replays the old bot's completed quests as completed
// assignment rows so users don't get re-assigned quests they finished before
// the cutover. Records whose quest name is unknown in the new catalog are
// skipped. With SetLedgerCredit, each imported record is also credited into
// the XP ledger.
func (m *Migrator) ImportQuestHistory(ctx context.Context) error {
	if m.mongoDB == nil {
		return nil
	}

	stats := m.stats.table("user_quest_assignments")

	questIDs, err := m.questIDsByName(ctx)
	if err != nil {
		return err
	}

	col := m.mongoDB.Collection(m.collNames["userquests"])
	cur, err := col.Find(ctx, bson.D{})
	if err != nil {
		return fmt.Errorf("failed to query quest history: %w", err)
	}
	defer cur.Close(ctx)

	var batch []*models.UserQuestAssignment
	for cur.Next(ctx) {
		var rec LegacyQuestRecord
		if err := cur.Decode(&rec); err != nil {
			stats.Failed++
			continue
		}
		stats.Read++

		a, err := m.convertQuestRecord(rec, questIDs)
		if err != nil {
			stats.Skipped++
			continue
		}

		batch = append(batch, a)
		if len(batch) >= m.batchSize {
			if err := m.insertHistoryBatch(ctx, batch, stats); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := cur.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		if err := m.insertHistoryBatch(ctx, batch, stats); err != nil {
			return err
		}
	}

	slog.Info("Quest history import finished",
		slog.Int("read", stats.Read),
		slog.Int("inserted", stats.Inserted),
		slog.Int("skipped", stats.Skipped))
	return nil
}

func (m *Migrator) convertQuestRecord(rec LegacyQuestRecord, questIDs map[string]int64) (*models.UserQuestAssignment, error) {
	userID, err := snowflake.Parse(rec.DiscordID)
	if err != nil {
		return nil, fmt.Errorf("bad discord_id %q: %w", rec.DiscordID, err)
	}
	guildID, err := snowflake.Parse(rec.GuildID)
	if err != nil {
		return nil, fmt.Errorf("bad guild_id %q: %w", rec.GuildID, err)
	}

	questID, ok := questIDs[normalizeName(rec.QuestName)]
	if !ok {
		return nil, fmt.Errorf("unknown quest %q", rec.QuestName)
	}

	completedAt := rec.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	return &models.UserQuestAssignment{
		UserID:                 userID,
		GuildID:                guildID,
		QuestID:                questID,
		Status:                 models.AssignmentCompleted,
		AssignedAt:             completedAt,
		CompletedAt:            &completedAt,
		VerificationIdentifier: rec.Identifier,
		XPAwarded:              int64(rec.XP),
	}, nil
}

func (m *Migrator) insertHistoryBatch(ctx context.Context, batch []*models.UserQuestAssignment, stats *TableStats) error {
	_, err := m.pgDB.NewInsert().
		Model(&batch).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert history batch: %w", err)
	}
	stats.Inserted += len(batch)

	if m.xpLedger != nil {
		m.creditHistoryBatch(ctx, batch)
	}
	return nil
}

// creditHistoryBatch replays a batch of imported completions into the XP
// ledger, one quest and its XP per record. A failed credit is logged and
// counted but does not abort the run.
func (m *Migrator) creditHistoryBatch(ctx context.Context, batch []*models.UserQuestAssignment) {
	stats := m.stats.table("xp_credits")
	for _, a := range batch {
		if _, err := m.xpLedger.Add(ctx, a.UserID, a.GuildID, a.XPAwarded); err != nil {
			slog.Warn("Failed to credit imported quest into ledger",
				slog.String("user_id", a.UserID.String()),
				slog.Int64("quest_id", a.QuestID),
				slog.Any("error", err))
			stats.Failed++
			continue
		}
		stats.Inserted++
	}
}

func (m *Migrator) questIDsByName(ctx context.Context) (map[string]int64, error) {
	var quests []*models.Quest
	err := m.pgDB.NewSelect().
		Model(&quests).
		Column("q.id", "q.name").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load quest names: %w", err)
	}

	ids := make(map[string]int64, len(quests))
	for _, q := range quests {
		ids[normalizeName(q.Name)] = q.ID
	}
	return ids, nil
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SeedQuests loads quest definitions from Spaces and inserts the ones not
// already in the catalog. One JSON document per quest; documents with an
// invalid verification config are reported and skipped.
func (m *Migrator) SeedQuests(ctx context.Context, spaces *services.SpacesService, prefix string, guildID, creatorID snowflake.ID) error {
	stats := m.stats.table("quests")

	keys, err := spaces.ListKeys(ctx, prefix)
	if err != nil {
		return err
	}

	existing, err := m.questIDsByName(ctx)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}

		var seed QuestSeed
		if err := spaces.GetJSON(ctx, key, &seed); err != nil {
			slog.Warn("Skipping unreadable seed file",
				slog.String("key", key),
				slog.Any("error", err))
			stats.Failed++
			continue
		}
		stats.Read++

		if _, ok := existing[normalizeName(seed.Name)]; ok {
			stats.Skipped++
			continue
		}

		if err := m.insertSeed(ctx, seed, guildID, creatorID); err != nil {
			slog.Warn("Skipping invalid seed",
				slog.String("key", key),
				slog.String("quest", seed.Name),
				slog.Any("error", err))
			stats.Failed++
			continue
		}
		stats.Inserted++
	}

	slog.Info("Quest seeding finished",
		slog.Int("read", stats.Read),
		slog.Int("inserted", stats.Inserted),
		slog.Int("skipped", stats.Skipped),
		slog.Int("failed", stats.Failed))
	return nil
}

func (m *Migrator) insertSeed(ctx context.Context, seed QuestSeed, guildID, creatorID snowflake.ID) error {
	if seed.Name == "" {
		return fmt.Errorf("seed has no name")
	}

	if len(seed.Tasks) == 0 {
		if err := seed.Verification.Validate(); err != nil {
			return fmt.Errorf("quest verification: %w", err)
		}
	}
	for i, task := range seed.Tasks {
		if err := task.Verification.Validate(); err != nil {
			return fmt.Errorf("task %d verification: %w", i, err)
		}
	}

	active := true
	if seed.Active != nil {
		active = *seed.Active
	}

	now := time.Now()
	quest := &models.Quest{
		GuildID:        guildID,
		Name:           seed.Name,
		Description:    seed.Description,
		XPReward:       seed.XPReward,
		Verification:   seed.Verification,
		Active:         active,
		MaxCompletions: seed.MaxCompletions,
		CreatorID:      creatorID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	return m.pgDB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(quest).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert quest: %w", err)
		}

		for i, ts := range seed.Tasks {
			position := ts.Position
			if position == 0 {
				position = i
			}
			task := &models.QuestTask{
				QuestID:        quest.ID,
				Title:          ts.Title,
				Points:         ts.Points,
				Verification:   ts.Verification,
				Position:       position,
				Active:         true,
				MaxCompletions: ts.MaxCompletions,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if _, err := tx.NewInsert().Model(task).Exec(ctx); err != nil {
				return fmt.Errorf("failed to insert task %q: %w", ts.Title, err)
			}
		}
		return nil
	})
}

// Report logs the aggregate counters for the whole run.
func (m *Migrator) Report() {
	for name, t := range m.stats.Tables {
		slog.Info("Migration table summary",
			slog.String("table", name),
			slog.Int("read", t.Read),
			slog.Int("inserted", t.Inserted),
			slog.Int("skipped", t.Skipped),
			slog.Int("failed", t.Failed))
	}
	slog.Info("Migration run finished",
		slog.Duration("took", time.Since(m.stats.StartTime)))
}
