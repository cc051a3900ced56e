package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/uptrace/bun"
)

// QuestStore is the transactional surface the assignment and completion
// engines run on. Every multi-step state transition happens inside one
// RunInTx call; a failed callback rolls the whole transaction back.
type QuestStore interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx QuestTx) error) error

	// ActiveAssignment reads the user's current assigned quest (with quest
	// and tasks loaded) outside any transaction. Returns nil when none.
	ActiveAssignment(ctx context.Context, userID, guildID snowflake.ID) (*models.UserQuestAssignment, error)

	// IncrementVerificationAttempts is cheap bookkeeping independent of the
	// completion outcome and deliberately not transactional.
	IncrementVerificationAttempts(ctx context.Context, assignmentID int64) error
}

// QuestTx is the set of statements available inside a quest transaction.
type QuestTx interface {
	// TryLockActiveAssignment locks the user's assigned row with
	// FOR UPDATE SKIP LOCKED so concurrent callers for other users never
	// block on it. Returns nil when no assigned row is visible.
	TryLockActiveAssignment(ctx context.Context, userID, guildID snowflake.ID) (*models.UserQuestAssignment, error)

	// EligibleQuests returns the candidate set for assignment: active, not
	// exhausted, not already completed by this user.
	EligibleQuests(ctx context.Context, guildID, userID snowflake.ID) ([]*models.Quest, error)

	InsertAssignment(ctx context.Context, a *models.UserQuestAssignment) error

	// CompleteAssignment flips assigned -> completed. Returns false when the
	// row was no longer in assigned state, so callers can short-circuit
	// instead of double-awarding.
	CompleteAssignment(ctx context.Context, assignmentID int64, identifier string, xp int64) (bool, error)

	// FailAssignment flips assigned -> failed with a reason. Returns false
	// when the row was no longer assigned.
	FailAssignment(ctx context.Context, assignmentID int64, reason string) (bool, error)

	IncrementQuestCompletions(ctx context.Context, questID int64) error
	IncrementTaskCompletions(ctx context.Context, taskID int64) error

	// InsertTaskCompletion returns false when a row for (user, task) already
	// exists; the unique constraint makes re-submission idempotent.
	InsertTaskCompletion(ctx context.Context, c *models.UserTaskCompletion) (bool, error)

	CountActiveTasks(ctx context.Context, questID int64) (int, error)
	CountTaskCompletions(ctx context.Context, userID snowflake.ID, questID int64) (int, error)

	// AddLedgerXP upserts the (user, guild) ledger entry, adding amount to
	// total_xp and questsDelta to quests_completed. last_quest_at is bumped
	// only when questsDelta > 0.
	AddLedgerXP(ctx context.Context, userID, guildID snowflake.ID, amount int64, questsDelta int) (*models.UserXP, error)
}

type questStore struct {
	db *bun.DB
}

func NewQuestStore(db *bun.DB) QuestStore {
	return &questStore{db: db}
}

func (s *questStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx QuestTx) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, defaultTxTimeout)
	defer cancel()

	return s.db.RunInTx(timeoutCtx, &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, &questTx{tx: tx})
		})
}

func (s *questStore) ActiveAssignment(ctx context.Context, userID, guildID snowflake.ID) (*models.UserQuestAssignment, error) {
	a := new(models.UserQuestAssignment)
	err := s.db.NewSelect().
		Model(a).
		Relation("Quest").
		Relation("Quest.Tasks", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("uqa.user_id = ?", userID).
		Where("uqa.guild_id = ?", guildID).
		Where("uqa.status = ?", models.AssignmentAssigned).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active assignment: %w", err)
	}

	return a, nil
}

func (s *questStore) IncrementVerificationAttempts(ctx context.Context, assignmentID int64) error {
	_, err := s.db.NewUpdate().
		Model((*models.UserQuestAssignment)(nil)).
		Set("verification_attempts = verification_attempts + 1").
		Where("id = ?", assignmentID).
		Exec(ctx)
	return err
}

type questTx struct {
	tx bun.Tx
}

func (t *questTx) TryLockActiveAssignment(ctx context.Context, userID, guildID snowflake.ID) (*models.UserQuestAssignment, error) {
	a := new(models.UserQuestAssignment)
	err := t.tx.NewSelect().
		Model(a).
		Where("user_id = ?", userID).
		Where("guild_id = ?", guildID).
		Where("status = ?", models.AssignmentAssigned).
		For("UPDATE SKIP LOCKED").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock active assignment: %w", err)
	}

	return a, nil
}

func (t *questTx) EligibleQuests(ctx context.Context, guildID, userID snowflake.ID) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := t.tx.NewSelect().
		Model(&quests).
		Relation("Tasks", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("q.guild_id = ?", guildID).
		Where("q.active = ?", true).
		Where("(q.max_completions IS NULL OR q.total_completions < q.max_completions)").
		Where("q.id NOT IN (SELECT quest_id FROM user_quest_assignments WHERE user_id = ? AND guild_id = ? AND status = ?)",
			userID, guildID, models.AssignmentCompleted).
		Order("q.id ASC").
		Scan(ctx)

	return quests, err
}

func (t *questTx) InsertAssignment(ctx context.Context, a *models.UserQuestAssignment) error {
	a.Status = models.AssignmentAssigned
	a.AssignedAt = time.Now()

	_, err := t.tx.NewInsert().Model(a).Exec(ctx)
	if err != nil {
		if IsUniqueViolation(err) {
			return &ConflictError{Entity: "assignment", Field: "user_id, guild_id", Value: a.UserID}
		}
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	return nil
}

func (t *questTx) CompleteAssignment(ctx context.Context, assignmentID int64, identifier string, xp int64) (bool, error) {
	res, err := t.tx.NewUpdate().
		Model((*models.UserQuestAssignment)(nil)).
		Set("status = ?", models.AssignmentCompleted).
		Set("completed_at = ?", time.Now()).
		Set("verification_identifier = ?", identifier).
		Set("xp_awarded = ?", xp).
		Where("id = ?", assignmentID).
		Where("status = ?", models.AssignmentAssigned).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to complete assignment %d: %w", assignmentID, err)
	}

	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (t *questTx) FailAssignment(ctx context.Context, assignmentID int64, reason string) (bool, error) {
	res, err := t.tx.NewUpdate().
		Model((*models.UserQuestAssignment)(nil)).
		Set("status = ?", models.AssignmentFailed).
		Set("failure_reason = ?", reason).
		Where("id = ?", assignmentID).
		Where("status = ?", models.AssignmentAssigned).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fail assignment %d: %w", assignmentID, err)
	}

	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (t *questTx) IncrementQuestCompletions(ctx context.Context, questID int64) error {
	_, err := t.tx.NewUpdate().
		Model((*models.Quest)(nil)).
		Set("total_completions = total_completions + 1").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", questID).
		Exec(ctx)
	return err
}

func (t *questTx) IncrementTaskCompletions(ctx context.Context, taskID int64) error {
	_, err := t.tx.NewUpdate().
		Model((*models.QuestTask)(nil)).
		Set("total_completions = total_completions + 1").
		Set("updated_at = ?", time.Now()).
		Where("id = ?", taskID).
		Exec(ctx)
	return err
}

func (t *questTx) InsertTaskCompletion(ctx context.Context, c *models.UserTaskCompletion) (bool, error) {
	c.CompletedAt = time.Now()

	res, err := t.tx.NewInsert().
		Model(c).
		On("CONFLICT (user_id, task_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert task completion: %w", err)
	}

	affected, _ := res.RowsAffected()
	return affected == 1, nil
}

func (t *questTx) CountActiveTasks(ctx context.Context, questID int64) (int, error) {
	return t.tx.NewSelect().
		Model((*models.QuestTask)(nil)).
		Where("quest_id = ?", questID).
		Where("active = ?", true).
		Count(ctx)
}

func (t *questTx) CountTaskCompletions(ctx context.Context, userID snowflake.ID, questID int64) (int, error) {
	return t.tx.NewSelect().
		Model((*models.UserTaskCompletion)(nil)).
		Where("user_id = ?", userID).
		Where("quest_id = ?", questID).
		Count(ctx)
}

func (t *questTx) AddLedgerXP(ctx context.Context, userID, guildID snowflake.ID, amount int64, questsDelta int) (*models.UserXP, error) {
	now := time.Now()
	entry := &models.UserXP{
		UserID:          userID,
		GuildID:         guildID,
		TotalXP:         amount,
		QuestsCompleted: questsDelta,
		UpdatedAt:       now,
	}
	if questsDelta > 0 {
		entry.LastQuestAt = now
	}

	_, err := t.tx.NewInsert().
		Model(entry).
		On("CONFLICT (user_id, guild_id) DO UPDATE").
		Set("total_xp = ux.total_xp + EXCLUDED.total_xp").
		Set("quests_completed = ux.quests_completed + EXCLUDED.quests_completed").
		Set("last_quest_at = CASE WHEN EXCLUDED.quests_completed > 0 THEN EXCLUDED.last_quest_at ELSE ux.last_quest_at END").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert xp ledger: %w", err)
	}

	return entry, nil
}
