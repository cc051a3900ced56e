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

// QuestRepository is the read (and seed-time write) surface of the quest
// catalog. Quest content is authored out of process; this core treats it as
// read-only apart from the migrate tool.
type QuestRepository interface {
	GetQuest(ctx context.Context, questID int64) (*models.Quest, error)
	GetTask(ctx context.Context, taskID int64) (*models.QuestTask, error)
	GetActiveQuests(ctx context.Context, guildID snowflake.ID) ([]*models.Quest, error)
	GetActiveTasks(ctx context.Context, questID int64) ([]*models.QuestTask, error)
	CompletedQuestIDs(ctx context.Context, userID, guildID snowflake.ID) ([]int64, error)
	CompletedTaskIDs(ctx context.Context, userID snowflake.ID, questID int64) ([]int64, error)

	CreateQuest(ctx context.Context, quest *models.Quest) error
	CreateTask(ctx context.Context, task *models.QuestTask) error
	SetQuestActive(ctx context.Context, questID int64, active bool) error
}

type questRepository struct {
	db *bun.DB
}

func NewQuestRepository(db *bun.DB) QuestRepository {
	return &questRepository{db: db}
}

func (r *questRepository) GetQuest(ctx context.Context, questID int64) (*models.Quest, error) {
	quest := new(models.Quest)
	err := r.db.NewSelect().
		Model(quest).
		Relation("Tasks", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("q.id = ?", questID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "quest", ID: questID}
		}
		return nil, fmt.Errorf("failed to get quest %d: %w", questID, err)
	}

	return quest, nil
}

func (r *questRepository) GetTask(ctx context.Context, taskID int64) (*models.QuestTask, error) {
	task := new(models.QuestTask)
	err := r.db.NewSelect().
		Model(task).
		Relation("Quest").
		Where("qt.id = ?", taskID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "quest task", ID: taskID}
		}
		return nil, fmt.Errorf("failed to get task %d: %w", taskID, err)
	}

	return task, nil
}

func (r *questRepository) GetActiveQuests(ctx context.Context, guildID snowflake.ID) ([]*models.Quest, error) {
	var quests []*models.Quest
	err := r.db.NewSelect().
		Model(&quests).
		Relation("Tasks", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("position ASC")
		}).
		Where("q.guild_id = ?", guildID).
		Where("q.active = ?", true).
		Order("q.id ASC").
		Scan(ctx)

	return quests, err
}

func (r *questRepository) GetActiveTasks(ctx context.Context, questID int64) ([]*models.QuestTask, error) {
	var tasks []*models.QuestTask
	err := r.db.NewSelect().
		Model(&tasks).
		Where("quest_id = ?", questID).
		Where("active = ?", true).
		Order("position ASC").
		Scan(ctx)

	return tasks, err
}

func (r *questRepository) CompletedQuestIDs(ctx context.Context, userID, guildID snowflake.ID) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*models.UserQuestAssignment)(nil)).
		Column("quest_id").
		Where("user_id = ?", userID).
		Where("guild_id = ?", guildID).
		Where("status = ?", models.AssignmentCompleted).
		Scan(ctx, &ids)

	return ids, err
}

func (r *questRepository) CompletedTaskIDs(ctx context.Context, userID snowflake.ID, questID int64) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*models.UserTaskCompletion)(nil)).
		Column("task_id").
		Where("user_id = ?", userID).
		Where("quest_id = ?", questID).
		Scan(ctx, &ids)

	return ids, err
}

func (r *questRepository) CreateQuest(ctx context.Context, quest *models.Quest) error {
	if err := quest.Verification.Validate(); err != nil && !quest.HasTasks() {
		return fmt.Errorf("invalid quest verification config: %w", err)
	}

	quest.CreatedAt = time.Now()
	quest.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(quest).Exec(ctx)
	return err
}

func (r *questRepository) CreateTask(ctx context.Context, task *models.QuestTask) error {
	if err := task.Verification.Validate(); err != nil {
		return fmt.Errorf("invalid task verification config: %w", err)
	}

	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	_, err := r.db.NewInsert().Model(task).Exec(ctx)
	return err
}

func (r *questRepository) SetQuestActive(ctx context.Context, questID int64, active bool) error {
	res, err := r.db.NewUpdate().
		Model((*models.Quest)(nil)).
		Set("active = ?", active).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", questID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return &NotFoundError{Entity: "quest", ID: questID}
	}
	return nil
}
