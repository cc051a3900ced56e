package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/solsticebot/solstice/solstice/database/repositories"
	"github.com/solsticebot/solstice/solstice/verification"
)

const defaultVerifyTimeout = 15 * time.Second

// CompletionService records verified units of work and awards XP.
// It dispatches on quest shape: single-verification quests complete through
// VerifyAndComplete, task-based quests through CompleteTask; the two paths
// never apply to the same quest, so quests_completed is incremented exactly
// once per (user, quest).
type CompletionService struct {
	store         repositories.QuestStore
	verifier      verification.Provider
	verifyTimeout time.Duration
}

func NewCompletionService(store repositories.QuestStore, verifier verification.Provider) *CompletionService {
	return &CompletionService{
		store:         store,
		verifier:      verifier,
		verifyTimeout: defaultVerifyTimeout,
	}
}

// CompletionResult is the outcome of verifying a single-verification quest.
type CompletionResult struct {
	Assignment *models.UserQuestAssignment
	XPAwarded  int64
	Ledger     *models.UserXP

	// AlreadyCompleted marks an idempotent short-circuit: the assignment
	// was resolved by a concurrent call and no XP moved here.
	AlreadyCompleted bool

	// Failed carries a verification rejection. Retryable rejections leave
	// the assignment open; permanent ones mark it failed.
	Failed        bool
	Retryable     bool
	FailureReason string
}

// VerifyAndComplete checks the user's active single-verification quest
// against its provider and, on success, commits the completion, the quest
// counter and the XP award in one transaction.
//
// The provider call runs under its own timeout before the persisting
// transaction opens; a slow endpoint never holds a database transaction.
func (s *CompletionService) VerifyAndComplete(ctx context.Context, userID, guildID snowflake.ID, identifier string) (*CompletionResult, error) {
	assignment, err := s.store.ActiveAssignment(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrNoActiveQuest
	}

	quest := assignment.Quest
	if quest == nil {
		return nil, fmt.Errorf("assignment %d references missing quest %d", assignment.ID, assignment.QuestID)
	}
	if quest.HasTasks() {
		return nil, ErrQuestHasTasks
	}

	s.bumpAttempts(ctx, assignment.ID)

	identifier = normalizeIdentifier(quest.Verification.Kind, identifier)

	result, verr := s.verify(ctx, quest.Verification, verification.Subject{
		UserID:     userID,
		GuildID:    guildID,
		Identifier: identifier,
	})
	if verr != nil {
		slog.Warn("Verification provider unavailable",
			slog.Int64("quest_id", quest.ID),
			slog.String("user_id", userID.String()),
			slog.Any("error", verr))
		return &CompletionResult{
			Assignment:    assignment,
			Failed:        true,
			Retryable:     true,
			FailureReason: "verification is temporarily unavailable",
		}, nil
	}

	if !result.Success {
		return s.recordRejection(ctx, assignment, result)
	}

	var (
		ledger      *models.UserXP
		alreadyDone bool
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.QuestTx) error {
		ok, err := tx.CompleteAssignment(ctx, assignment.ID, identifier, quest.XPReward)
		if err != nil {
			return err
		}
		if !ok {
			alreadyDone = true
			return nil
		}
		if err := tx.IncrementQuestCompletions(ctx, quest.ID); err != nil {
			return err
		}
		ledger, err = tx.AddLedgerXP(ctx, userID, guildID, quest.XPReward, 1)
		return err
	})
	if err != nil {
		return nil, err
	}

	if alreadyDone {
		return &CompletionResult{Assignment: assignment, AlreadyCompleted: true}, nil
	}

	now := time.Now()
	assignment.Status = models.AssignmentCompleted
	assignment.CompletedAt = &now
	assignment.VerificationIdentifier = identifier
	assignment.XPAwarded = quest.XPReward

	slog.Info("Quest completed",
		slog.String("user_id", userID.String()),
		slog.Int64("quest_id", quest.ID),
		slog.Int64("xp", quest.XPReward))

	return &CompletionResult{
		Assignment: assignment,
		XPAwarded:  quest.XPReward,
		Ledger:     ledger,
	}, nil
}

// TaskResult is the outcome of completing one task of the active quest.
type TaskResult struct {
	Completion *models.UserTaskCompletion
	Task       *models.QuestTask
	Ledger     *models.UserXP

	AlreadyCompleted bool
	QuestCompleted   bool

	Failed        bool
	Retryable     bool
	FailureReason string
}

// CompleteTask records one verified task. The insert, the points award and
// the closing of the parent quest (when this was the last open task) commit
// in a single transaction. Re-submitting a finished task short-circuits on
// the (user, task) unique constraint and never pays twice.
func (s *CompletionService) CompleteTask(ctx context.Context, userID, guildID snowflake.ID, taskID int64, identifier string) (*TaskResult, error) {
	assignment, err := s.store.ActiveAssignment(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, ErrNoActiveQuest
	}

	quest := assignment.Quest
	if quest == nil {
		return nil, fmt.Errorf("assignment %d references missing quest %d", assignment.ID, assignment.QuestID)
	}
	if !quest.HasTasks() {
		return nil, ErrQuestHasNoTasks
	}

	var task *models.QuestTask
	for _, t := range quest.Tasks {
		if t.ID == taskID {
			task = t
			break
		}
	}
	if task == nil {
		return nil, ErrTaskNotInQuest
	}
	if !task.Active {
		return nil, ErrTaskInactive
	}
	if task.Exhausted() {
		return nil, ErrTaskExhausted
	}

	s.bumpAttempts(ctx, assignment.ID)

	identifier = normalizeIdentifier(task.Verification.Kind, identifier)

	result, verr := s.verify(ctx, task.Verification, verification.Subject{
		UserID:     userID,
		GuildID:    guildID,
		Identifier: identifier,
	})
	if verr != nil {
		slog.Warn("Verification provider unavailable",
			slog.Int64("task_id", task.ID),
			slog.String("user_id", userID.String()),
			slog.Any("error", verr))
		return &TaskResult{
			Task:          task,
			Failed:        true,
			Retryable:     true,
			FailureReason: "verification is temporarily unavailable",
		}, nil
	}
	if !result.Success {
		// Task rejections never fail the parent assignment; the user can
		// retry this task or work on another.
		return &TaskResult{
			Task:          task,
			Failed:        true,
			Retryable:     !result.Permanent,
			FailureReason: result.Details,
		}, nil
	}

	completion := &models.UserTaskCompletion{
		UserID:                 userID,
		GuildID:                guildID,
		TaskID:                 task.ID,
		QuestID:                quest.ID,
		XPAwarded:              task.Points,
		VerificationIdentifier: identifier,
	}

	var (
		ledger         *models.UserXP
		already        bool
		questCompleted bool
	)
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.QuestTx) error {
		inserted, err := tx.InsertTaskCompletion(ctx, completion)
		if err != nil {
			return err
		}
		if !inserted {
			already = true
			return nil
		}

		if err := tx.IncrementTaskCompletions(ctx, task.ID); err != nil {
			return err
		}
		ledger, err = tx.AddLedgerXP(ctx, userID, guildID, task.Points, 0)
		if err != nil {
			return err
		}

		total, err := tx.CountActiveTasks(ctx, quest.ID)
		if err != nil {
			return err
		}
		done, err := tx.CountTaskCompletions(ctx, userID, quest.ID)
		if err != nil {
			return err
		}
		if done < total {
			return nil
		}

		// Closing step. The assignment's own xp_awarded stays zero: every
		// point of a task-based quest is accounted on its completion rows.
		ok, err := tx.CompleteAssignment(ctx, assignment.ID, identifier, 0)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := tx.IncrementQuestCompletions(ctx, quest.ID); err != nil {
			return err
		}
		ledger, err = tx.AddLedgerXP(ctx, userID, guildID, 0, 1)
		if err != nil {
			return err
		}
		questCompleted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if already {
		return &TaskResult{Task: task, AlreadyCompleted: true}, nil
	}

	slog.Info("Task completed",
		slog.String("user_id", userID.String()),
		slog.Int64("quest_id", quest.ID),
		slog.Int64("task_id", task.ID),
		slog.Int64("points", task.Points),
		slog.Bool("quest_completed", questCompleted))

	return &TaskResult{
		Completion:     completion,
		Task:           task,
		Ledger:         ledger,
		QuestCompleted: questCompleted,
	}, nil
}

func (s *CompletionService) verify(ctx context.Context, cfg models.VerificationConfig, sub verification.Subject) (verification.Result, error) {
	vctx, cancel := context.WithTimeout(ctx, s.verifyTimeout)
	defer cancel()
	return s.verifier.Verify(vctx, cfg, sub)
}

func (s *CompletionService) recordRejection(ctx context.Context, assignment *models.UserQuestAssignment, result verification.Result) (*CompletionResult, error) {
	if !result.Permanent {
		return &CompletionResult{
			Assignment:    assignment,
			Failed:        true,
			Retryable:     true,
			FailureReason: result.Details,
		}, nil
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.QuestTx) error {
		_, err := tx.FailAssignment(ctx, assignment.ID, result.Details)
		return err
	})
	if err != nil {
		return nil, err
	}

	assignment.Status = models.AssignmentFailed
	assignment.FailureReason = result.Details

	return &CompletionResult{
		Assignment:    assignment,
		Failed:        true,
		Retryable:     false,
		FailureReason: result.Details,
	}, nil
}

// bumpAttempts is bookkeeping outside the completion transaction; a failure
// here never blocks the verification flow.
func (s *CompletionService) bumpAttempts(ctx context.Context, assignmentID int64) {
	if err := s.store.IncrementVerificationAttempts(ctx, assignmentID); err != nil {
		slog.Warn("Failed to count verification attempt",
			slog.Int64("assignment_id", assignmentID),
			slog.Any("error", err))
	}
}

func normalizeIdentifier(kind models.VerificationKind, identifier string) string {
	if identifier == "" && kind.IsPlatformNative() {
		return models.PlatformIdentifier
	}
	return identifier
}
