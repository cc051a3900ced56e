package services

import "errors"

// Terminal domain outcomes. Store-level failures are returned as wrapped
// repository errors instead and are safe to retry after rollback.
var (
	// ErrNoActiveQuest means the user has nothing assigned; terminal until
	// they request a quest.
	ErrNoActiveQuest = errors.New("no active quest")

	// ErrNoQuestsAvailable means the eligible set is empty; terminal until
	// the catalog changes.
	ErrNoQuestsAvailable = errors.New("no quests available")

	// ErrQuestHasTasks rejects single-shot verification of a task-based
	// quest; the two completion paths never mix.
	ErrQuestHasTasks = errors.New("quest completes through its tasks")

	// ErrQuestHasNoTasks rejects task completion against a
	// single-verification quest.
	ErrQuestHasNoTasks = errors.New("quest has no tasks")

	ErrTaskNotInQuest = errors.New("task does not belong to the active quest")
	ErrTaskInactive   = errors.New("task is not active")
	ErrTaskExhausted  = errors.New("task completion cap reached")
)
