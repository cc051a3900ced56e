package services

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/solsticebot/solstice/solstice/database/repositories"
)

// AssignmentService hands a user their one active quest. Correctness under
// concurrent requests comes from the store: the SKIP LOCKED read keeps
// callers for different users from blocking each other, and the partial
// unique index on (user_id, guild_id) WHERE status='assigned' catches the
// window where two transactions for the same user both see no row.
type AssignmentService struct {
	store repositories.QuestStore

	// Candidate selection is uniform random; rand.Rand is not safe for
	// concurrent use, hence the mutex. Tests swap in a seeded source.
	mu  sync.Mutex
	rng *rand.Rand
}

func NewAssignmentService(store repositories.QuestStore) *AssignmentService {
	return &AssignmentService{
		store: store,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AssignResult reports the user's assignment and whether it predates this
// call.
type AssignResult struct {
	Assignment *models.UserQuestAssignment
	AlreadyHad bool
}

// Assign gives the user an active quest, or returns the one they already
// have. Idempotent: calling it with an open assignment has no side effect.
func (s *AssignmentService) Assign(ctx context.Context, userID, guildID snowflake.ID) (*AssignResult, error) {
	var result AssignResult

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.QuestTx) error {
		existing, err := tx.TryLockActiveAssignment(ctx, userID, guildID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = AssignResult{Assignment: existing, AlreadyHad: true}
			return nil
		}

		candidates, err := tx.EligibleQuests(ctx, guildID, userID)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return ErrNoQuestsAvailable
		}

		quest := candidates[s.pick(len(candidates))]
		assignment := &models.UserQuestAssignment{
			UserID:  userID,
			GuildID: guildID,
			QuestID: quest.ID,
		}
		if err := tx.InsertAssignment(ctx, assignment); err != nil {
			return err
		}

		assignment.Quest = quest
		result = AssignResult{Assignment: assignment}
		return nil
	})

	if err != nil {
		if repositories.IsConflict(err) {
			// Lost the insert race: another transaction assigned first and
			// committed between our lock probe and insert. Return theirs.
			existing, gerr := s.store.ActiveAssignment(ctx, userID, guildID)
			if gerr == nil && existing != nil {
				return &AssignResult{Assignment: existing, AlreadyHad: true}, nil
			}
		}
		return nil, err
	}

	slog.Info("Quest assignment resolved",
		slog.String("user_id", result.Assignment.UserID.String()),
		slog.String("guild_id", guildID.String()),
		slog.Int64("quest_id", result.Assignment.QuestID),
		slog.Bool("already_had", result.AlreadyHad))

	return &result, nil
}

func (s *AssignmentService) pick(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}
