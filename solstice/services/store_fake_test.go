package services

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/solsticebot/solstice/solstice/database/repositories"
)

type userKey struct {
	userID  snowflake.ID
	guildID snowflake.ID
}

type taskKey struct {
	userID snowflake.ID
	taskID int64
}

// fakeStore is an in-memory QuestStore. Transactions are serialized under
// one mutex; the partial-unique-index backstop is modeled by rejecting a
// second assigned row per (user, guild) with a ConflictError. afterProbe,
// when set, runs between the lock probe and the insert so the lost-race
// window can be exercised deterministically.
type fakeStore struct {
	mu sync.Mutex

	quests      map[int64]*models.Quest
	assignments map[int64]*models.UserQuestAssignment
	completions map[taskKey]*models.UserTaskCompletion
	ledgers     map[userKey]*models.UserXP
	nextID      int64

	afterProbe func(s *fakeStore)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		quests:      make(map[int64]*models.Quest),
		assignments: make(map[int64]*models.UserQuestAssignment),
		completions: make(map[taskKey]*models.UserTaskCompletion),
		ledgers:     make(map[userKey]*models.UserXP),
	}
}

func (s *fakeStore) addQuest(q *models.Quest) *models.Quest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == 0 {
		s.nextID++
		q.ID = s.nextID
	}
	for _, t := range q.Tasks {
		if t.ID == 0 {
			s.nextID++
			t.ID = s.nextID
		}
		t.QuestID = q.ID
	}
	s.quests[q.ID] = q
	return q
}

// insertCompetingAssignment mimics a concurrent transaction committing an
// assignment for the same user.
func (s *fakeStore) insertCompetingAssignment(userID, guildID snowflake.ID, questID int64) {
	s.nextID++
	s.assignments[s.nextID] = &models.UserQuestAssignment{
		ID:         s.nextID,
		UserID:     userID,
		GuildID:    guildID,
		QuestID:    questID,
		Status:     models.AssignmentAssigned,
		AssignedAt: time.Now(),
		Quest:      s.quests[questID],
	}
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repositories.QuestTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &fakeTx{s: s})
}

func (s *fakeStore) ActiveAssignment(_ context.Context, userID, guildID snowflake.ID) (*models.UserQuestAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findAssigned(userID, guildID), nil
}

func (s *fakeStore) IncrementVerificationAttempts(_ context.Context, assignmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.assignments[assignmentID]; ok {
		a.VerificationAttempts++
	}
	return nil
}

func (s *fakeStore) findAssigned(userID, guildID snowflake.ID) *models.UserQuestAssignment {
	for _, a := range s.assignments {
		if a.UserID == userID && a.GuildID == guildID && a.Status == models.AssignmentAssigned {
			a.Quest = s.quests[a.QuestID]
			return a
		}
	}
	return nil
}

func (s *fakeStore) ledger(userID, guildID snowflake.ID) *models.UserXP {
	k := userKey{userID: userID, guildID: guildID}
	entry, ok := s.ledgers[k]
	if !ok {
		entry = &models.UserXP{UserID: userID, GuildID: guildID}
		s.ledgers[k] = entry
	}
	return entry
}

type fakeTx struct {
	s *fakeStore
}

func (t *fakeTx) TryLockActiveAssignment(_ context.Context, userID, guildID snowflake.ID) (*models.UserQuestAssignment, error) {
	a := t.s.findAssigned(userID, guildID)
	if a == nil && t.s.afterProbe != nil {
		hook := t.s.afterProbe
		t.s.afterProbe = nil
		hook(t.s)
	}
	return a, nil
}

func (t *fakeTx) EligibleQuests(_ context.Context, guildID, userID snowflake.ID) ([]*models.Quest, error) {
	completed := make(map[int64]bool)
	for _, a := range t.s.assignments {
		if a.UserID == userID && a.GuildID == guildID && a.Status == models.AssignmentCompleted {
			completed[a.QuestID] = true
		}
	}

	var quests []*models.Quest
	for _, q := range t.s.quests {
		if q.GuildID != guildID || !q.Active || q.Exhausted() || completed[q.ID] {
			continue
		}
		quests = append(quests, q)
	}
	return quests, nil
}

func (t *fakeTx) InsertAssignment(_ context.Context, a *models.UserQuestAssignment) error {
	if t.s.findAssigned(a.UserID, a.GuildID) != nil {
		return &repositories.ConflictError{Entity: "assignment", Field: "user_id, guild_id", Value: a.UserID}
	}

	t.s.nextID++
	a.ID = t.s.nextID
	a.Status = models.AssignmentAssigned
	a.AssignedAt = time.Now()
	t.s.assignments[a.ID] = a
	return nil
}

func (t *fakeTx) CompleteAssignment(_ context.Context, assignmentID int64, identifier string, xp int64) (bool, error) {
	a, ok := t.s.assignments[assignmentID]
	if !ok || a.Status != models.AssignmentAssigned {
		return false, nil
	}
	now := time.Now()
	a.Status = models.AssignmentCompleted
	a.CompletedAt = &now
	a.VerificationIdentifier = identifier
	a.XPAwarded = xp
	return true, nil
}

func (t *fakeTx) FailAssignment(_ context.Context, assignmentID int64, reason string) (bool, error) {
	a, ok := t.s.assignments[assignmentID]
	if !ok || a.Status != models.AssignmentAssigned {
		return false, nil
	}
	a.Status = models.AssignmentFailed
	a.FailureReason = reason
	return true, nil
}

func (t *fakeTx) IncrementQuestCompletions(_ context.Context, questID int64) error {
	if q, ok := t.s.quests[questID]; ok {
		q.TotalCompletions++
	}
	return nil
}

func (t *fakeTx) IncrementTaskCompletions(_ context.Context, taskID int64) error {
	for _, q := range t.s.quests {
		for _, task := range q.Tasks {
			if task.ID == taskID {
				task.TotalCompletions++
			}
		}
	}
	return nil
}

func (t *fakeTx) InsertTaskCompletion(_ context.Context, c *models.UserTaskCompletion) (bool, error) {
	k := taskKey{userID: c.UserID, taskID: c.TaskID}
	if _, exists := t.s.completions[k]; exists {
		return false, nil
	}
	c.CompletedAt = time.Now()
	t.s.completions[k] = c
	return true, nil
}

func (t *fakeTx) CountActiveTasks(_ context.Context, questID int64) (int, error) {
	q, ok := t.s.quests[questID]
	if !ok {
		return 0, nil
	}
	return len(q.ActiveTasks()), nil
}

func (t *fakeTx) CountTaskCompletions(_ context.Context, userID snowflake.ID, questID int64) (int, error) {
	count := 0
	for _, c := range t.s.completions {
		if c.UserID == userID && c.QuestID == questID {
			count++
		}
	}
	return count, nil
}

func (t *fakeTx) AddLedgerXP(_ context.Context, userID, guildID snowflake.ID, amount int64, questsDelta int) (*models.UserXP, error) {
	entry := t.s.ledger(userID, guildID)
	entry.TotalXP += amount
	entry.QuestsCompleted += questsDelta
	now := time.Now()
	if questsDelta > 0 {
		entry.LastQuestAt = now
	}
	entry.UpdatedAt = now
	return entry, nil
}
