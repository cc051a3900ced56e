package services

import (
	"context"
	"sync"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserID  = snowflake.ID(1001)
	testUser2ID = snowflake.ID(1002)
	testGuildID = snowflake.ID(2001)
)

func emailVerification() models.VerificationConfig {
	return models.VerificationConfig{
		Kind: models.KindEmail,
		HTTP: &models.HTTPCheck{
			Endpoint:     "https://verify.example.com/check",
			Method:       "GET",
			SuccessField: "verified",
			SuccessValue: "true",
		},
	}
}

func simpleQuest(name string, xp int64) *models.Quest {
	return &models.Quest{
		GuildID:      testGuildID,
		Name:         name,
		XPReward:     xp,
		Verification: emailVerification(),
		Active:       true,
	}
}

func TestAssign_NewAssignment(t *testing.T) {
	store := newFakeStore()
	quest := store.addQuest(simpleQuest("welcome", 100))

	svc := NewAssignmentService(store)
	result, err := svc.Assign(context.Background(), testUserID, testGuildID)
	require.NoError(t, err)

	assert.False(t, result.AlreadyHad)
	assert.Equal(t, quest.ID, result.Assignment.QuestID)
	assert.Equal(t, models.AssignmentAssigned, result.Assignment.Status)
	require.NotNil(t, result.Assignment.Quest)
	assert.Equal(t, "welcome", result.Assignment.Quest.Name)
}

func TestAssign_Idempotent(t *testing.T) {
	store := newFakeStore()
	store.addQuest(simpleQuest("welcome", 100))

	svc := NewAssignmentService(store)
	first, err := svc.Assign(context.Background(), testUserID, testGuildID)
	require.NoError(t, err)

	second, err := svc.Assign(context.Background(), testUserID, testGuildID)
	require.NoError(t, err)

	assert.True(t, second.AlreadyHad)
	assert.Equal(t, first.Assignment.ID, second.Assignment.ID)
}

func TestAssign_NoQuestsAvailable(t *testing.T) {
	store := newFakeStore()

	svc := NewAssignmentService(store)
	_, err := svc.Assign(context.Background(), testUserID, testGuildID)
	assert.ErrorIs(t, err, ErrNoQuestsAvailable)
}

func TestAssign_SkipsIneligibleQuests(t *testing.T) {
	store := newFakeStore()

	completed := store.addQuest(simpleQuest("completed", 50))
	store.mu.Lock()
	store.nextID++
	store.assignments[store.nextID] = &models.UserQuestAssignment{
		ID:      store.nextID,
		UserID:  testUserID,
		GuildID: testGuildID,
		QuestID: completed.ID,
		Status:  models.AssignmentCompleted,
	}
	store.mu.Unlock()

	limit := 3
	exhausted := simpleQuest("exhausted", 50)
	exhausted.MaxCompletions = &limit
	exhausted.TotalCompletions = 3
	store.addQuest(exhausted)

	inactive := simpleQuest("inactive", 50)
	inactive.Active = false
	store.addQuest(inactive)

	available := store.addQuest(simpleQuest("available", 50))

	svc := NewAssignmentService(store)
	for i := 0; i < 10; i++ {
		result, err := svc.Assign(context.Background(), snowflake.ID(3000+i), testGuildID)
		require.NoError(t, err)
		assert.Equal(t, available.ID, result.Assignment.QuestID)
	}

	// The user who already finished "completed" can still get "available".
	result, err := svc.Assign(context.Background(), testUserID, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, available.ID, result.Assignment.QuestID)
}

func TestAssign_LostInsertRace(t *testing.T) {
	store := newFakeStore()
	quest := store.addQuest(simpleQuest("contested", 100))

	store.afterProbe = func(s *fakeStore) {
		s.insertCompetingAssignment(testUserID, testGuildID, quest.ID)
	}

	svc := NewAssignmentService(store)
	result, err := svc.Assign(context.Background(), testUserID, testGuildID)
	require.NoError(t, err)

	assert.True(t, result.AlreadyHad)
	assert.Equal(t, quest.ID, result.Assignment.QuestID)

	count := 0
	for _, a := range store.assignments {
		if a.UserID == testUserID && a.Status == models.AssignmentAssigned {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAssign_ConcurrentOneRow(t *testing.T) {
	store := newFakeStore()
	store.addQuest(simpleQuest("popular", 100))

	svc := NewAssignmentService(store)

	const callers = 32
	ids := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := svc.Assign(context.Background(), testUserID, testGuildID)
			if assert.NoError(t, err) {
				ids[i] = result.Assignment.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}

	count := 0
	for _, a := range store.assignments {
		if a.UserID == testUserID && a.Status == models.AssignmentAssigned {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestAssign_IndependentUsers(t *testing.T) {
	store := newFakeStore()
	store.addQuest(simpleQuest("shared", 100))

	svc := NewAssignmentService(store)

	first, err := svc.Assign(context.Background(), testUserID, testGuildID)
	require.NoError(t, err)
	second, err := svc.Assign(context.Background(), testUser2ID, testGuildID)
	require.NoError(t, err)

	assert.NotEqual(t, first.Assignment.ID, second.Assignment.ID)
	assert.False(t, second.AlreadyHad)
}
