package migration

import (
	"context"
	"fmt"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeXPLedger accumulates Add calls in memory, keyed by (user, guild).
type fakeXPLedger struct {
	entries map[string]*models.UserXP
	failFor snowflake.ID
}

func newFakeXPLedger() *fakeXPLedger {
	return &fakeXPLedger{entries: make(map[string]*models.UserXP)}
}

func ledgerKey(userID, guildID snowflake.ID) string {
	return fmt.Sprintf("%d/%d", userID, guildID)
}

func (f *fakeXPLedger) Get(_ context.Context, userID, guildID snowflake.ID) (*models.UserXP, error) {
	if e, ok := f.entries[ledgerKey(userID, guildID)]; ok {
		return e, nil
	}
	return &models.UserXP{UserID: userID, GuildID: guildID}, nil
}

func (f *fakeXPLedger) Add(_ context.Context, userID, guildID snowflake.ID, amount int64) (*models.UserXP, error) {
	if userID == f.failFor {
		return nil, fmt.Errorf("connection reset")
	}

	key := ledgerKey(userID, guildID)
	e, ok := f.entries[key]
	if !ok {
		e = &models.UserXP{UserID: userID, GuildID: guildID}
		f.entries[key] = e
	}
	e.TotalXP += amount
	e.QuestsCompleted++
	return e, nil
}

func (f *fakeXPLedger) Leaderboard(context.Context, snowflake.ID, int) ([]*models.UserXP, error) {
	return nil, nil
}

func historyRow(userID snowflake.ID, questID, xp int64) *models.UserQuestAssignment {
	return &models.UserQuestAssignment{
		UserID:    userID,
		GuildID:   snowflake.ID(2001),
		QuestID:   questID,
		Status:    models.AssignmentCompleted,
		XPAwarded: xp,
	}
}

func TestCreditHistoryBatch(t *testing.T) {
	ledger := newFakeXPLedger()
	m := NewMigrator(nil)
	m.SetLedgerCredit(ledger)

	batch := []*models.UserQuestAssignment{
		historyRow(1001, 1, 100),
		historyRow(1001, 2, 50),
		historyRow(1002, 1, 40),
	}
	m.creditHistoryBatch(context.Background(), batch)

	first, err := ledger.Get(context.Background(), 1001, 2001)
	require.NoError(t, err)
	assert.Equal(t, int64(150), first.TotalXP)
	assert.Equal(t, 2, first.QuestsCompleted)

	second, err := ledger.Get(context.Background(), 1002, 2001)
	require.NoError(t, err)
	assert.Equal(t, int64(40), second.TotalXP)
	assert.Equal(t, 1, second.QuestsCompleted)

	stats := m.stats.Tables["xp_credits"]
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 0, stats.Failed)
}

func TestCreditHistoryBatchToleratesFailures(t *testing.T) {
	ledger := newFakeXPLedger()
	ledger.failFor = 1002

	m := NewMigrator(nil)
	m.SetLedgerCredit(ledger)

	batch := []*models.UserQuestAssignment{
		historyRow(1001, 1, 100),
		historyRow(1002, 1, 40),
		historyRow(1003, 1, 25),
	}
	m.creditHistoryBatch(context.Background(), batch)

	stats := m.stats.Tables["xp_credits"]
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, 1, stats.Failed)

	last, err := ledger.Get(context.Background(), 1003, 2001)
	require.NoError(t, err)
	assert.Equal(t, int64(25), last.TotalXP)
}
