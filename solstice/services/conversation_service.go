package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/solsticebot/solstice/solstice/database/repositories"
)

const (
	// ConversationTTL is how long authoring scratch state lives after its
	// last upsert.
	ConversationTTL = time.Hour

	// maxTranscriptLen caps the stored message transcript; oldest entries
	// are dropped first.
	maxTranscriptLen = 50
)

// Clock abstracts time for TTL decisions so tests can drive expiry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ConversationService owns the ephemeral per-user authoring dialogue state.
// At most one live conversation exists per (user, guild); every upsert
// replaces the state and restarts the TTL.
type ConversationService struct {
	repo  repositories.ConversationRepository
	ttl   time.Duration
	clock Clock
}

func NewConversationService(repo repositories.ConversationRepository) *ConversationService {
	return &ConversationService{
		repo:  repo,
		ttl:   ConversationTTL,
		clock: systemClock{},
	}
}

// Get returns the live conversation for (user, guild), or nil when none
// exists or the stored one has expired.
func (s *ConversationService) Get(ctx context.Context, userID, guildID snowflake.ID) (*models.Conversation, error) {
	conv, err := s.repo.GetRow(ctx, userID, guildID)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.Expired(s.clock.Now()) {
		return nil, nil
	}
	return conv, nil
}

// Upsert replaces the conversation's state and transcript and resets the
// expiry to now + TTL.
func (s *ConversationService) Upsert(ctx context.Context, userID, guildID snowflake.ID, state map[string]any, messages []models.ConversationMessage) (*models.Conversation, error) {
	if len(messages) > maxTranscriptLen {
		messages = messages[len(messages)-maxTranscriptLen:]
	}

	now := s.clock.Now()
	conv := &models.Conversation{
		UserID:    userID,
		GuildID:   guildID,
		State:     state,
		Messages:  messages,
		ExpiresAt: now.Add(s.ttl),
		UpdatedAt: now,
	}

	if err := s.repo.PutRow(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) Delete(ctx context.Context, userID, guildID snowflake.ID) error {
	return s.repo.DeleteRow(ctx, userID, guildID)
}

// CleanupExpired sweeps conversations whose expiry has passed. Run it from
// a timer; a missed sweep only delays reclamation, Get already hides
// expired rows.
func (s *ConversationService) CleanupExpired(ctx context.Context) (int, error) {
	count, err := s.repo.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		slog.Debug("Swept expired conversations", slog.Int("count", count))
	}
	return count, nil
}
