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

// ConversationRepository is a dumb row store for authoring-dialogue scratch
// state. TTL semantics (what counts as live, when to expire) live in
// services.ConversationService so they can be tested with an injected clock.
type ConversationRepository interface {
	// GetRow returns the stored row for (user, guild) regardless of expiry,
	// or nil when none exists.
	GetRow(ctx context.Context, userID, guildID snowflake.ID) (*models.Conversation, error)

	// PutRow inserts or replaces the row for its (user, guild) key.
	PutRow(ctx context.Context, conv *models.Conversation) error

	DeleteRow(ctx context.Context, userID, guildID snowflake.ID) error

	// DeleteExpired removes rows whose expiry precedes the cutoff and
	// returns how many were swept.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

type conversationRepository struct {
	db *bun.DB
}

func NewConversationRepository(db *bun.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) GetRow(ctx context.Context, userID, guildID snowflake.ID) (*models.Conversation, error) {
	conv := new(models.Conversation)
	err := r.db.NewSelect().
		Model(conv).
		Where("user_id = ?", userID).
		Where("guild_id = ?", guildID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

func (r *conversationRepository) PutRow(ctx context.Context, conv *models.Conversation) error {
	_, err := r.db.NewInsert().
		Model(conv).
		On("CONFLICT (user_id, guild_id) DO UPDATE").
		Set("state = EXCLUDED.state").
		Set("messages = EXCLUDED.messages").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return nil
}

func (r *conversationRepository) DeleteRow(ctx context.Context, userID, guildID snowflake.ID) error {
	_, err := r.db.NewDelete().
		Model((*models.Conversation)(nil)).
		Where("user_id = ?", userID).
		Where("guild_id = ?", guildID).
		Exec(ctx)
	return err
}

func (r *conversationRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.NewDelete().
		Model((*models.Conversation)(nil)).
		Where("expires_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep conversations: %w", err)
	}

	affected, _ := res.RowsAffected()
	return int(affected), nil
}
