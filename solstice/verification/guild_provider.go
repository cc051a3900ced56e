package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
)

const (
	// GetMessages pages 100 at a time; 20 pages bounds one check at 2000
	// messages even for generous lookback windows.
	maxScanPages    = 20
	messagePageSize = 100
)

// GuildProvider verifies platform-native quest kinds against live Discord
// state: role membership and message/reaction/poll counts within the
// configured lookback window.
type GuildProvider struct {
	client bot.Client
}

func NewGuildProvider(client bot.Client) *GuildProvider {
	return &GuildProvider{client: client}
}

func (p *GuildProvider) Verify(ctx context.Context, cfg models.VerificationConfig, sub Subject) (Result, error) {
	check := cfg.Guild

	switch cfg.Kind {
	case models.KindGuildRole:
		return p.verifyRole(ctx, check, sub)
	case models.KindMessageCount, models.KindReactionCount, models.KindPollCount:
		return p.verifyActivity(ctx, cfg.Kind, check, sub)
	default:
		return Result{}, fmt.Errorf("kind %q is not platform-native", cfg.Kind)
	}
}

func (p *GuildProvider) verifyRole(ctx context.Context, check *models.GuildCheck, sub Subject) (Result, error) {
	member, err := p.client.Rest().GetMember(sub.GuildID, sub.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch member: %w", err)
	}

	for _, roleID := range member.RoleIDs {
		if roleID == check.RoleID {
			return Result{Success: true}, nil
		}
	}

	return Result{
		Success:   false,
		Permanent: false,
		Details:   "required role not held yet",
	}, nil
}

// verifyActivity scans the configured channel backwards until the threshold
// is met, the lookback window is exhausted, or the page cap is hit.
func (p *GuildProvider) verifyActivity(ctx context.Context, kind models.VerificationKind, check *models.GuildCheck, sub Subject) (Result, error) {
	cutoff := time.Now().AddDate(0, 0, -check.LookbackDays)

	count := 0
	var before snowflake.ID

	for page := 0; page < maxScanPages; page++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		messages, err := p.client.Rest().GetMessages(check.ChannelID, 0, before, 0, messagePageSize)
		if err != nil {
			return Result{}, fmt.Errorf("failed to fetch channel messages: %w", err)
		}
		if len(messages) == 0 {
			break
		}

		windowDone := false
		for _, msg := range messages {
			if msg.ID.Time().Before(cutoff) {
				windowDone = true
				break
			}
			count += p.score(kind, msg, sub.UserID)
			if count >= check.Threshold {
				return Result{Success: true}, nil
			}
		}
		if windowDone || len(messages) < messagePageSize {
			break
		}
		before = messages[len(messages)-1].ID
	}

	return Result{
		Success:   false,
		Permanent: false,
		Details:   fmt.Sprintf("%s at %d of %d within %d days", kind, count, check.Threshold, check.LookbackDays),
	}, nil
}

func (p *GuildProvider) score(kind models.VerificationKind, msg discord.Message, userID snowflake.ID) int {
	if msg.Author.ID != userID {
		return 0
	}

	switch kind {
	case models.KindMessageCount:
		return 1
	case models.KindReactionCount:
		total := 0
		for _, reaction := range msg.Reactions {
			total += reaction.Count
		}
		return total
	case models.KindPollCount:
		if msg.Poll != nil {
			return 1
		}
	}
	return 0
}
