package commands

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"
	"github.com/solsticebot/solstice/solstice"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/solsticebot/solstice/solstice/utils"
)

const leaderboardMax = 100

var Leaderboard = discord.SlashCommandCreate{
	Name:        "leaderboard",
	Description: "Top XP earners in this server.",
}

func LeaderboardHandler(b *solstice.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := checkLimit(b, e, "leaderboard"); !ok {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateErrorEmbed(e, "Quests only work inside a server.")
		}

		entries, err := b.XPRepository.Leaderboard(ctx, *guildID, leaderboardMax)
		if err != nil {
			slog.Error("Failed to load leaderboard",
				slog.String("type", "db"),
				slog.String("guild_id", guildID.String()),
				slog.Any("error", err),
			)
			return utils.EH.CreateErrorEmbed(e, "Failed to load the leaderboard. Please try again later.")
		}

		if len(entries) == 0 {
			return utils.EH.CreateInfoEmbed(e, "No one has earned XP yet. Be the first with `/quest`!")
		}

		totalPages := int(math.Ceil(float64(len(entries)) / float64(utils.LeaderboardPerPage)))

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * utils.LeaderboardPerPage
				end := min(start+utils.LeaderboardPerPage, len(entries))

				embed.
					SetTitle("🏆 XP Leaderboard").
					SetDescription(buildLeaderboardPage(entries[start:end], start)).
					SetColor(utils.InfoColor).
					SetFooter(fmt.Sprintf("Page %d/%d", page+1, totalPages), "")
			},
			Pages:      totalPages,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

func buildLeaderboardPage(entries []*models.UserXP, offset int) string {
	var sb strings.Builder
	for i, entry := range entries {
		rank := offset + i + 1
		medal := fmt.Sprintf("%d.", rank)
		switch rank {
		case 1:
			medal = "🥇"
		case 2:
			medal = "🥈"
		case 3:
			medal = "🥉"
		}
		fmt.Fprintf(&sb, "%s <@%s> — %d XP (%d quests)\n",
			medal, entry.UserID, entry.TotalXP, entry.QuestsCompleted)
	}
	return sb.String()
}
