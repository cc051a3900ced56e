package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/solsticebot/solstice/solstice"
	"github.com/solsticebot/solstice/solstice/utils"
)

var Progress = discord.SlashCommandCreate{
	Name:        "progress",
	Description: "See your current quest and XP.",
}

func ProgressHandler(b *solstice.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := checkLimit(b, e, "progress"); !ok {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateErrorEmbed(e, "Quests only work inside a server.")
		}

		userID := e.User().ID

		ledger, err := b.XPRepository.Get(ctx, userID, *guildID)
		if err != nil {
			slog.Error("Failed to get xp ledger",
				slog.String("type", "db"),
				slog.String("user_id", userID.String()),
				slog.Any("error", err),
			)
			return utils.EH.CreateErrorEmbed(e, "Failed to load your progress. Please try again later.")
		}

		assignment, err := b.QuestStore.ActiveAssignment(ctx, userID, *guildID)
		if err != nil {
			slog.Error("Failed to get active assignment",
				slog.String("type", "db"),
				slog.String("user_id", userID.String()),
				slog.Any("error", err),
			)
			return utils.EH.CreateErrorEmbed(e, "Failed to load your progress. Please try again later.")
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "**Total XP:** %d\n**Quests completed:** %d\n", ledger.TotalXP, ledger.QuestsCompleted)

		if assignment == nil || assignment.Quest == nil {
			sb.WriteString("\nNo active quest. Grab one with `/quest`!")
		} else {
			quest := assignment.Quest
			fmt.Fprintf(&sb, "\n**Current quest:** %s\n", quest.Name)

			if quest.HasTasks() {
				doneIDs, err := b.QuestRepository.CompletedTaskIDs(ctx, userID, quest.ID)
				if err != nil {
					slog.Error("Failed to get task completions",
						slog.String("type", "db"),
						slog.String("user_id", userID.String()),
						slog.Any("error", err),
					)
					return utils.EH.CreateErrorEmbed(e, "Failed to load your progress. Please try again later.")
				}

				done := make(map[int64]bool, len(doneIDs))
				for _, id := range doneIDs {
					done[id] = true
				}

				for _, task := range quest.ActiveTasks() {
					mark := "⬜"
					if done[task.ID] {
						mark = "✅"
					}
					fmt.Fprintf(&sb, "%s %s (%d XP)\n", mark, task.Title, task.Points)
				}
			} else {
				fmt.Fprintf(&sb, "Reward: %d XP. Submit with `/verify` when done.\n", quest.XPReward)
			}
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       fmt.Sprintf("📊 Progress for %s", e.User().Username),
				Description: sb.String(),
				Color:       utils.InfoColor,
			}},
		})
	}
}
