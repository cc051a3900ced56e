package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/solsticebot/solstice/solstice"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/solsticebot/solstice/solstice/services"
	"github.com/solsticebot/solstice/solstice/utils"
)

var Quest = discord.SlashCommandCreate{
	Name:        "quest",
	Description: "Get your quest! You can only hold one at a time.",
}

func QuestHandler(b *solstice.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := checkLimit(b, e, "quest"); !ok {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateErrorEmbed(e, "Quests only work inside a server.")
		}

		result, err := b.Assignments.Assign(ctx, e.User().ID, *guildID)
		if err != nil {
			if errors.Is(err, services.ErrNoQuestsAvailable) {
				return utils.EH.CreateInfoEmbed(e, "No quests are available for you right now. Check back once new quests are added!")
			}
			slog.Error("Failed to assign quest",
				slog.String("type", "db"),
				slog.String("user_id", e.User().ID.String()),
				slog.Any("error", err),
			)
			return utils.EH.CreateErrorEmbed(e, "Failed to get you a quest. Please try again later.")
		}

		quest := result.Assignment.Quest

		title := "📜 New Quest"
		if result.AlreadyHad {
			title = "📜 Your Current Quest"
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       title,
				Description: questDescription(quest),
				Color:       utils.InfoColor,
				Footer: &discord.EmbedFooter{
					Text: fmt.Sprintf("Assigned %s", result.Assignment.AssignedAt.Format("Jan 2 15:04 MST")),
				},
			}},
		})
	}
}

func questDescription(quest *models.Quest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n%s\n", quest.Name, quest.Description)

	if quest.HasTasks() {
		sb.WriteString("\n**Tasks**\n")
		for _, task := range quest.ActiveTasks() {
			fmt.Fprintf(&sb, "• %s (%d XP)\n", task.Title, task.Points)
		}
		sb.WriteString("\nComplete each task with `/task`.")
	} else {
		fmt.Fprintf(&sb, "\n**Reward:** %d XP\nSubmit with `/verify` when you're done.", quest.XPReward)
	}

	return sb.String()
}
