package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/solsticebot/solstice/solstice"
	"github.com/solsticebot/solstice/solstice/services"
	"github.com/solsticebot/solstice/solstice/utils"
)

var Verify = discord.SlashCommandCreate{
	Name:        "verify",
	Description: "Submit your quest for verification.",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionString{
			Name:        "identifier",
			Description: "What to verify against, e.g. your email or wallet address",
			Required:    false,
		},
	},
}

func VerifyHandler(b *solstice.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := checkLimit(b, e, "verify"); !ok {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateErrorEmbed(e, "Quests only work inside a server.")
		}

		identifier, _ := e.SlashCommandInteractionData().OptString("identifier")

		result, err := b.Completions.VerifyAndComplete(ctx, e.User().ID, *guildID, identifier)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrNoActiveQuest):
				return utils.EH.CreateInfoEmbed(e, "You don't have an active quest. Grab one with `/quest`.")
			case errors.Is(err, services.ErrQuestHasTasks):
				return utils.EH.CreateInfoEmbed(e, "Your quest is completed task by task. Use `/task` instead.")
			}
			slog.Error("Failed to verify quest",
				slog.String("type", "db"),
				slog.String("user_id", e.User().ID.String()),
				slog.Any("error", err),
			)
			return utils.EH.CreateErrorEmbed(e, "Verification failed on our end. Please try again later.")
		}

		if result.AlreadyCompleted {
			return utils.EH.CreateInfoEmbed(e, "This quest was already completed. No extra XP this time!")
		}

		if result.Failed {
			if result.Retryable {
				return utils.EH.CreateWarningEmbed(e,
					fmt.Sprintf("Verification didn't pass: %s\nYou can try again.", result.FailureReason))
			}
			return utils.EH.CreateErrorEmbed(e,
				fmt.Sprintf("Verification rejected: %s\nThis quest is closed; grab a new one with `/quest`.", result.FailureReason))
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title: "✅ Quest Complete!",
				Description: fmt.Sprintf("**%s** verified!\nYou earned **%d XP** (total: %d).",
					result.Assignment.Quest.Name, result.XPAwarded, result.Ledger.TotalXP),
				Color: utils.SuccessColor,
			}},
		})
	}
}
