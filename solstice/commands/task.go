package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/solsticebot/solstice/solstice"
	"github.com/solsticebot/solstice/solstice/services"
	"github.com/solsticebot/solstice/solstice/utils"
)

var Task = discord.SlashCommandCreate{
	Name:        "task",
	Description: "Complete one task of your current quest.",
	Options: []discord.ApplicationCommandOption{
		discord.ApplicationCommandOptionInt{
			Name:         "task",
			Description:  "The task you completed",
			Required:     true,
			Autocomplete: true,
		},
		discord.ApplicationCommandOptionString{
			Name:        "identifier",
			Description: "What to verify against, e.g. your email or wallet address",
			Required:    false,
		},
	},
}

func TaskHandler(b *solstice.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		if ok, err := checkLimit(b, e, "task"); !ok {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), utils.CommandTimeout)
		defer cancel()

		guildID := e.GuildID()
		if guildID == nil {
			return utils.EH.CreateErrorEmbed(e, "Quests only work inside a server.")
		}

		data := e.SlashCommandInteractionData()
		taskID := int64(data.Int("task"))
		identifier, _ := data.OptString("identifier")

		result, err := b.Completions.CompleteTask(ctx, e.User().ID, *guildID, taskID, identifier)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrNoActiveQuest):
				return utils.EH.CreateInfoEmbed(e, "You don't have an active quest. Grab one with `/quest`.")
			case errors.Is(err, services.ErrQuestHasNoTasks):
				return utils.EH.CreateInfoEmbed(e, "Your quest has no tasks. Submit it with `/verify` instead.")
			case errors.Is(err, services.ErrTaskNotInQuest):
				return utils.EH.CreateErrorEmbed(e, "That task doesn't belong to your current quest.")
			case errors.Is(err, services.ErrTaskInactive), errors.Is(err, services.ErrTaskExhausted):
				return utils.EH.CreateInfoEmbed(e, "That task is no longer available.")
			}
			slog.Error("Failed to complete task",
				slog.String("type", "db"),
				slog.String("user_id", e.User().ID.String()),
				slog.Int64("task_id", taskID),
				slog.Any("error", err),
			)
			return utils.EH.CreateErrorEmbed(e, "Failed to record your task. Please try again later.")
		}

		if result.AlreadyCompleted {
			return utils.EH.CreateInfoEmbed(e, "You already completed that task. No extra XP this time!")
		}

		if result.Failed {
			if result.Retryable {
				return utils.EH.CreateWarningEmbed(e,
					fmt.Sprintf("Verification didn't pass: %s\nYou can try again.", result.FailureReason))
			}
			return utils.EH.CreateErrorEmbed(e,
				fmt.Sprintf("Verification rejected: %s", result.FailureReason))
		}

		description := fmt.Sprintf("**%s** done! You earned **%d XP** (total: %d).",
			result.Task.Title, result.Task.Points, result.Ledger.TotalXP)
		if result.QuestCompleted {
			description += "\n\n🎉 That was the last task! Quest complete. Grab a new one with `/quest`."
		}

		return e.CreateMessage(discord.MessageCreate{
			Embeds: []discord.Embed{{
				Title:       "✅ Task Complete",
				Description: description,
				Color:       utils.SuccessColor,
			}},
		})
	}
}

// TaskAutocompleteHandler suggests the open tasks of the user's current
// quest, fuzzy matched against what they typed.
func TaskAutocompleteHandler(b *solstice.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		focused := e.Data.Focused()
		if focused.Name != "task" {
			return nil
		}

		query := ""
		if focused.Value != nil {
			var s string
			if err := json.Unmarshal(focused.Value, &s); err == nil {
				query = strings.TrimSpace(s)
			} else {
				query = strings.Trim(string(focused.Value), `"`)
			}
		}

		guildID := e.GuildID()
		if guildID == nil {
			return e.AutocompleteResult(nil)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		assignment, err := b.QuestStore.ActiveAssignment(ctx, e.User().ID, *guildID)
		if err != nil || assignment == nil || assignment.Quest == nil {
			return e.AutocompleteResult(nil)
		}

		tasks := b.Catalog.SearchTasks(assignment.Quest, query)

		choices := make([]discord.AutocompleteChoice, 0, min(len(tasks), 25))
		for _, task := range tasks {
			if len(choices) == 25 {
				break
			}
			choices = append(choices, discord.AutocompleteChoiceInt{
				Name:  fmt.Sprintf("%s (%d XP)", task.Title, task.Points),
				Value: int(task.ID),
			})
		}

		return e.AutocompleteResult(choices)
	}
}
