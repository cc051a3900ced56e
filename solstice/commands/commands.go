package commands

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/solsticebot/solstice/solstice"
	"github.com/solsticebot/solstice/solstice/utils"
)

var Commands = []discord.ApplicationCommandCreate{
	Quest,
	Verify,
	Task,
	Progress,
	Leaderboard,
}

// checkLimit runs the command through the rate limiter and, on denial,
// answers with a retry-after message. Returns false when the command should
// not proceed.
func checkLimit(b *solstice.Bot, e *handler.CommandEvent, name string) (bool, error) {
	decision := b.Limiter.Check(e.User().ID, name)
	if decision.Allowed {
		return true, nil
	}

	return false, utils.EH.CreateWarningEmbed(e,
		fmt.Sprintf("You're doing that too fast. Try again in %s.", decision.RetryAfter.Round(time.Second)))
}
