package verification

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
)

// Subject identifies who is being verified and with what identifier. For
// platform-native kinds the identifier is unused; the provider consults
// guild state instead.
type Subject struct {
	UserID     snowflake.ID
	GuildID    snowflake.ID
	Identifier string
}

// Result is the outcome of a verification check. Permanent distinguishes a
// terminal rejection (assignment is failed) from one worth retrying (the
// assignment stays assigned). Infrastructure problems are returned as an
// error instead and are always retryable.
type Result struct {
	Success   bool
	Permanent bool
	Details   string
}

// Provider performs one external or platform-native verification check.
type Provider interface {
	Verify(ctx context.Context, cfg models.VerificationConfig, sub Subject) (Result, error)
}

// Registry dispatches verification to the provider matching the config's
// kind.
type Registry struct {
	http  Provider
	guild Provider
}

func NewRegistry(http, guild Provider) *Registry {
	return &Registry{http: http, guild: guild}
}

func (r *Registry) Verify(ctx context.Context, cfg models.VerificationConfig, sub Subject) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid verification config: %w", err)
	}

	if cfg.Kind.IsPlatformNative() {
		return r.guild.Verify(ctx, cfg, sub)
	}
	return r.http.Verify(ctx, cfg, sub)
}
