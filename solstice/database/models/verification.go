package models

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// VerificationKind selects how a quest or task completion is checked.
type VerificationKind string

const (
	KindEmail        VerificationKind = "email"
	KindExternalID   VerificationKind = "external_id"
	KindWallet       VerificationKind = "wallet"
	KindSocialHandle VerificationKind = "social_handle"

	KindGuildRole     VerificationKind = "guild_role"
	KindMessageCount  VerificationKind = "message_count"
	KindReactionCount VerificationKind = "reaction_count"
	KindPollCount     VerificationKind = "poll_count"
)

// PlatformIdentifier is persisted as the verification identifier when a
// platform-native check needs no user-supplied identifier. It is a plain
// "no identifier" marker and carries no further meaning.
const PlatformIdentifier = "platform"

// MaxLookbackDays bounds how far back platform-native checks may scan.
const MaxLookbackDays = 365

// IsPlatformNative reports whether the kind is checked against guild state
// instead of an external HTTP endpoint.
func (k VerificationKind) IsPlatformNative() bool {
	switch k {
	case KindGuildRole, KindMessageCount, KindReactionCount, KindPollCount:
		return true
	}
	return false
}

func (k VerificationKind) Valid() bool {
	switch k {
	case KindEmail, KindExternalID, KindWallet, KindSocialHandle,
		KindGuildRole, KindMessageCount, KindReactionCount, KindPollCount:
		return true
	}
	return false
}

// HTTPCheck configures an external verification call. The success condition
// compares a top-level field of the JSON response body against a value.
type HTTPCheck struct {
	Endpoint     string            `json:"endpoint"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers,omitempty"`
	Params       map[string]string `json:"params,omitempty"`
	SuccessField string            `json:"success_field"`
	SuccessValue string            `json:"success_value"`
}

// GuildCheck configures a platform-native verification against guild state.
type GuildCheck struct {
	RoleID       snowflake.ID `json:"role_id,omitempty"`
	ChannelID    snowflake.ID `json:"channel_id,omitempty"`
	Threshold    int          `json:"threshold,omitempty"`
	LookbackDays int          `json:"lookback_days,omitempty"`
}

// VerificationConfig is a closed tagged union: exactly one of HTTP or Guild
// is set, matching the kind.
type VerificationConfig struct {
	Kind  VerificationKind `json:"kind"`
	HTTP  *HTTPCheck       `json:"http,omitempty"`
	Guild *GuildCheck      `json:"guild,omitempty"`
}

// Validate rejects malformed configs before they reach the store or a
// verification provider.
func (c VerificationConfig) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("unknown verification kind %q", c.Kind)
	}

	if c.Kind.IsPlatformNative() {
		if c.HTTP != nil {
			return fmt.Errorf("kind %q must not carry an http check", c.Kind)
		}
		if c.Guild == nil {
			return fmt.Errorf("kind %q requires a guild check", c.Kind)
		}
		return c.Guild.validate(c.Kind)
	}

	if c.Guild != nil {
		return fmt.Errorf("kind %q must not carry a guild check", c.Kind)
	}
	if c.HTTP == nil {
		return fmt.Errorf("kind %q requires an http check", c.Kind)
	}
	return c.HTTP.validate()
}

func (h *HTTPCheck) validate() error {
	if h.Endpoint == "" {
		return fmt.Errorf("http check requires an endpoint")
	}
	if !strings.HasPrefix(h.Endpoint, "http://") && !strings.HasPrefix(h.Endpoint, "https://") {
		return fmt.Errorf("http check endpoint must be an absolute URL")
	}
	switch strings.ToUpper(h.Method) {
	case http.MethodGet, http.MethodPost:
	default:
		return fmt.Errorf("http check method %q not supported", h.Method)
	}
	if h.SuccessField == "" {
		return fmt.Errorf("http check requires a success condition field")
	}
	return nil
}

func (g *GuildCheck) validate(kind VerificationKind) error {
	if kind == KindGuildRole {
		if g.RoleID == 0 {
			return fmt.Errorf("guild_role check requires a role id")
		}
		return nil
	}

	if g.ChannelID == 0 {
		return fmt.Errorf("%s check requires a channel id", kind)
	}
	if g.Threshold <= 0 {
		return fmt.Errorf("%s check requires a positive threshold", kind)
	}
	if g.LookbackDays <= 0 || g.LookbackDays > MaxLookbackDays {
		return fmt.Errorf("%s lookback must be within 1..%d days, got %d", kind, MaxLookbackDays, g.LookbackDays)
	}
	return nil
}
