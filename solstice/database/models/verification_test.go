package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validHTTP() *HTTPCheck {
	return &HTTPCheck{
		Endpoint:     "https://verify.example.com/check",
		Method:       "GET",
		SuccessField: "verified",
		SuccessValue: "true",
	}
}

func TestVerificationConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     VerificationConfig
		wantErr bool
	}{
		{
			name:    "valid email check",
			cfg:     VerificationConfig{Kind: KindEmail, HTTP: validHTTP()},
			wantErr: false,
		},
		{
			name:    "valid wallet check with post",
			cfg:     VerificationConfig{Kind: KindWallet, HTTP: &HTTPCheck{Endpoint: "https://x.example.com", Method: "POST", SuccessField: "ok", SuccessValue: "1"}},
			wantErr: false,
		},
		{
			name:    "valid guild role check",
			cfg:     VerificationConfig{Kind: KindGuildRole, Guild: &GuildCheck{RoleID: 42}},
			wantErr: false,
		},
		{
			name:    "valid message count check",
			cfg:     VerificationConfig{Kind: KindMessageCount, Guild: &GuildCheck{ChannelID: 7, Threshold: 5, LookbackDays: 30}},
			wantErr: false,
		},
		{
			name:    "unknown kind",
			cfg:     VerificationConfig{Kind: "telepathy", HTTP: validHTTP()},
			wantErr: true,
		},
		{
			name:    "http kind missing http check",
			cfg:     VerificationConfig{Kind: KindEmail},
			wantErr: true,
		},
		{
			name:    "http kind carrying guild check",
			cfg:     VerificationConfig{Kind: KindEmail, HTTP: validHTTP(), Guild: &GuildCheck{RoleID: 1}},
			wantErr: true,
		},
		{
			name:    "platform kind missing guild check",
			cfg:     VerificationConfig{Kind: KindMessageCount},
			wantErr: true,
		},
		{
			name:    "platform kind carrying http check",
			cfg:     VerificationConfig{Kind: KindGuildRole, Guild: &GuildCheck{RoleID: 1}, HTTP: validHTTP()},
			wantErr: true,
		},
		{
			name:    "guild role without role id",
			cfg:     VerificationConfig{Kind: KindGuildRole, Guild: &GuildCheck{}},
			wantErr: true,
		},
		{
			name:    "count check without channel",
			cfg:     VerificationConfig{Kind: KindMessageCount, Guild: &GuildCheck{Threshold: 5, LookbackDays: 30}},
			wantErr: true,
		},
		{
			name:    "count check without threshold",
			cfg:     VerificationConfig{Kind: KindReactionCount, Guild: &GuildCheck{ChannelID: 7, LookbackDays: 10}},
			wantErr: true,
		},
		{
			name:    "count check with zero lookback",
			cfg:     VerificationConfig{Kind: KindPollCount, Guild: &GuildCheck{ChannelID: 7, Threshold: 1}},
			wantErr: true,
		},
		{
			name:    "count check over max lookback",
			cfg:     VerificationConfig{Kind: KindMessageCount, Guild: &GuildCheck{ChannelID: 7, Threshold: 1, LookbackDays: 366}},
			wantErr: true,
		},
		{
			name:    "count check at max lookback",
			cfg:     VerificationConfig{Kind: KindMessageCount, Guild: &GuildCheck{ChannelID: 7, Threshold: 1, LookbackDays: 365}},
			wantErr: false,
		},
		{
			name:    "relative endpoint rejected",
			cfg:     VerificationConfig{Kind: KindEmail, HTTP: &HTTPCheck{Endpoint: "/check", Method: "GET", SuccessField: "ok"}},
			wantErr: true,
		},
		{
			name:    "unsupported method rejected",
			cfg:     VerificationConfig{Kind: KindEmail, HTTP: &HTTPCheck{Endpoint: "https://x.example.com", Method: "DELETE", SuccessField: "ok"}},
			wantErr: true,
		},
		{
			name:    "missing success field rejected",
			cfg:     VerificationConfig{Kind: KindEmail, HTTP: &HTTPCheck{Endpoint: "https://x.example.com", Method: "GET"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerificationKind_IsPlatformNative(t *testing.T) {
	assert.False(t, KindEmail.IsPlatformNative())
	assert.False(t, KindExternalID.IsPlatformNative())
	assert.False(t, KindWallet.IsPlatformNative())
	assert.False(t, KindSocialHandle.IsPlatformNative())

	assert.True(t, KindGuildRole.IsPlatformNative())
	assert.True(t, KindMessageCount.IsPlatformNative())
	assert.True(t, KindReactionCount.IsPlatformNative())
	assert.True(t, KindPollCount.IsPlatformNative())
}
