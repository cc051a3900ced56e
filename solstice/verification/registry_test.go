package verification

import (
	"context"
	"testing"

	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	called bool
}

func (p *recordingProvider) Verify(context.Context, models.VerificationConfig, Subject) (Result, error) {
	p.called = true
	return Result{Success: true}, nil
}

func TestRegistry_DispatchesHTTPKinds(t *testing.T) {
	httpP := &recordingProvider{}
	guildP := &recordingProvider{}
	r := NewRegistry(httpP, guildP)

	_, err := r.Verify(context.Background(), httpConfig("https://x.example.com", "GET"), subject)
	require.NoError(t, err)

	assert.True(t, httpP.called)
	assert.False(t, guildP.called)
}

func TestRegistry_DispatchesPlatformKinds(t *testing.T) {
	httpP := &recordingProvider{}
	guildP := &recordingProvider{}
	r := NewRegistry(httpP, guildP)

	cfg := models.VerificationConfig{
		Kind:  models.KindGuildRole,
		Guild: &models.GuildCheck{RoleID: 42},
	}
	_, err := r.Verify(context.Background(), cfg, subject)
	require.NoError(t, err)

	assert.False(t, httpP.called)
	assert.True(t, guildP.called)
}

func TestRegistry_RejectsInvalidConfig(t *testing.T) {
	r := NewRegistry(&recordingProvider{}, &recordingProvider{})

	cfg := models.VerificationConfig{Kind: "telepathy"}
	_, err := r.Verify(context.Background(), cfg, subject)
	assert.Error(t, err)
}
