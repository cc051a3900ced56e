package verification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/solsticebot/solstice/solstice/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func httpConfig(endpoint, method string) models.VerificationConfig {
	return models.VerificationConfig{
		Kind: models.KindEmail,
		HTTP: &models.HTTPCheck{
			Endpoint:     endpoint,
			Method:       method,
			SuccessField: "verified",
			SuccessValue: "true",
		},
	}
}

var subject = Subject{
	UserID:     snowflake.ID(1001),
	GuildID:    snowflake.ID(2001),
	Identifier: "user@example.com",
}

func TestHTTPProvider_GetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "user@example.com", r.URL.Query().Get("identifier"))
		assert.Equal(t, "1001", r.URL.Query().Get("user_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"verified": true}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.Client())
	result, err := p.Verify(context.Background(), httpConfig(srv.URL, "GET"), subject)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestHTTPProvider_PostSendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "user@example.com", payload["identifier"])
		assert.Equal(t, "1001", payload["user_id"])
		assert.Equal(t, "mainnet", payload["network"])

		w.Write([]byte(`{"verified": "true"}`))
	}))
	defer srv.Close()

	cfg := httpConfig(srv.URL, "POST")
	cfg.HTTP.Params = map[string]string{"network": "mainnet"}

	p := NewHTTPProvider(srv.Client())
	result, err := p.Verify(context.Background(), cfg, subject)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestHTTPProvider_SendsConfiguredHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		w.Write([]byte(`{"verified": true}`))
	}))
	defer srv.Close()

	cfg := httpConfig(srv.URL, "GET")
	cfg.HTTP.Headers = map[string]string{"Authorization": "Bearer sekrit"}

	p := NewHTTPProvider(srv.Client())
	_, err := p.Verify(context.Background(), cfg, subject)
	require.NoError(t, err)
}

func TestHTTPProvider_ValueMismatchIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"verified": false}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.Client())
	result, err := p.Verify(context.Background(), httpConfig(srv.URL, "GET"), subject)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.Permanent)
	assert.NotEmpty(t, result.Details)
}

func TestHTTPProvider_MissingFieldIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.Client())
	result, err := p.Verify(context.Background(), httpConfig(srv.URL, "GET"), subject)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.True(t, result.Permanent)
}

func TestHTTPProvider_ClientErrorIsPermanent(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 422} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		p := NewHTTPProvider(srv.Client())
		result, err := p.Verify(context.Background(), httpConfig(srv.URL, "GET"), subject)
		srv.Close()

		require.NoError(t, err, "status %d", status)
		assert.False(t, result.Success)
		assert.True(t, result.Permanent, "status %d", status)
	}
}

func TestHTTPProvider_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.Client())
	_, err := p.Verify(context.Background(), httpConfig(srv.URL, "GET"), subject)
	assert.Error(t, err)
}

func TestHTTPProvider_UnreachableEndpointIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	p := NewHTTPProvider(nil)
	_, err := p.Verify(context.Background(), httpConfig(srv.URL, "GET"), subject)
	assert.Error(t, err)
}

func TestHTTPProvider_NonJSONBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.Client())
	_, err := p.Verify(context.Background(), httpConfig(srv.URL, "GET"), subject)
	assert.Error(t, err)
}
