package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/solsticebot/solstice/solstice/database/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxResponseBytes   = 1 << 20
)

// HTTPProvider checks quest completion against an external API. The
// configured endpoint receives the subject's identifier as the "identifier"
// parameter alongside any static params; the success condition compares one
// top-level field of the JSON response.
type HTTPProvider struct {
	client *http.Client
}

func NewHTTPProvider(client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPProvider{client: client}
}

func (p *HTTPProvider) Verify(ctx context.Context, cfg models.VerificationConfig, sub Subject) (Result, error) {
	check := cfg.HTTP

	req, err := p.buildRequest(ctx, check, sub)
	if err != nil {
		return Result{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("verification endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read verification response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return p.evaluate(check, body)

	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusUnprocessableEntity:
		// The endpoint understood the request and rejected the subject.
		return Result{
			Success:   false,
			Permanent: true,
			Details:   fmt.Sprintf("verification rejected (HTTP %d)", resp.StatusCode),
		}, nil

	default:
		// Rate limits, timeouts and server errors are worth retrying.
		return Result{}, fmt.Errorf("verification endpoint returned HTTP %d", resp.StatusCode)
	}
}

func (p *HTTPProvider) buildRequest(ctx context.Context, check *models.HTTPCheck, sub Subject) (*http.Request, error) {
	method := strings.ToUpper(check.Method)

	params := url.Values{}
	for k, v := range check.Params {
		params.Set(k, v)
	}
	params.Set("identifier", sub.Identifier)
	params.Set("user_id", sub.UserID.String())

	var req *http.Request
	var err error

	if method == http.MethodPost {
		payload := make(map[string]string, len(params))
		for k := range params {
			payload[k] = params.Get(k)
		}
		body, merr := json.Marshal(payload)
		if merr != nil {
			return nil, fmt.Errorf("failed to encode verification payload: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, method, check.Endpoint, bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	} else {
		endpoint := check.Endpoint
		if strings.Contains(endpoint, "?") {
			endpoint += "&" + params.Encode()
		} else {
			endpoint += "?" + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build verification request: %w", err)
	}

	for k, v := range check.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (p *HTTPProvider) evaluate(check *models.HTTPCheck, body []byte) (Result, error) {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		slog.Warn("Verification endpoint returned non-JSON body",
			slog.String("endpoint", check.Endpoint),
			slog.Any("error", err))
		return Result{}, fmt.Errorf("verification response is not a JSON object: %w", err)
	}

	raw, ok := fields[check.SuccessField]
	if !ok {
		return Result{
			Success:   false,
			Permanent: true,
			Details:   fmt.Sprintf("response missing field %q", check.SuccessField),
		}, nil
	}

	if fmt.Sprint(raw) == check.SuccessValue {
		return Result{Success: true}, nil
	}

	return Result{
		Success:   false,
		Permanent: true,
		Details:   fmt.Sprintf("%s=%v did not satisfy the success condition", check.SuccessField, raw),
	}, nil
}
