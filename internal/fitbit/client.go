// Package fitbit implements the HTTP client for the wearable provider API:
// the OAuth2 token refresh exchange and the per-category daily data fetches.
package fitbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fitledger/fitledger/internal/config"
	"github.com/fitledger/fitledger/internal/support/exception"
	"github.com/fitledger/fitledger/internal/support/logger"
	"github.com/fitledger/fitledger/internal/support/retry"

	"go.uber.org/fx"
)

// Client issues authenticated requests against the provider API. Transient
// failures (network errors, HTTP 5xx) are retried with bounded backoff; any
// other non-200 response fails the request immediately.
type Client struct {
	baseURL string
	http    *http.Client
	policy  retry.Policy
}

// NewClient creates a Client from the fitbit configuration block.
func NewClient(cfg *config.Config) *Client {
	fc := cfg.Fitledger.Fitbit
	timeout := time.Duration(fc.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	policy := retry.Policy{
		MaxAttempts:     fc.Retry.MaxAttempts,
		InitialInterval: time.Duration(fc.Retry.InitialInterval) * time.Millisecond,
		Factor:          fc.Retry.Factor,
	}
	return &Client{
		baseURL: strings.TrimRight(fc.APIBase, "/"),
		http:    &http.Client{Timeout: timeout},
		policy:  policy,
	}
}

// FetchSleep returns the sleep sessions recorded on the given date.
func (c *Client) FetchSleep(ctx context.Context, date, accessToken string) (*SleepResponse, error) {
	endpoint := fmt.Sprintf("/1.2/user/-/sleep/date/%s/%s.json", date, date)
	var out SleepResponse
	if err := c.getJSON(ctx, endpoint, accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchSteps returns the daily step count for the given date.
func (c *Client) FetchSteps(ctx context.Context, date, accessToken string) (*StepsResponse, error) {
	endpoint := fmt.Sprintf("/1/user/-/activities/steps/date/%s/%s.json", date, date)
	var out StepsResponse
	if err := c.getJSON(ctx, endpoint, accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchActivity returns the active-zone-minutes summary for the given date.
func (c *Client) FetchActivity(ctx context.Context, date, accessToken string) (*ActivityResponse, error) {
	endpoint := fmt.Sprintf("/1/user/-/activities/active-zone-minutes/date/%s/%s.json", date, date)
	var out ActivityResponse
	if err := c.getJSON(ctx, endpoint, accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchHeartIntraday returns the 5-minute intraday heart-rate series for
// the given date.
func (c *Client) FetchHeartIntraday(ctx context.Context, date, accessToken string) (*HeartIntradayResponse, error) {
	endpoint := fmt.Sprintf("/1/user/-/activities/heart/date/%s/%s/5min.json", date, date)
	var out HeartIntradayResponse
	if err := c.getJSON(ctx, endpoint, accessToken, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON issues one authenticated GET (with retries on transient errors)
// and decodes the JSON response body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, accessToken string, out interface{}) error {
	url := c.baseURL + endpoint
	return c.policy.Do(ctx, "GET "+endpoint, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return exception.New(exception.ModuleAPI, "failed to create API request", err, false)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := c.http.Do(req)
		if err != nil {
			return exception.New(exception.ModuleAPI, fmt.Sprintf("API call failed (%s)", endpoint), err, true)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			msg := fmt.Sprintf("error response from API (%s): status %d, body: %s",
				endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
			return exception.New(exception.ModuleAPI, msg, errors.New(strings.TrimSpace(string(body))), resp.StatusCode >= 500)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return exception.New(exception.ModuleAPI, fmt.Sprintf("failed to decode API response (%s)", endpoint), err, false)
		}
		logger.Debugf("Fetched %s successfully.", endpoint)
		return nil
	})
}

// Module provides the provider API client and the token refresher.
var Module = fx.Options(
	fx.Provide(NewClient),
	fx.Provide(NewRefresher),
)
