package fitbit

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fitledger/fitledger/internal/secrets"
	"github.com/fitledger/fitledger/internal/support/exception"
	"github.com/fitledger/fitledger/internal/support/logger"
)

// Refresher exchanges the stored refresh token for a fresh token pair and
// persists the rotated refresh token.
//
// Rotation is an explicit rotate-then-persist step: when the exchange
// succeeds but persisting the new refresh token fails, the error surfaces
// as a secrets failure and the run aborts, because the provider has already
// invalidated the old token and silently continuing would strand the next
// run with a dead credential.
type Refresher struct {
	store  secrets.Store
	client *Client
}

// NewRefresher creates a Refresher backed by the given secret store and
// API client.
func NewRefresher(store secrets.Store, client *Client) *Refresher {
	return &Refresher{store: store, client: client}
}

// Refresh performs the OAuth2 refresh-token grant. On success the new
// refresh token has been persisted and the returned pair is valid for the
// current run. A non-200 response from the token endpoint is fatal for the
// run; the provider's response body is carried in the error.
func (r *Refresher) Refresh(ctx context.Context) (TokenPair, error) {
	var pair TokenPair

	creds, err := r.store.Fetch(ctx)
	if err != nil {
		return pair, err
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)

	endpoint := r.client.baseURL + "/oauth2/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return pair, exception.New(exception.ModuleToken, "failed to create token request", err, false)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(creds.ClientID + ":" + creds.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.http.Do(req)
	if err != nil {
		return pair, exception.New(exception.ModuleToken, "token endpoint call failed", err, false)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		msg := fmt.Sprintf("token refresh rejected: status %d, body: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
		return pair, exception.New(exception.ModuleToken, msg, errors.New(strings.TrimSpace(string(body))), false)
	}

	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return pair, exception.New(exception.ModuleToken, "failed to decode token response", err, false)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return pair, exception.Newf(exception.ModuleToken, "token response is missing access or refresh token")
	}

	if err := r.store.UpdateRefreshToken(ctx, pair.RefreshToken); err != nil {
		return pair, err
	}
	logger.Infof("Access token refreshed and rotated refresh token persisted.")
	return pair, nil
}
