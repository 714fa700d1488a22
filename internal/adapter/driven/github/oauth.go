// Package github implements the OAuthClient port: the device authorization
// flow against GitHub's login endpoints and the /user profile lookup via the
// go-github library.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ericfisherdev/ghswitch/internal/domain/model"
	"github.com/ericfisherdev/ghswitch/internal/domain/port/driven"
)

const (
	defaultDeviceCodeURL = "https://github.com/login/device/code"
	defaultTokenURL      = "https://github.com/login/oauth/access_token"

	// Scopes cover profile, email, and repository access.
	deviceFlowScope = "read:user user:email repo"

	deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

// Compile-time interface satisfaction check.
var _ driven.OAuthClient = (*Client)(nil)

// SleepFunc is the timed-wait used between token polls. It must return early
// with ctx.Err() when the context is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Client implements the driven.OAuthClient port. The poll loop's sleep is a
// pluggable SleepFunc so tests can drive the state machine without real
// delays.
type Client struct {
	httpClient    *http.Client
	deviceCodeURL string
	tokenURL      string
	apiBaseURL    string // "" means the public GitHub API.
	sleep         SleepFunc
}

// NewClient creates a Client against the public GitHub endpoints.
func NewClient() *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		deviceCodeURL: defaultDeviceCodeURL,
		tokenURL:      defaultTokenURL,
		sleep:         sleepContext,
	}
}

// NewClientWithURLs creates a Client with custom endpoints, HTTP client, and
// sleep function. This constructor is intended for testing, allowing
// injection of an httptest server and an instant sleep.
func NewClientWithURLs(httpClient *http.Client, deviceCodeURL, tokenURL, apiBaseURL string, sleep SleepFunc) *Client {
	if sleep == nil {
		sleep = sleepContext
	}
	return &Client{
		httpClient:    httpClient,
		deviceCodeURL: deviceCodeURL,
		tokenURL:      tokenURL,
		apiBaseURL:    apiBaseURL,
		sleep:         sleep,
	}
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// deviceCodeResponse mirrors the POST /login/device/code JSON body.
type deviceCodeResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// accessTokenResponse mirrors the POST /login/oauth/access_token JSON body.
// GitHub returns 200 for protocol-level errors, with the condition in Error.
type accessTokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

// RequestDeviceCode performs the first device-flow step and returns the
// session parameters the server dictated.
func (c *Client) RequestDeviceCode(ctx context.Context, clientID string) (model.DeviceAuthorization, error) {
	form := url.Values{
		"client_id": {clientID},
		"scope":     {deviceFlowScope},
	}

	var resp deviceCodeResponse
	if err := c.postForm(ctx, c.deviceCodeURL, form, &resp); err != nil {
		return model.DeviceAuthorization{}, err
	}

	if resp.DeviceCode == "" || resp.UserCode == "" {
		return model.DeviceAuthorization{}, &driven.ProtocolError{Code: "malformed_device_code_response"}
	}

	return model.DeviceAuthorization{
		DeviceCode:      resp.DeviceCode,
		UserCode:        resp.UserCode,
		VerificationURI: resp.VerificationURI,
		ExpiresIn:       resp.ExpiresIn,
		Interval:        resp.Interval,
	}, nil
}

// PollForToken repeatedly posts the token endpoint until a token is issued or
// a terminal condition occurs. The attempt budget is floor(expiresIn/interval)
// authorization_pending waits; slow_down extends the wait by 5 seconds without
// consuming budget, per the device-flow protocol.
func (c *Client) PollForToken(ctx context.Context, clientID, deviceCode string, interval, expiresIn int) (string, error) {
	if interval <= 0 {
		interval = 5
	}
	maxAttempts := expiresIn / interval
	attempts := 0

	form := url.Values{
		"client_id":   {clientID},
		"device_code": {deviceCode},
		"grant_type":  {deviceCodeGrantType},
	}

	for {
		if attempts >= maxAttempts {
			return "", driven.ErrDeviceCodeExpired
		}

		var resp accessTokenResponse
		if err := c.postForm(ctx, c.tokenURL, form, &resp); err != nil {
			return "", err
		}

		// A token short-circuits regardless of accompanying error fields.
		if resp.AccessToken != "" {
			return resp.AccessToken, nil
		}

		switch resp.Error {
		case "", "authorization_pending":
			// Timed wait below, consuming one attempt.
		case "slow_down":
			if err := c.sleep(ctx, time.Duration(interval+5)*time.Second); err != nil {
				return "", err
			}
			continue
		case "expired_token":
			return "", driven.ErrDeviceCodeExpired
		case "access_denied":
			return "", driven.ErrAccessDenied
		default:
			return "", &driven.ProtocolError{Code: resp.Error}
		}

		if err := c.sleep(ctx, time.Duration(interval)*time.Second); err != nil {
			return "", err
		}
		attempts++
	}
}

// postForm posts a URL-encoded form and decodes the JSON response into out.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return &driven.ProtocolError{StatusCode: res.StatusCode}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &driven.ProtocolError{StatusCode: res.StatusCode, Code: "malformed_response_body"}
	}

	return nil
}
