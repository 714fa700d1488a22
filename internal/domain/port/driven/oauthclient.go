package driven

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/ghswitch/internal/domain/model"
)

// ErrDeviceCodeExpired is returned when the device code's validity window is
// exhausted, either because the server reported expired_token or because the
// local polling budget ran out.
var ErrDeviceCodeExpired = errors.New("device code expired")

// ErrAccessDenied is returned when the user declines the authorization.
var ErrAccessDenied = errors.New("access denied by user")

// ProtocolError reports a malformed or unexpected response from the
// authorization server. StatusCode is the HTTP status when relevant; Code is
// the OAuth error code when the server supplied one.
type ProtocolError struct {
	StatusCode int
	Code       string
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Code != "" && e.StatusCode != 0:
		return fmt.Sprintf("oauth protocol error: %s (status %d)", e.Code, e.StatusCode)
	case e.Code != "":
		return fmt.Sprintf("oauth protocol error: %s", e.Code)
	default:
		return fmt.Sprintf("oauth protocol error: status %d", e.StatusCode)
	}
}

// OAuthClient defines the driven port for the GitHub device authorization
// flow and the profile lookup performed with its resulting token.
type OAuthClient interface {
	// RequestDeviceCode starts a device-flow session for the given OAuth app
	// client id, requesting user-profile, email, and repository scopes.
	RequestDeviceCode(ctx context.Context, clientID string) (model.DeviceAuthorization, error)

	// PollForToken polls the token endpoint until the user completes the
	// authorization or a terminal condition occurs. interval and expiresIn
	// are the server-dictated values in seconds; floor(expiresIn/interval)
	// authorization_pending responses are tolerated before
	// ErrDeviceCodeExpired.
	PollForToken(ctx context.Context, clientID, deviceCode string, interval, expiresIn int) (string, error)

	// FetchProfile retrieves the authenticated user's profile.
	FetchProfile(ctx context.Context, accessToken string) (model.GitHubUser, error)
}
