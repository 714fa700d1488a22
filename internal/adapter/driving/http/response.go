package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/ghswitch/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code,
// machine-readable code, and message.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// IdentityResponse is the JSON representation of a linked identity. The
// access token is deliberately absent: the shell has no use for it and the
// propagator is the only component that externalizes credentials.
type IdentityResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      *string `json:"email"`
	AvatarURL  *string `json:"avatar_url"`
	GitHubID   int64   `json:"github_id"`
	CreatedAt  string  `json:"created_at"`
	LastUsedAt *string `json:"last_used_at"`
}

// DeviceSessionResponse is the JSON representation of a started device-flow
// session. DeviceCode is included because the shell must echo it back to the
// complete-link call; it is never persisted server-side.
type DeviceSessionResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// StartLinkRequest is the JSON body for the start-link endpoint.
type StartLinkRequest struct {
	ClientID string `json:"client_id"`
}

// CompleteLinkRequest is the JSON body for the complete-link endpoint.
type CompleteLinkRequest struct {
	ClientID   string `json:"client_id"`
	DeviceCode string `json:"device_code"`
	Interval   int    `json:"interval"`
	ExpiresIn  int    `json:"expires_in"`
}

// OpenURLRequest is the JSON body for the open-url endpoint.
type OpenURLRequest struct {
	URL string `json:"url"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toIdentityResponse converts a domain Identity to its JSON representation.
func toIdentityResponse(identity model.Identity) IdentityResponse {
	resp := IdentityResponse{
		ID:        identity.ID,
		Name:      identity.Name,
		Email:     identity.Email,
		AvatarURL: identity.AvatarURL,
		GitHubID:  identity.GitHubID,
		CreatedAt: identity.CreatedAt.UTC().Format(time.RFC3339),
	}
	if identity.LastUsedAt != nil {
		lastUsed := identity.LastUsedAt.UTC().Format(time.RFC3339)
		resp.LastUsedAt = &lastUsed
	}
	return resp
}

// toDeviceSessionResponse converts a DeviceAuthorization to its JSON representation.
func toDeviceSessionResponse(auth model.DeviceAuthorization) DeviceSessionResponse {
	return DeviceSessionResponse{
		DeviceCode:      auth.DeviceCode,
		UserCode:        auth.UserCode,
		VerificationURI: auth.VerificationURI,
		ExpiresIn:       auth.ExpiresIn,
		Interval:        auth.Interval,
	}
}
