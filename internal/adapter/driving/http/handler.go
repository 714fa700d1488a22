// Package httphandler is the HTTP driving adapter consumed by the GUI shell.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/ghswitch/internal/application"
	"github.com/ericfisherdev/ghswitch/internal/domain/port/driven"
)

// Handler serves the identity command surface as a JSON API.
type Handler struct {
	svc             *application.AccountService
	openURL         func(url string) error
	defaultClientID string
	logger          *slog.Logger
}

// NewHandler creates a Handler. openURL launches the system browser;
// defaultClientID is used when a start/complete link request omits the
// client id and may be empty.
func NewHandler(svc *application.AccountService, openURL func(string) error, defaultClientID string, logger *slog.Logger) *Handler {
	return &Handler{
		svc:             svc,
		openURL:         openURL,
		defaultClientID: defaultClientID,
		logger:          logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/identities", h.ListIdentities)
	mux.HandleFunc("DELETE /api/v1/identities/{id}", h.DeleteIdentity)
	mux.HandleFunc("POST /api/v1/identities/{id}/switch", h.SwitchIdentity)
	mux.HandleFunc("POST /api/v1/link/start", h.StartLink)
	mux.HandleFunc("POST /api/v1/link/complete", h.CompleteLink)
	mux.HandleFunc("POST /api/v1/open-url", h.OpenURL)
	mux.HandleFunc("POST /api/v1/reconcile", h.Reconcile)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListIdentities returns all linked identities, newest first.
func (h *Handler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	identities, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list identities", "error", err)
		writeError(w, http.StatusInternalServerError, "storage", "internal server error")
		return
	}

	resp := make([]IdentityResponse, 0, len(identities))
	for _, identity := range identities {
		resp = append(resp, toIdentityResponse(identity))
	}

	writeJSON(w, http.StatusOK, resp)
}

// StartLink begins a device-flow session and returns its parameters.
func (h *Handler) StartLink(w http.ResponseWriter, r *http.Request) {
	var req StartLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = h.defaultClientID
	}
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "client_id is required")
		return
	}

	auth, err := h.svc.StartLink(r.Context(), clientID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDeviceSessionResponse(auth))
}

// CompleteLink polls the device-flow session to completion and returns the
// newly linked identity.
func (h *Handler) CompleteLink(w http.ResponseWriter, r *http.Request) {
	var req CompleteLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	clientID := req.ClientID
	if clientID == "" {
		clientID = h.defaultClientID
	}
	if clientID == "" || req.DeviceCode == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "client_id and device_code are required")
		return
	}
	if req.Interval <= 0 || req.ExpiresIn <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "interval and expires_in must be positive")
		return
	}

	identity, err := h.svc.CompleteLink(r.Context(), clientID, req.DeviceCode, req.Interval, req.ExpiresIn)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

// DeleteIdentity removes an identity. Deleting an unknown id is a no-op.
func (h *Handler) DeleteIdentity(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.logger.Error("failed to delete identity", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "storage", "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SwitchIdentity makes the identity the one opencode uses.
func (h *Handler) SwitchIdentity(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SwitchTo(r.Context(), r.PathValue("id")); err != nil {
		h.writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// OpenURL opens an http(s) URL in the system browser.
func (h *Handler) OpenURL(w http.ResponseWriter, r *http.Request) {
	var req OpenURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		writeError(w, http.StatusBadRequest, "bad_request", "url must be http or https")
		return
	}

	if err := h.openURL(req.URL); err != nil {
		h.logger.Error("failed to open url", "url", req.URL, "error", err)
		writeError(w, http.StatusInternalServerError, "system", "could not open browser")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Reconcile imports whatever credential opencode currently holds. It always
// succeeds from the caller's perspective.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	h.svc.Reconcile(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Health reports service liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeDomainError maps domain error kinds onto HTTP responses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var protoErr *driven.ProtocolError

	switch {
	case errors.Is(err, driven.ErrIdentityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "identity not found")
	case errors.Is(err, driven.ErrDuplicateAccount):
		writeError(w, http.StatusConflict, "conflict", "github account already linked")
	case errors.Is(err, driven.ErrDeviceCodeExpired):
		writeError(w, http.StatusGone, "expired", "device code expired")
	case errors.Is(err, driven.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "access_denied", "authorization declined by user")
	case errors.As(err, &protoErr):
		h.logger.Error("oauth protocol error", "error", err)
		writeError(w, http.StatusBadGateway, "protocol_error", protoErr.Error())
	default:
		h.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
