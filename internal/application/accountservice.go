// Package application contains use-case orchestration services.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/ghswitch/internal/domain/model"
	"github.com/ericfisherdev/ghswitch/internal/domain/port/driven"
)

// AccountService orchestrates identity linking, switching, and
// reconciliation across the OAuth client, the identity store, and the
// target-config propagator.
type AccountService struct {
	store  driven.IdentityStore
	oauth  driven.OAuthClient
	target driven.TargetConfig
	logger *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewAccountService creates an AccountService with all required dependencies.
func NewAccountService(
	store driven.IdentityStore,
	oauth driven.OAuthClient,
	target driven.TargetConfig,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		store:  store,
		oauth:  oauth,
		target: target,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// List returns all linked identities, newest first.
func (s *AccountService) List(ctx context.Context) ([]model.Identity, error) {
	return s.store.List(ctx)
}

// StartLink begins a device-flow session for the given OAuth app client id.
// The returned session is held by the caller for CompleteLink and is never
// persisted.
func (s *AccountService) StartLink(ctx context.Context, clientID string) (model.DeviceAuthorization, error) {
	return s.oauth.RequestDeviceCode(ctx, clientID)
}

// CompleteLink polls the device-flow session to completion, fetches the
// user's profile, persists a new identity, and propagates the token into
// opencode's credential store. Nothing is persisted if polling or the
// profile fetch fails; propagation failures are advisory and do not undo the
// persisted identity.
func (s *AccountService) CompleteLink(ctx context.Context, clientID, deviceCode string, interval, expiresIn int) (model.Identity, error) {
	token, err := s.oauth.PollForToken(ctx, clientID, deviceCode, interval, expiresIn)
	if err != nil {
		return model.Identity{}, err
	}

	user, err := s.oauth.FetchProfile(ctx, token)
	if err != nil {
		return model.Identity{}, err
	}

	now := s.now().UTC()
	identity := model.Identity{
		ID:          s.newID(),
		Name:        user.Login,
		AccessToken: token,
		Email:       user.Email,
		AvatarURL:   user.AvatarURL,
		GitHubID:    user.ID,
		CreatedAt:   now,
		LastUsedAt:  &now,
	}

	if err := s.store.Insert(ctx, identity); err != nil {
		return model.Identity{}, err
	}

	if err := s.target.ApplyToken(identity.AccessToken, identity.Name); err != nil {
		s.logger.Warn("token propagation failed after link", "identity", identity.ID, "error", err)
	}

	s.logger.Info("linked github account", "identity", identity.ID, "login", identity.Name)
	return identity, nil
}

// SwitchTo propagates the identity's token into opencode's credential store
// and records the switch. Propagation runs before the last-used bookkeeping
// so a crash mid-switch cannot mark a non-propagated switch as used.
func (s *AccountService) SwitchTo(ctx context.Context, id string) error {
	identity, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.target.ApplyToken(identity.AccessToken, identity.Name); err != nil {
		s.logger.Warn("token propagation failed on switch", "identity", id, "error", err)
	}

	if _, err := s.store.TouchLastUsed(ctx, id); err != nil {
		return err
	}

	s.logger.Info("switched active account", "identity", id, "login", identity.Name)
	return nil
}

// Delete removes the identity. Deleting an unknown id is a no-op.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Reconcile imports whatever credential opencode currently holds: it reads
// the active token, resolves the account it belongs to, and refreshes or
// creates the matching identity. Reconciliation is opportunistic; every
// failure is absorbed and the store is simply left unchanged.
func (s *AccountService) Reconcile(ctx context.Context) {
	token, ok := s.target.ReadActiveToken()
	if !ok {
		s.logger.Debug("reconcile: no active opencode token")
		return
	}

	user, err := s.oauth.FetchProfile(ctx, token)
	if err != nil {
		s.logger.Debug("reconcile: profile fetch failed", "error", err)
		return
	}

	now := s.now().UTC()
	identity := model.Identity{
		ID:          s.newID(),
		Name:        user.Login,
		AccessToken: token,
		Email:       user.Email,
		AvatarURL:   user.AvatarURL,
		GitHubID:    user.ID,
		CreatedAt:   now,
		LastUsedAt:  &now,
	}

	stored, err := s.store.UpsertByGitHubID(ctx, identity)
	if err != nil {
		s.logger.Debug("reconcile: upsert failed", "github_id", user.ID, "error", err)
		return
	}

	s.logger.Info("reconciled active account", "identity", stored.ID, "login", stored.Name)
}
