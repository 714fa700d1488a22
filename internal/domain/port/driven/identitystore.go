package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/ghswitch/internal/domain/model"
)

// ErrIdentityNotFound is returned when no identity exists for the given id.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrDuplicateAccount is returned by Insert when an identity with the same
// GitHub account id is already stored. Callers that want refresh-in-place
// semantics should use UpsertByGitHubID instead.
var ErrDuplicateAccount = errors.New("github account already linked")

// IdentityStore defines the driven port for identity persistence.
// The store is the sole writer of identity records; every method hands out
// copies. All mutations are single-row and atomic at the storage layer.
type IdentityStore interface {
	// List returns all identities ordered by creation time, newest first.
	List(ctx context.Context) ([]model.Identity, error)

	// Insert stores a new identity. Returns ErrDuplicateAccount when a record
	// with the same GitHubID already exists.
	Insert(ctx context.Context, identity model.Identity) error

	// UpsertByGitHubID refreshes the record matching identity.GitHubID in
	// place (token, profile fields, last-used), or inserts identity as a new
	// record when no match exists. Returns the stored record.
	UpsertByGitHubID(ctx context.Context, identity model.Identity) (model.Identity, error)

	// Get returns the identity with the given id, or ErrIdentityNotFound.
	Get(ctx context.Context, id string) (model.Identity, error)

	// Delete removes the identity with the given id. Deleting an absent id
	// is a no-op.
	Delete(ctx context.Context, id string) error

	// TouchLastUsed sets the identity's last-used timestamp to now and
	// returns the updated record, or ErrIdentityNotFound.
	TouchLastUsed(ctx context.Context, id string) (model.Identity, error)
}
