package model

import "time"

// Identity is one linked GitHub account and its credential. GitHubID is the
// remote numeric account id and acts as the natural dedup key; ID is a
// locally generated opaque key used for delete/switch.
type Identity struct {
	ID          string
	Name        string
	AccessToken string
	Email       *string
	AvatarURL   *string
	GitHubID    int64
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}
