package model

// DeviceAuthorization is an in-flight device-flow session as issued by the
// authorization server. It lives only for the duration of one link attempt
// and is never persisted; DeviceCode is a secret shared with the server.
type DeviceAuthorization struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int
	Interval        int
}

// GitHubUser is the subset of the GitHub /user profile this system consumes.
type GitHubUser struct {
	ID        int64
	Login     string
	Name      *string
	Email     *string
	AvatarURL *string
}
