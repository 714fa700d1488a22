package driven

// TargetConfig defines the driven port for the external tool's credential
// store. Writes are advisory: failures against individual candidate
// directories are absorbed by the adapter, never surfaced to callers.
type TargetConfig interface {
	// ReadActiveToken returns the token currently held by the external tool,
	// taken from whichever candidate credential file has the latest
	// modification time. The second return is false when no candidate file
	// yields a token.
	ReadActiveToken() (string, bool)

	// ApplyToken writes the token into every existing candidate credential
	// file, or seeds the highest-priority candidate when none exists, then
	// asks the tool to reload.
	ApplyToken(token, displayName string) error
}

// ReloadNotifier asks the external tool to pick up a credential change.
// Implementations are fire-and-forget; there is no acknowledgement and an
// error means only that the request could not be delivered.
type ReloadNotifier interface {
	NotifyReload() error
}
