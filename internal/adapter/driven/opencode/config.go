// Package opencode implements the TargetConfig port against opencode's
// auth.json credential store. opencode installs keep the file in one of
// several directories depending on version and platform; this adapter scans
// all of them and rewrites whichever already exist.
package opencode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/natefinch/atomic"

	"github.com/ericfisherdev/ghswitch/internal/domain/port/driven"
)

const (
	// providerKey is the entry opencode reads GitHub Copilot credentials from.
	providerKey  = "github-copilot"
	authFileName = "auth.json"
)

// Compile-time interface satisfaction check.
var _ driven.TargetConfig = (*Propagator)(nil)

// Propagator locates opencode's credential files and rewrites them in place.
// Per-directory failures are logged and skipped: the goal is at least one
// working configuration, not all of them.
type Propagator struct {
	dirs     []string
	notifier driven.ReloadNotifier
	logger   *slog.Logger
}

// NewPropagator creates a Propagator over the given candidate directories in
// priority order. notifier is invoked after every ApplyToken so opencode
// re-reads the credential; pass a no-op implementation to disable.
func NewPropagator(dirs []string, notifier driven.ReloadNotifier, logger *slog.Logger) *Propagator {
	return &Propagator{dirs: dirs, notifier: notifier, logger: logger}
}

// DefaultDirs returns the platform's candidate opencode directories in
// priority order: the per-OS local-data root first, then the conventional
// home-directory locations older versions used.
func DefaultDirs() []string {
	var dirs []string

	if local, err := localDataDir(); err == nil {
		dirs = append(dirs, filepath.Join(local, "opencode"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".local", "share", "opencode"),
			filepath.Join(home, ".config", "opencode"),
		)
	}

	return dedup(dirs)
}

// localDataDir resolves the per-OS local application data root:
// %LOCALAPPDATA% on Windows, ~/Library/Application Support on macOS, and
// $XDG_DATA_HOME (or ~/.local/share) elsewhere.
func localDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LocalAppData"); dir != "" {
			return dir, nil
		}
		return "", fmt.Errorf("%%LocalAppData%% is not defined")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return dir, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}

func dedup(dirs []string) []string {
	seen := make(map[string]struct{}, len(dirs))
	out := dirs[:0]
	for _, d := range dirs {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// ReadActiveToken scans every candidate auth.json and returns the token from
// whichever has the latest modification time. Both historical layouts are
// recognized: the provider entry at the top level, or nested one level under
// an "auth" wrapper. Files that fail to parse are skipped.
func (p *Propagator) ReadActiveToken() (string, bool) {
	var (
		latestToken string
		latestTime  time.Time
		found       bool
	)

	for _, dir := range p.dirs {
		path := filepath.Join(dir, authFileName)

		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if found && info.ModTime().Before(latestTime) {
			continue
		}

		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var data map[string]any
		if err := json.Unmarshal(content, &data); err != nil {
			continue
		}

		token, ok := extractToken(data)
		if !ok {
			continue
		}

		latestToken = token
		latestTime = info.ModTime()
		found = true
	}

	return latestToken, found
}

// extractToken pulls the access token out of parsed auth.json content,
// checking the direct layout before the nested one.
func extractToken(data map[string]any) (string, bool) {
	if token, ok := entryAccess(data[providerKey]); ok {
		return token, true
	}
	if auth, ok := data["auth"].(map[string]any); ok {
		return entryAccess(auth[providerKey])
	}
	return "", false
}

func entryAccess(v any) (string, bool) {
	entry, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	token, ok := entry["access"].(string)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

// ApplyToken merges the token into every candidate directory whose auth.json
// already exists. The provider entry is always written at the top level; it
// is additionally written under "auth" only when an "auth" object is already
// present, so installs that never used the wrapper don't grow one. When no
// candidate file exists anywhere, the highest-priority candidate is seeded
// with both layouts. Afterwards opencode is asked to reload, best effort.
func (p *Propagator) ApplyToken(token, displayName string) error {
	wroteAny := false

	for _, dir := range p.dirs {
		path := filepath.Join(dir, authFileName)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		// An existing file suppresses the seed fallback even when its
		// rewrite fails: seeding is only for installs with no credential
		// file anywhere.
		wroteAny = true
		if err := p.mergeFile(path, token, false); err != nil {
			p.logger.Warn("update auth file failed", "path", path, "error", err)
		}
	}

	if !wroteAny && len(p.dirs) > 0 {
		path := filepath.Join(p.dirs[0], authFileName)
		if err := p.mergeFile(path, token, true); err != nil {
			p.logger.Warn("seed auth file failed", "path", path, "error", err)
		}
	}

	if err := p.notifier.NotifyReload(); err != nil {
		p.logger.Debug("reload notification failed", "error", err)
	}

	return nil
}

// mergeFile performs a read-merge-write of a single auth.json with atomic
// replacement, so concurrent readers never observe a half-written file.
// seedAuth creates the "auth" wrapper when absent; it is set only on the
// fresh-install fallback path.
func (p *Propagator) mergeFile(path, token string, seedAuth bool) error {
	data := map[string]any{}
	if content, err := os.ReadFile(path); err == nil {
		// Unparsable content is treated as an empty object, same as absence.
		if err := json.Unmarshal(content, &data); err != nil {
			data = map[string]any{}
		}
	}

	data[providerKey] = providerEntry(token)
	if auth, ok := data["auth"].(map[string]any); ok {
		auth[providerKey] = providerEntry(token)
	} else if seedAuth {
		data["auth"] = map[string]any{providerKey: providerEntry(token)}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	serialized, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize auth file: %w", err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(serialized)); err != nil {
		return fmt.Errorf("write auth file: %w", err)
	}

	return nil
}

func providerEntry(token string) map[string]any {
	return map[string]any{
		"type":    "oauth",
		"refresh": token,
		"access":  token,
		"expires": 0,
	}
}
