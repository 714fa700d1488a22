//go:build !windows

package opencode

import "os/exec"

// ProcessKiller implements driven.ReloadNotifier by terminating running
// opencode processes so the tool re-reads its credential file on next launch.
type ProcessKiller struct{}

// NotifyReload terminates processes whose command line mentions opencode.
// pkill exits 1 when nothing matched, which callers treat as delivered.
func (ProcessKiller) NotifyReload() error {
	return exec.Command("pkill", "-f", "opencode").Run()
}
