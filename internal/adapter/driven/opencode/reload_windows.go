//go:build windows

package opencode

import "os/exec"

// ProcessKiller implements driven.ReloadNotifier by terminating running
// opencode processes so the tool re-reads its credential file on next launch.
type ProcessKiller struct{}

// NotifyReload terminates node.exe processes whose command line mentions
// opencode. opencode runs under node on Windows, so matching the image name
// alone would kill unrelated tools.
func (ProcessKiller) NotifyReload() error {
	return exec.Command("powershell",
		"-WindowStyle", "Hidden",
		"-Command",
		"Get-CimInstance Win32_Process | Where-Object { $_.Name -eq 'node.exe' -and $_.CommandLine -match 'opencode' } | Invoke-CimMethod -MethodName Terminate",
	).Run()
}
