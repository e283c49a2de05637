// Package paths resolves the filesystem locations the daemon reads and
// writes: config, logs, the capacity-tracker file, lock/PID files and the
// systemd unit used to install it, following the XDG base directory
// layout since this daemon targets Linux, the platform its governing
// kernel driver actually runs on.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

// AppName identifies the daemon across all path helpers and the
// single-instance lock/PID files.
const AppName = "chargerman"

func xdgDir(envVar, fallback string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	home := os.Getenv("HOME")
	if home == "" {
		home = "/root"
	}
	return filepath.Join(home, fallback)
}

// ConfigDir returns the directory holding config.json, creating it if
// it does not already exist.
func ConfigDir() string {
	dir := filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), AppName)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// ConfigPath returns the path to config.json.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// StateDir returns the directory holding the capacity-tracker file and
// other daemon-owned mutable state, creating it if needed.
func StateDir() string {
	dir := filepath.Join(xdgDir("XDG_STATE_HOME", ".local/state"), AppName)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// TrackerPath returns the path to the encrypted capacity-tracker file.
func TrackerPath() string {
	return filepath.Join(StateDir(), "capacity.bin")
}

// LogDir returns the directory holding the daemon's log file, creating
// it if needed.
func LogDir() string {
	dir := filepath.Join(xdgDir("XDG_STATE_HOME", ".local/state"), AppName, "log")
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// LogPath returns the path to the daemon's log file.
func LogPath() string {
	return filepath.Join(LogDir(), AppName+".log")
}

// BinaryPath returns the path to the running executable, falling back
// to AppName (assumed to be on PATH) if it cannot be resolved.
func BinaryPath() string {
	p, err := os.Executable()
	if err != nil {
		return AppName
	}
	return p
}

// UnitName is the systemd user-unit name installed for the daemon.
func UnitName() string {
	return AppName + ".service"
}

// UnitPath returns the path to the installed systemd user unit.
func UnitPath() string {
	return filepath.Join(xdgDir("XDG_CONFIG_HOME", ".config"), "systemd", "user", UnitName())
}

// PIDPath returns the PID-file path for the given process kind
// ("background", "foreground", ...).
func PIDPath(kind string) string {
	return filepath.Join(os.TempDir(), AppName+"."+clean(kind)+".pid")
}

// LockPath returns the lock-file path for the given process kind.
func LockPath(kind string) string {
	return filepath.Join(os.TempDir(), AppName+"."+clean(kind)+".lock")
}

func clean(kind string) string {
	return strings.TrimPrefix(strings.TrimPrefix(kind, "--"), "-")
}
