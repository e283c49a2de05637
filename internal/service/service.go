// Package service installs, starts, stops, and queries the daemon's
// systemd user unit via systemctl --user and a unit file, the service
// manager for the Linux platform this daemon targets.
package service

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/qzeleza/chargerman/internal/logger"
	"github.com/qzeleza/chargerman/internal/paths"
)

const unitTemplate = `[Unit]
Description=Battery charger manager daemon
After=multi-user.target

[Service]
Type=simple
ExecStart=%s run
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// Install writes the unit file, reloads the user manager, and enables
// plus starts the unit.
func Install(log *logger.Logger) error {
	binaryPath := paths.BinaryPath()
	unitPath := paths.UnitPath()

	content := fmt.Sprintf(unitTemplate, binaryPath)
	if err := os.WriteFile(unitPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("service: could not write unit file %q: %w", unitPath, err)
	}
	log.Info(fmt.Sprintf("wrote unit file %s", unitPath))

	if err := run(log, "systemctl", "--user", "daemon-reload"); err != nil {
		return err
	}
	if err := run(log, "systemctl", "--user", "enable", "--now", paths.UnitName()); err != nil {
		return fmt.Errorf("service: could not enable unit: %w", err)
	}
	log.Info("unit enabled and started")
	return nil
}

// Uninstall stops and disables the unit, removes the unit file, and
// reloads the user manager.
func Uninstall(log *logger.Logger) error {
	unitPath := paths.UnitPath()

	if IsActive(log) {
		if err := run(log, "systemctl", "--user", "disable", "--now", paths.UnitName()); err != nil {
			log.Error(fmt.Sprintf("could not disable unit cleanly: %v", err))
		}
	}

	if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("service: could not remove unit file %q: %w", unitPath, err)
	}
	log.Info(fmt.Sprintf("removed unit file %s", unitPath))

	return run(log, "systemctl", "--user", "daemon-reload")
}

// IsActive reports whether the unit is currently running, per
// `systemctl --user is-active`.
func IsActive(log *logger.Logger) bool {
	cmd := exec.Command("systemctl", "--user", "is-active", paths.UnitName())
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Debug(fmt.Sprintf("unit not active or systemctl error: %v", err))
		return false
	}
	return strings.TrimSpace(string(output)) == "active"
}

func run(log *logger.Logger, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("service: %s %v failed: %w (%s)", name, args, err, strings.TrimSpace(string(output)))
	}
	log.Debug(fmt.Sprintf("%s %v: %s", name, args, strings.TrimSpace(string(output))))
	return nil
}
