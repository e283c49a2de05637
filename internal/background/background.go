// Package background manages the daemon's own process lifecycle:
// single-instance enforcement via lock files, PID-file bookkeeping,
// signal handling, and detached re-launch, using golang.org/x/sys/unix
// for the flock/SysProcAttr calls so the dependency is exercised by
// real code instead of only indirectly through x/term.
package background

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/qzeleza/chargerman/internal/logger"
	"github.com/qzeleza/chargerman/internal/paths"
)

// Manager enforces single-instance execution for one named process
// kind (e.g. "run", "bg") via a held lock file, and tracks its PID
// file for Kill to find later.
type Manager struct {
	log      *logger.Logger
	lockFile *os.File
}

// New creates a Manager logging through log.
func New(log *logger.Logger) *Manager {
	return &Manager{log: log}
}

// LaunchDetached re-execs the current binary with args, detached from
// the controlling terminal via a new session, and returns once the
// child has started.
func (m *Manager) LaunchDetached(args ...string) error {
	binaryPath := paths.BinaryPath()
	if !filepath.IsAbs(binaryPath) {
		return fmt.Errorf("background: could not resolve absolute executable path, got %q", binaryPath)
	}

	cmd := exec.Command(binaryPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("background: could not start detached process with args %v: %w", args, err)
	}

	m.log.Info(fmt.Sprintf("launched detached process PID %d with args: %v", cmd.Process.Pid, args))
	return cmd.Process.Release()
}

// Run acquires the lock for mode, writes the PID file, installs signal
// handling, then calls task (which blocks). Cleanup runs on every exit
// path, including signal-triggered termination.
func (m *Manager) Run(mode string, task func()) error {
	if err := m.Lock(mode); err != nil {
		return fmt.Errorf("background: %q is already running or the lock could not be acquired: %w", mode, err)
	}
	defer m.Unlock(mode)

	if err := m.WritePID(mode); err != nil {
		m.log.Error(fmt.Sprintf("could not write PID file for %q: %v", mode, err))
	}
	defer removePID(mode)

	m.HandleSignals(mode)

	task()
	return nil
}

// IsRunning reports whether mode's lock file is currently held by
// another process.
func (m *Manager) IsRunning(mode string) bool {
	lockPath := paths.LockPath(mode)
	file, err := os.Open(lockPath)
	if err != nil {
		return false
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return true
	}
	_ = unix.Flock(int(file.Fd()), unix.LOCK_UN)
	return false
}

// Kill signals the process recorded in mode's PID file to terminate,
// cleaning up stale lock/PID files if the process is already gone.
func (m *Manager) Kill(mode string) error {
	pidPath := paths.PIDPath(mode)
	pidBytes, err := os.ReadFile(pidPath)
	if err != nil {
		if os.IsNotExist(err) {
			m.log.Info(fmt.Sprintf("no PID file for %q, assuming not running; cleaning up", mode))
			m.Unlock(mode)
			return nil
		}
		return fmt.Errorf("background: could not read PID file for %q: %w", mode, err)
	}

	pid, err := strconv.Atoi(string(pidBytes))
	if err != nil {
		return fmt.Errorf("background: malformed PID in file for %q: %w", mode, err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		m.log.Info(fmt.Sprintf("process PID %d for %q not found, cleaning up", pid, mode))
		m.Unlock(mode)
		removePID(mode)
		return nil
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		if err == os.ErrProcessDone {
			m.log.Info(fmt.Sprintf("process PID %d for %q already terminated, cleaning up", pid, mode))
			m.Unlock(mode)
			removePID(mode)
			return nil
		}
		return fmt.Errorf("background: could not signal PID %d for %q: %w", pid, mode, err)
	}

	m.log.Info(fmt.Sprintf("sent termination signal to %q (PID %d)", mode, pid))
	return nil
}

// Lock creates and flock(2)-locks mode's lock file, retaining the
// descriptor for Unlock.
func (m *Manager) Lock(mode string) error {
	lockPath := paths.LockPath(mode)
	file, err := os.Create(lockPath)
	if err != nil {
		return fmt.Errorf("background: could not create lock file %q: %w", lockPath, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		return fmt.Errorf("background: could not lock %q, another instance may be running: %w", lockPath, err)
	}

	m.lockFile = file
	return nil
}

// Unlock releases and removes mode's lock file.
func (m *Manager) Unlock(mode string) {
	if m.lockFile == nil {
		lockPath := paths.LockPath(mode)
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			m.log.Error(fmt.Sprintf("could not remove lock file %q (no descriptor held): %v", lockPath, err))
		}
		return
	}

	lockPath := m.lockFile.Name()
	if err := unix.Flock(int(m.lockFile.Fd()), unix.LOCK_UN); err != nil {
		m.log.Error(fmt.Sprintf("could not unlock %q: %v", lockPath, err))
	}
	if err := m.lockFile.Close(); err != nil {
		m.log.Error(fmt.Sprintf("could not close lock file %q: %v", lockPath, err))
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		m.log.Error(fmt.Sprintf("could not remove lock file %q: %v", lockPath, err))
	}
	m.lockFile = nil
}

// WritePID writes the current process's PID to mode's PID file.
func (m *Manager) WritePID(mode string) error {
	pidPath := paths.PIDPath(mode)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		m.log.Error(fmt.Sprintf("could not write PID file %q: %v", pidPath, err))
		return err
	}
	m.log.Info(fmt.Sprintf("PID %d written to %s", pid, pidPath))
	return nil
}

// HandleSignals installs a SIGINT/SIGTERM handler that unlocks, removes
// the PID file, and exits cleanly.
func (m *Manager) HandleSignals(mode string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		m.log.Info(fmt.Sprintf("received signal %v for %q, shutting down", sig, mode))
		m.Unlock(mode)
		removePID(mode)
		os.Exit(0)
	}()
}

func removePID(mode string) {
	pidPath := paths.PIDPath(mode)
	if err := os.Remove(pidPath); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "background: could not remove PID file %q: %v\n", pidPath, err)
	}
}
