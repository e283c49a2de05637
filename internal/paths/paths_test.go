package paths

import (
	"path/filepath"
	"testing"
)

func TestConfigDir_HonorsXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got := ConfigDir()
	want := filepath.Join(dir, AppName)
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestConfigDir_FallsBackToHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)

	got := ConfigDir()
	want := filepath.Join(home, ".config", AppName)
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTrackerPath_UnderStateDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	got := TrackerPath()
	want := filepath.Join(dir, AppName, "capacity.bin")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPIDPath_StripsLeadingDashesFromKind(t *testing.T) {
	a := PIDPath("--background")
	b := PIDPath("background")
	if a != b {
		t.Fatalf("expected leading dashes to be stripped, got %q vs %q", a, b)
	}
}

func TestLockPath_DistinctPerKind(t *testing.T) {
	fg := LockPath("foreground")
	bg := LockPath("background")
	if fg == bg {
		t.Fatalf("expected distinct lock paths per kind")
	}
}
