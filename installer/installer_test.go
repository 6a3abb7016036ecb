package installer

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/roster-land/rosterd/platform"
)

type fakeRunner struct {
	started     string
	startedArgs []string
	opened      string
}

func (r *fakeRunner) StartDetached(name string, args []string) error {
	r.started = name
	r.startedArgs = args
	return nil
}

func (r *fakeRunner) Open(path string) error {
	r.opened = path
	return nil
}

func TestLaunchWindows(t *testing.T) {
	runner := &fakeRunner{}
	launcher := New(&Config{Runner: runner})

	cleanup, err := launcher.Launch(platform.Windows, `C:\tmp\update-2.0.0.exe`, `C:\Roster\Roster.exe`)
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	if runner.started != `C:\tmp\update-2.0.0.exe` {
		t.Errorf("unexpected installer %q", runner.started)
	}

	want := []string{"/CLOSEAPPLICATIONS", `/RESTARTCOMMANDLINE=C:\Roster\Roster.exe`}
	if !reflect.DeepEqual(runner.startedArgs, want) {
		t.Errorf("unexpected installer args %v, want %v", runner.startedArgs, want)
	}

	if len(cleanup) != 0 {
		t.Errorf("unexpected cleanup paths %v", cleanup)
	}
}

func TestLaunchLinuxAppImage(t *testing.T) {
	t.Setenv("APPIMAGE", "/home/user/Roster.AppImage")

	artifact := filepath.Join(t.TempDir(), "update-2.0.0.AppImage")
	if err := os.WriteFile(artifact, []byte("image"), 0600); err != nil {
		t.Fatalf("could not write artifact: %v", err)
	}

	runner := &fakeRunner{}
	launcher := New(&Config{Runner: runner})

	cleanup, err := launcher.Launch(platform.Linux, artifact, "/home/user/Roster.AppImage")
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	if runner.opened != artifact {
		t.Errorf("expected artifact to be opened, got %q", runner.opened)
	}

	info, err := os.Stat(artifact)
	if err != nil {
		t.Fatalf("could not stat artifact: %v", err)
	}

	if info.Mode().Perm() != 0755 {
		t.Errorf("artifact mode = %v, want 0755", info.Mode().Perm())
	}

	if !reflect.DeepEqual(cleanup, []string{"/home/user/Roster.AppImage"}) {
		t.Errorf("expected the previous executable to be scheduled for cleanup, got %v", cleanup)
	}
}

func TestLaunchMacOS(t *testing.T) {
	runner := &fakeRunner{}
	launcher := New(&Config{Runner: runner})

	cleanup, err := launcher.Launch(platform.MacOS, "/tmp/update-2.0.0.dmg", "/Applications/Roster.app")
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	if runner.opened != "/tmp/update-2.0.0.dmg" {
		t.Errorf("expected artifact to be opened, got %q", runner.opened)
	}

	if runner.started != "" {
		t.Errorf("expected no detached process on macOS")
	}

	if len(cleanup) != 0 {
		t.Errorf("unexpected cleanup paths %v", cleanup)
	}
}
