package installer

import (
	"os"
	"os/exec"
	"runtime"

	"github.com/go-errors/errors"
	"github.com/roster-land/rosterd/platform"
)

// Runner abstracts the process-spawn and shell-open primitives so launch
// behavior stays testable without starting real installers.
type Runner interface {
	StartDetached(name string, args []string) error
	Open(path string) error
}

type execRunner struct{}

func (execRunner) StartDetached(name string, args []string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}

	// The child must outlive us; never wait on it.
	return cmd.Process.Release()
}

func (execRunner) Open(path string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	return cmd.Process.Release()
}

// Launcher starts a downloaded update artifact in the way the host
// platform expects.
type Launcher struct {
	runner Runner
	log    Logger
}

type Config struct {
	Runner Runner
	Logger Logger
}

func New(config *Config) *Launcher {
	launcher := &Launcher{
		runner: execRunner{},
		log:    noopLogger{},
	}

	if config != nil && config.Runner != nil {
		launcher.runner = config.Runner
	}

	if config != nil && config.Logger != nil {
		launcher.log = config.Logger
	}

	return launcher
}

// Launch dispatches the artifact at artifactPath. On Windows the installer
// binary is spawned detached with visible restart arguments, so the
// installer relaunches the application at execPath when it finishes. On
// Linux a portable AppImage is made executable and opened like a normal
// launch; the previous executable is then obsolete, so its path is
// returned for the caller to schedule for cleanup. Everything else is
// handed to the shell's default open handler.
func (l *Launcher) Launch(p platform.Platform, artifactPath string, execPath string) ([]string, error) {
	switch p {
	case platform.Windows:
		args := p.InstallRestartArgs(execPath)

		l.log.Infof("Starting installer %v %v", artifactPath, args)

		if err := l.runner.StartDetached(artifactPath, args); err != nil {
			return nil, errors.Errorf("Could not start installer: %v", err)
		}

		return nil, nil

	case platform.Linux:
		if platform.InstallType() == platform.InstallTypeAppImage {
			if err := os.Chmod(artifactPath, 0755); err != nil {
				return nil, errors.Errorf("Could not make %v executable: %v", artifactPath, err)
			}

			l.log.Infof("Opening new AppImage %v", artifactPath)

			if err := l.runner.Open(artifactPath); err != nil {
				return nil, errors.Errorf("Could not open %v: %v", artifactPath, err)
			}

			// The new image replaces the running one.
			return []string{execPath}, nil
		}

		fallthrough

	default:
		l.log.Infof("Opening %v", artifactPath)

		if err := l.runner.Open(artifactPath); err != nil {
			return nil, errors.Errorf("Could not open %v: %v", artifactPath, err)
		}

		return nil, nil
	}
}
