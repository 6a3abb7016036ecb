package updater

import (
	"os"
	"time"

	"github.com/go-errors/errors"
	"github.com/roster-land/rosterd/updatedb"
)

// quitGraceDelay gives a dispatched installer time to start on its own
// before the host process exits.
const quitGraceDelay = 3 * time.Second

// InstallResult reports whether an install was dispatched.
type InstallResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SetInstallPreference records when the user wants the update applied.
func (u *Updater) SetInstallPreference(installOn string) error {
	switch installOn {
	case updatedb.InstallNow, updatedb.InstallOnClose, updatedb.InstallOnNextLaunch:
		u.db.SetInstallPreference(installOn)
		return nil
	default:
		return errors.Errorf("Unknown install preference %v", installOn)
	}
}

// InstallAndRestart launches the downloaded artifact through the platform
// launcher and asks the host to quit after a short grace delay. The
// persisted offer and download state are cleared once the launch is
// dispatched, so a relaunched instance starts clean.
func (u *Updater) InstallAndRestart(path string) *InstallResult {
	if path == "" {
		path = u.db.GetConfig().Download.DownloadPath
	}

	if path == "" {
		return &InstallResult{
			Success: false,
			Error:   "No update downloaded",
		}
	}

	if _, err := os.Stat(path); err != nil {
		u.log.Errorf("Installer file %v is not accessible: %v", path, err)

		return &InstallResult{
			Success: false,
			Error:   "Installer file missing",
		}
	}

	// The artifact is orphaned once installed.
	u.db.AddToCleanupList(path)

	extraCleanup, err := u.launcher.Launch(u.platform, path, u.execPath)
	if err != nil {
		u.log.Errorf("Could not launch installer: %v", err)

		return &InstallResult{
			Success: false,
			Error:   err.Error(),
		}
	}

	for _, p := range extraCleanup {
		u.db.AddToCleanupList(p)
	}

	u.db.ClearAvailableUpdate()
	u.db.ClearDownloadState()

	u.log.Infof("Installer dispatched, quitting in %v", quitGraceDelay)

	go func() {
		time.Sleep(quitGraceDelay)
		u.quit()
	}()

	return &InstallResult{Success: true}
}
