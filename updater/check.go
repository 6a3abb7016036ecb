package updater

import (
	"time"

	"github.com/roster-land/rosterd/updatedb"
)

// CheckResult is what a check-for-updates request reports back to the UI.
type CheckResult struct {
	Success           bool   `json:"success"`
	UpdateAvailable   bool   `json:"updateAvailable"`
	Version           string `json:"version,omitempty"`
	ReleaseNotes      string `json:"releaseNotes,omitempty"`
	AlreadyDownloaded bool   `json:"alreadyDownloaded"`
	Error             string `json:"error,omitempty"`
}

// CheckForUpdates asks the remote service for a newer version. The current
// version and check time are recorded regardless of the outcome. A found
// update is persisted as the available update; a no-update answer clears
// any stale offer. Failures come back as a structured result, never as a
// panic or crash of the host.
func (u *Updater) CheckForUpdates() *CheckResult {
	u.db.SetCurrentVersion(u.currentVersion)
	u.db.SetLastChecked(time.Now())

	result, err := u.checker.Check(u.platform.String(), u.currentVersion)
	if err != nil {
		u.log.Errorf("Could not check for updates: %v", err)

		return &CheckResult{
			Success: false,
			Error:   err.Error(),
		}
	}

	if !result.UpdateAvailable || result.Version == "" {
		u.log.Infof("No update available, running version %v is current", u.currentVersion)

		u.db.ClearAvailableUpdate()

		return &CheckResult{Success: true}
	}

	fileName := result.FileName
	if fileName == "" {
		fileName = u.platform.UpdateFileName(result.Version)
	}

	u.db.SetAvailableUpdate(&updatedb.AvailableUpdate{
		Version:      result.Version,
		DownloadURL:  result.DownloadURL,
		FileName:     fileName,
		FileSize:     result.FileSize,
		Checksum:     result.Checksum,
		ReleaseNotes: result.ReleaseNotes,
	})

	// A prior session may already have downloaded exactly this version,
	// letting the UI skip straight to install.
	alreadyDownloaded := u.db.ValidateDownloadedFile()

	u.log.Infof("Update %v is available (already downloaded: %v)", result.Version, alreadyDownloaded)

	return &CheckResult{
		Success:           true,
		UpdateAvailable:   true,
		Version:           result.Version,
		ReleaseNotes:      result.ReleaseNotes,
		AlreadyDownloaded: alreadyDownloaded,
	}
}
