package updater

import (
	"os"
	"path/filepath"
)

// ReconcileStartup runs before any UI operation is accepted. A download
// surviving from a prior session is re-validated so staleness or
// corruption surfaces now instead of at install time, and deferred
// cleanup is attempted.
func (u *Updater) ReconcileStartup() {
	config := u.db.GetConfig()

	if config.AvailableUpdate != nil && config.Download.IsDownloaded {
		if u.db.ValidateDownloadedFile() {
			u.log.Infof("Previously downloaded update %v is still valid", config.AvailableUpdate.Version)
		} else {
			u.log.Infof("Previously downloaded update is no longer valid")
		}
	}

	u.runCleanup()
}

// ReconcileShutdown runs the cleanup pass on graceful shutdown. A crash
// between the two passes simply defers cleanup to the next startup.
func (u *Updater) ReconcileShutdown() {
	u.runCleanup()
}

func (u *Updater) runCleanup() {
	if !u.db.NeedsCleanup() {
		return
	}

	for _, path := range u.db.GetFilesToCleanup() {
		if _, err := os.Stat(path); err != nil {
			continue
		}

		if err := os.Remove(path); err != nil {
			u.log.Warnf("Could not remove %v: %v", path, err)
			continue
		}

		u.log.Infof("Removed %v", path)

		// Drop the parent directory too once it holds nothing else.
		dir := filepath.Dir(path)
		if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
			if err := os.Remove(dir); err != nil {
				u.log.Warnf("Could not remove empty directory %v: %v", dir, err)
			} else {
				u.log.Infof("Removed empty directory %v", dir)
			}
		}
	}

	u.db.MarkCleanupCompleted()
}
