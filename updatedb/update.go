package updatedb

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"
)

// SetCurrentVersion records the version of the running application.
func (db *DB) SetCurrentVersion(version string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.config.CurrentVersion = version
	db.persist()
}

// SetLastChecked records when the remote service was last queried.
func (db *DB) SetLastChecked(t time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.config.LastChecked = &t
	db.persist()
}

// SetAvailableUpdate replaces the recorded update offer and flags that a
// user decision on it is pending.
func (db *DB) SetAvailableUpdate(update *AvailableUpdate) {
	db.mu.Lock()
	defer db.mu.Unlock()

	copied := *update
	db.config.AvailableUpdate = &copied
	db.config.Preferences.UserDecisionPending = true
	db.persist()
}

// ClearAvailableUpdate drops the recorded update offer.
func (db *DB) ClearAvailableUpdate() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.config.AvailableUpdate = nil
	db.config.Preferences.UserDecisionPending = false
	db.persist()
}

// SetInstallPreference records when the user wants the update installed.
func (db *DB) SetInstallPreference(installOn string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.config.Preferences.InstallOn = installOn
	db.persist()
}

// SetDownloadCompleted records that the offered artifact has been fully
// written to path. The artifact counts as unverified until a checksum
// comparison has succeeded.
func (db *DB) SetDownloadCompleted(path string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	db.config.Download = DownloadState{
		IsDownloaded: true,
		DownloadPath: path,
		DownloadedAt: &now,
		Verified:     false,
	}
	db.persist()
}

// SetDownloadVerified flags whether the artifact passed validation.
func (db *DB) SetDownloadVerified(verified bool) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.config.Download.Verified = verified
	db.persist()
}

// ClearDownloadState resets the download record. A previously recorded
// artifact path is scheduled for cleanup first, never silently dropped.
func (db *DB) ClearDownloadState() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.clearDownloadState()
	db.persist()
}

func (db *DB) clearDownloadState() {
	if db.config.Download.DownloadPath != "" {
		db.addToCleanupList(db.config.Download.DownloadPath)
	}

	db.config.Download = DownloadState{}
}

// AddToCleanupList schedules a file for deletion on the next cleanup pass.
// Adding the same path twice keeps a single entry.
func (db *DB) AddToCleanupList(path string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.addToCleanupList(path)
	db.persist()
}

func (db *DB) addToCleanupList(path string) {
	for _, existing := range db.config.Cleanup.FilesToCleanup {
		if existing == path {
			db.config.Cleanup.NeedsCleanup = true
			return
		}
	}

	db.config.Cleanup.FilesToCleanup = append(db.config.Cleanup.FilesToCleanup, path)
	db.config.Cleanup.NeedsCleanup = true
}

// MarkCleanupCompleted empties the cleanup list and stamps the pass.
func (db *DB) MarkCleanupCompleted() {
	db.mu.Lock()
	defer db.mu.Unlock()

	now := time.Now()
	db.config.Cleanup = CleanupRecord{
		FilesToCleanup: []string{},
		LastCleanup:    &now,
	}
	db.persist()
}

// GetConfig returns a copy of the persisted aggregate.
func (db *DB) GetConfig() *UpdateConfig {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.config.clone()
}

// HasAvailableUpdate reports whether an update offer is recorded.
func (db *DB) HasAvailableUpdate() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.config.AvailableUpdate != nil
}

// IsUpdateDownloaded reports whether the offered artifact is on disk.
func (db *DB) IsUpdateDownloaded() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.config.Download.IsDownloaded
}

// NeedsCleanup reports whether files are waiting for a cleanup pass.
func (db *DB) NeedsCleanup() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.config.Cleanup.NeedsCleanup
}

// GetFilesToCleanup returns a copy of the scheduled cleanup paths.
func (db *DB) GetFilesToCleanup() []string {
	db.mu.Lock()
	defer db.mu.Unlock()

	return append([]string{}, db.config.Cleanup.FilesToCleanup...)
}

// ShouldSkipDownload reports whether a download of version can be skipped
// because that exact version has already been downloaded.
func (db *DB) ShouldSkipDownload(version string) bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.config.AvailableUpdate != nil &&
		db.config.AvailableUpdate.Version == version &&
		db.config.Download.IsDownloaded
}

// ValidateDownloadedFile is the single authority on whether the artifact on
// disk can be trusted. It compares the on-disk size against the recorded
// file size and the SHA-256 digest against the recorded checksum, clearing
// the download state on any mismatch so the next attempt starts clean.
func (db *DB) ValidateDownloadedFile() bool {
	db.mu.Lock()
	defer db.mu.Unlock()

	if !db.config.Download.IsDownloaded || db.config.Download.DownloadPath == "" {
		return false
	}

	path := db.config.Download.DownloadPath

	info, err := os.Stat(path)
	if err != nil {
		db.log.Infof("Downloaded file %v is gone, clearing download state", path)
		db.clearDownloadState()
		db.persist()
		return false
	}

	if db.config.AvailableUpdate != nil && db.config.AvailableUpdate.FileSize > 0 {
		if info.Size() != db.config.AvailableUpdate.FileSize {
			db.log.Warnf("Downloaded file %v has size %d, expected %d, clearing download state",
				path, info.Size(), db.config.AvailableUpdate.FileSize)
			db.clearDownloadState()
			db.persist()
			return false
		}
	}

	if db.config.AvailableUpdate != nil && db.config.AvailableUpdate.Checksum != "" {
		digest, err := fileChecksum(path)
		if err != nil {
			db.log.Warnf("Could not compute checksum of %v: %v", path, err)
			db.clearDownloadState()
			db.persist()
			return false
		}

		if !strings.EqualFold(digest, db.config.AvailableUpdate.Checksum) {
			db.log.Warnf("Downloaded file %v failed checksum verification, clearing download state", path)
			db.clearDownloadState()
			db.persist()
			return false
		}

		db.config.Download.Verified = true
		db.persist()
	}

	return true
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
