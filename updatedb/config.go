package updatedb

import "time"

// Install preference values captured between sessions.
const (
	InstallNow          = "now"
	InstallOnClose      = "onClose"
	InstallOnNextLaunch = "onNextLaunch"
)

// AvailableUpdate describes an update offer returned by the remote check.
// It is non-nil only while a check has found a newer version.
type AvailableUpdate struct {
	Version      string `json:"version"`
	DownloadURL  string `json:"downloadUrl"`
	FileName     string `json:"fileName"`
	FileSize     int64  `json:"fileSize"`
	Checksum     string `json:"checksum,omitempty"`
	ReleaseNotes string `json:"releaseNotes,omitempty"`
}

// DownloadState tracks a completed download of the offered artifact.
// DownloadPath is set iff IsDownloaded is true.
type DownloadState struct {
	IsDownloaded bool       `json:"isDownloaded"`
	DownloadPath string     `json:"downloadPath,omitempty"`
	DownloadedAt *time.Time `json:"downloadedAt,omitempty"`
	Verified     bool       `json:"verified"`
}

// InstallPreferences captures user intent between sessions.
type InstallPreferences struct {
	InstallOn           string `json:"installOn,omitempty"`
	UserDecisionPending bool   `json:"userDecisionPending"`
}

// CleanupRecord lists files scheduled for deletion on the next startup or
// shutdown pass. Append-only until a cleanup pass empties it.
type CleanupRecord struct {
	NeedsCleanup   bool       `json:"needsCleanup"`
	LastCleanup    *time.Time `json:"lastCleanup,omitempty"`
	FilesToCleanup []string   `json:"filesToCleanup"`
}

// UpdateConfig is the single persisted aggregate describing everything the
// updater knows across sessions.
type UpdateConfig struct {
	CurrentVersion  string             `json:"currentVersion"`
	LastChecked     *time.Time         `json:"lastChecked,omitempty"`
	AvailableUpdate *AvailableUpdate   `json:"availableUpdate,omitempty"`
	Download        DownloadState      `json:"download"`
	Preferences     InstallPreferences `json:"preferences"`
	Cleanup         CleanupRecord      `json:"cleanup"`
}

func defaultUpdateConfig() *UpdateConfig {
	return &UpdateConfig{
		Cleanup: CleanupRecord{
			FilesToCleanup: []string{},
		},
	}
}

// clone returns a deep copy so callers can never mutate the store's
// internal state through a returned config.
func (c *UpdateConfig) clone() *UpdateConfig {
	copied := *c

	if c.AvailableUpdate != nil {
		update := *c.AvailableUpdate
		copied.AvailableUpdate = &update
	}

	if c.LastChecked != nil {
		checked := *c.LastChecked
		copied.LastChecked = &checked
	}

	if c.Download.DownloadedAt != nil {
		downloaded := *c.Download.DownloadedAt
		copied.Download.DownloadedAt = &downloaded
	}

	if c.Cleanup.LastCleanup != nil {
		cleaned := *c.Cleanup.LastCleanup
		copied.Cleanup.LastCleanup = &cleaned
	}

	copied.Cleanup.FilesToCleanup = append([]string{}, c.Cleanup.FilesToCleanup...)

	return &copied
}
