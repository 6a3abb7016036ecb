package updater

import (
	"time"

	"github.com/roster-land/rosterd/platform"
)

// Status summarizes the persisted update state for the UI shell.
type Status struct {
	CurrentVersion      string     `json:"currentVersion"`
	Platform            string     `json:"platform"`
	InstallType         string     `json:"installType"`
	LastChecked         *time.Time `json:"lastChecked,omitempty"`
	UpdateAvailable     bool       `json:"updateAvailable"`
	UpdateVersion       string     `json:"updateVersion,omitempty"`
	ReleaseNotes        string     `json:"releaseNotes,omitempty"`
	Downloaded          bool       `json:"downloaded"`
	Verified            bool       `json:"verified"`
	DownloadActive      bool       `json:"downloadActive"`
	UserDecisionPending bool       `json:"userDecisionPending"`
}

func (u *Updater) Status() *Status {
	config := u.db.GetConfig()

	status := &Status{
		CurrentVersion:      config.CurrentVersion,
		Platform:            u.platform.String(),
		InstallType:         platform.InstallType(),
		LastChecked:         config.LastChecked,
		Downloaded:          config.Download.IsDownloaded,
		Verified:            config.Download.Verified,
		DownloadActive:      u.GetDownloadProgress() != nil,
		UserDecisionPending: config.Preferences.UserDecisionPending,
	}

	if config.AvailableUpdate != nil {
		status.UpdateAvailable = true
		status.UpdateVersion = config.AvailableUpdate.Version
		status.ReleaseNotes = config.AvailableUpdate.ReleaseNotes
	}

	return status
}
