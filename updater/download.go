package updater

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/roster-land/rosterd/download"
)

// StartDownloadResult reports whether a download was scheduled. Completion
// and verification arrive later through the event subscription.
type StartDownloadResult struct {
	Success           bool   `json:"success"`
	Started           bool   `json:"started"`
	AlreadyDownloaded bool   `json:"alreadyDownloaded"`
	DownloadPath      string `json:"downloadPath,omitempty"`
	Error             string `json:"error,omitempty"`
}

// StartDownload stages the update artifact in the temp directory. Explicit
// url and fileName arguments win; otherwise the persisted available update
// supplies them. The call returns as soon as the transfer is scheduled so
// the UI stays responsive; a valid prior download of the offered version
// short-circuits without touching the network.
func (u *Updater) StartDownload(url string, fileName string) *StartDownloadResult {
	u.mu.Lock()
	if u.transfer != nil {
		u.mu.Unlock()

		return &StartDownloadResult{
			Success: false,
			Error:   "Download already in progress",
		}
	}
	u.mu.Unlock()

	config := u.db.GetConfig()

	if url == "" && config.AvailableUpdate != nil {
		url = config.AvailableUpdate.DownloadURL
	}

	if fileName == "" && config.AvailableUpdate != nil {
		fileName = config.AvailableUpdate.FileName
	}

	if url == "" || fileName == "" {
		return &StartDownloadResult{
			Success: false,
			Error:   "No download information available",
		}
	}

	dest := filepath.Join(u.tempDir, fileName)

	// The skip runs outside the slot lock: hashing a large installer must
	// not block progress reads or cancellation. Version equality and the
	// destination path guard against short-circuiting onto a stale
	// artifact that validation alone cannot catch when the offer carries
	// neither size nor checksum.
	if config.AvailableUpdate != nil &&
		u.db.ShouldSkipDownload(config.AvailableUpdate.Version) &&
		config.Download.DownloadPath == dest &&
		u.db.ValidateDownloadedFile() {
		u.log.Infof("Update already downloaded to %v, skipping transfer", dest)

		u.publishEvent(&Event{
			Id:   uuid.New().String(),
			Type: EventTypeCompleted,
			Result: &DownloadResult{
				Success:           true,
				DownloadPath:      dest,
				Verified:          u.db.GetConfig().Download.Verified,
				AlreadyDownloaded: true,
			},
		})

		return &StartDownloadResult{
			Success:           true,
			AlreadyDownloaded: true,
			DownloadPath:      dest,
		}
	}

	if err := os.MkdirAll(u.tempDir, 0700); err != nil {
		u.log.Errorf("Could not create download directory: %v", err)

		return &StartDownloadResult{
			Success: false,
			Error:   "Could not create download directory",
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &transfer{
		id:     uuid.New().String(),
		url:    url,
		dest:   dest,
		cancel: cancel,
	}

	u.mu.Lock()
	if u.transfer != nil {
		u.mu.Unlock()

		cancel()

		return &StartDownloadResult{
			Success: false,
			Error:   "Download already in progress",
		}
	}
	u.transfer = t
	u.mu.Unlock()

	u.log.Infof("Starting download of %v to %v", t.url, t.dest)

	go u.runTransfer(ctx, t)

	return &StartDownloadResult{
		Success: true,
		Started: true,
	}
}

func (u *Updater) runTransfer(ctx context.Context, t *transfer) {
	err := u.downloader.Download(ctx, t.url, t.dest, func(p download.Progress) {
		u.mu.Lock()
		if u.transfer == t {
			snapshot := p
			u.progress = &snapshot
		}
		u.mu.Unlock()

		progress := p
		u.publishEvent(&Event{
			Id:       t.id,
			Type:     EventTypeProgress,
			Progress: &progress,
		})
	})

	u.mu.Lock()
	active := u.transfer == t
	if active {
		u.transfer = nil
		u.progress = nil
	}
	u.mu.Unlock()

	// A released slot means the transfer was cancelled: the persisted
	// state is already cleared and the file scheduled for cleanup. Even a
	// transfer that finished in that very instant must not resurrect it.
	if !active {
		u.log.Infof("Download of %v was cancelled", t.url)

		u.publishEvent(&Event{
			Id:   t.id,
			Type: EventTypeCompleted,
			Result: &DownloadResult{
				Success: false,
				Error:   "Download cancelled",
			},
		})

		return
	}

	if err != nil {
		u.log.Errorf("Download of %v failed: %v", t.url, err)

		u.publishEvent(&Event{
			Id:   t.id,
			Type: EventTypeCompleted,
			Result: &DownloadResult{
				Success: false,
				Error:   err.Error(),
			},
		})

		return
	}

	u.db.SetDownloadCompleted(t.dest)

	verified := u.db.ValidateDownloadedFile()

	if verified {
		u.log.Infof("Download of %v completed and validated", t.url)
	} else {
		u.log.Warnf("Download of %v completed but failed validation", t.url)
	}

	u.publishEvent(&Event{
		Id:   t.id,
		Type: EventTypeCompleted,
		Result: &DownloadResult{
			Success:      true,
			DownloadPath: t.dest,
			Verified:     verified,
		},
	})
}

// GetDownloadProgress returns the latest progress snapshot of the active
// transfer, or nil when nothing is running.
func (u *Updater) GetDownloadProgress() *download.Progress {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.progress == nil {
		return nil
	}

	snapshot := *u.progress

	return &snapshot
}

// CancelDownload aborts the active transfer, schedules its partial file
// for cleanup and resets the persisted download state. Calling it with no
// active transfer is a harmless no-op.
func (u *Updater) CancelDownload() {
	u.mu.Lock()

	t := u.transfer
	u.transfer = nil
	u.progress = nil

	u.mu.Unlock()

	if t == nil {
		return
	}

	u.log.Infof("Cancelling download of %v", t.url)

	t.cancel()

	u.db.AddToCleanupList(t.dest)
	u.db.ClearDownloadState()
}
