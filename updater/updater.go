package updater

import (
	"context"
	"os"
	"sync"

	"github.com/roster-land/rosterd/download"
	"github.com/roster-land/rosterd/installer"
	"github.com/roster-land/rosterd/platform"
	"github.com/roster-land/rosterd/remote"
	"github.com/roster-land/rosterd/updatedb"
)

// Updater coordinates the whole desktop update lifecycle: remote checks,
// artifact download and validation, and platform-specific installation.
// One instance is constructed at startup and owns the single-slot download
// guard; nothing in here is an ambient singleton.
type Updater struct {
	db             *updatedb.DB
	checker        remote.Checker
	downloader     *download.Downloader
	launcher       *installer.Launcher
	platform       platform.Platform
	currentVersion string
	tempDir        string
	execPath       string
	quit           func()
	log            Logger

	// mu guards the single download slot and its live progress.
	mu       sync.Mutex
	transfer *transfer
	progress *download.Progress

	eventClients      map[uint32]*EventsClient
	eventClientMtx    sync.Mutex
	nextEventClientID uint32
}

// transfer is the one active download, if any.
type transfer struct {
	id     string
	url    string
	dest   string
	cancel context.CancelFunc
}

type Config struct {
	DB             *updatedb.DB
	Checker        remote.Checker
	Downloader     *download.Downloader
	Launcher       *installer.Launcher
	Platform       platform.Platform
	CurrentVersion string
	// TempDir is where downloaded artifacts are staged.
	TempDir string
	// Quit asks the host process to exit after an install was dispatched.
	Quit   func()
	Logger Logger
}

func New(config *Config) *Updater {
	updater := &Updater{
		db:             config.DB,
		checker:        config.Checker,
		downloader:     config.Downloader,
		launcher:       config.Launcher,
		platform:       config.Platform,
		currentVersion: config.CurrentVersion,
		tempDir:        config.TempDir,
		quit:           config.Quit,
		log:            config.Logger,
		eventClients:   make(map[uint32]*EventsClient),
	}

	if updater.checker == nil {
		updater.checker = remote.NewNoopChecker()
	}

	if updater.downloader == nil {
		updater.downloader = download.New(nil)
	}

	if updater.launcher == nil {
		updater.launcher = installer.New(nil)
	}

	if updater.quit == nil {
		updater.quit = func() {}
	}

	if updater.log == nil {
		updater.log = noopLogger{}
	}

	if execPath, err := os.Executable(); err == nil {
		updater.execPath = execPath
	} else {
		updater.log.Warnf("Could not resolve executable path: %v", err)
	}

	return updater
}
