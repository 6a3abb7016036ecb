package main

import (
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	"github.com/roster-land/rosterd/api"
	"github.com/roster-land/rosterd/applog"
	"github.com/roster-land/rosterd/download"
	"github.com/roster-land/rosterd/installer"
	"github.com/roster-land/rosterd/platform"
	"github.com/roster-land/rosterd/remote"
	"github.com/roster-land/rosterd/updatedb"
	"github.com/roster-land/rosterd/updater"
	log "github.com/sirupsen/logrus"
)

var (
	// commit stores the current commit hash of this build. This should be set using -ldflags during compilation.
	Commit string
	// version stores the version string of this build. This should be set using -ldflags during compilation.
	Version string
	// date stores the date of this build. This should be set using -ldflags during compilation.
	Date string
)

// rosterdMain is the true entry point for rosterd. This is required since defers
// created in the top-level scope of a main method aren't executed if os.Exit() is called.
func rosterdMain() error {
	appLog := applog.New()

	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
	log.AddHook(appLog)

	// Load CLI configuration and defaults
	cfg, err := loadConfig()
	if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		return nil
	} else if err != nil {
		return errors.Errorf("Failed parsing arguments: %v", err)
	}

	// Set logger into debug mode if called with --debug
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Info("Setting debug mode.")
	}

	log.Debug("Loaded config.")

	// Print version of the daemon
	log.Infof("Version %s (commit %s)", Version, Commit)
	log.Infof("Built on %s", Date)

	// Stop here if only version was requested
	if cfg.ShowVersion {
		return nil
	}

	version := Version
	if cfg.AppVersion != "" {
		version = cfg.AppVersion
	}

	// The platform is resolved once; everything downstream switches over it
	hostPlatform := platform.Current()
	if cfg.Platform != "" {
		hostPlatform = platform.FromString(cfg.Platform)
	}

	log.Infof("Running on platform %v as install type %v", hostPlatform, platform.InstallType())

	// roster.db persistently stores the update configuration
	db, err := updatedb.Open(cfg.DataDir, log.New().WithField("system", "updatedb"))
	if err != nil {
		return errors.Errorf("Could not open roster.db: %v", err)
	}

	log.Infof("Opened roster.db")

	defer func() {
		err := db.Close()
		if err != nil {
			log.Errorf("Could not close roster.db: %v", err)
		} else {
			log.Info("Closed roster.db.")
		}
	}()

	// The remote update service client
	var checker remote.Checker

	if cfg.UpdateEndpoint != "" {
		checker = remote.NewHTTPChecker(&remote.HTTPCheckerConfig{
			Endpoint: cfg.UpdateEndpoint,
			Token:    cfg.UpdateToken,
			Logger:   log.New().WithField("system", "remote"),
		})

		log.Info("Created update service client.")
	} else {
		checker = remote.NewNoopChecker()

		log.Info("Created noop update checker.")
	}

	downloader := download.New(&download.Config{
		Logger: log.New().WithField("system", "download"),
	})

	launcher := installer.New(&installer.Config{
		Logger: log.New().WithField("system", "installer"),
	})

	// Closed once when the process should exit, either through an
	// interrupt or after an install was dispatched
	quit := make(chan struct{})
	var quitOnce sync.Once
	requestQuit := func() {
		quitOnce.Do(func() {
			close(quit)
		})
	}

	// central coordinator for the whole update lifecycle
	u := updater.New(&updater.Config{
		DB:             db,
		Checker:        checker,
		Downloader:     downloader,
		Launcher:       launcher,
		Platform:       hostPlatform,
		CurrentVersion: version,
		TempDir:        filepath.Join(cfg.DataDir, "updates"),
		Quit:           requestQuit,
		Logger:         log.New().WithField("system", "updater"),
	})

	log.Infof("Created updater.")

	// Validate surviving state and run deferred cleanup before any UI
	// operation is accepted
	u.ReconcileStartup()

	// The same cleanup pass runs again on graceful shutdown
	defer u.ReconcileShutdown()

	apiServer := api.New(&api.Config{
		Updater: u,
		AppLog:  appLog,
		Log:     log.New().WithField("system", "api"),
	})

	log.Infof("Created API")

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return errors.Errorf("Could not listen on %v: %v", cfg.Listen, err)
	}

	defer func() {
		err := lis.Close()
		if err != nil {
			log.Errorf("Could not close listener: %v", err)
		}
	}()

	go func() {
		log.Infof("Serving API on %v", cfg.Listen)

		err := apiServer.Serve(lis)
		if err != nil {
			log.Errorf("Could not serve api: %v", err)
		}
	}()

	// Handle interrupt signals correctly
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, os.Interrupt)
		sig := <-signals
		log.Info(sig)
		log.Info("Received an interrupt, shutting down...")
		requestQuit()
	}()

	// blocks until the daemon is asked to quit
	<-quit

	return nil
}

func main() {
	// Call the "real" main in a nested manner so the defers will properly
	// be executed in the case of a graceful shutdown.
	if err := rosterdMain(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
		} else {
			log.WithError(err).Println("Failed running rosterd.")
		}
		os.Exit(1)
	}
}
