package api

import (
	"net"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/roster-land/rosterd/applog"
	"github.com/roster-land/rosterd/updater"
)

type Config struct {
	Updater *updater.Updater
	AppLog  *applog.AppLog
	Log     Logger
}

// Api is the local HTTP surface the desktop shell talks to. It renders
// nothing itself; it exposes the updater operations and pushes progress
// events over a websocket.
type Api struct {
	updater *updater.Updater
	appLog  *applog.AppLog
	router  *mux.Router
	log     Logger
}

func New(config *Config) *Api {
	api := &Api{
		updater: config.Updater,
		appLog:  config.AppLog,
		router:  mux.NewRouter(),
	}

	if config.Log != nil {
		api.log = config.Log
	} else {
		api.log = noopLogger{}
	}

	api.router.Handle("/api/v1/status", api.handleGetStatus()).Methods(http.MethodGet)

	api.router.Handle("/api/v1/updates/check", api.handleCheckUpdates()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/updates/download", api.handleStartDownload()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/updates/download", api.handleCancelDownload()).Methods(http.MethodDelete)
	api.router.Handle("/api/v1/updates/progress", api.handleGetProgress()).Methods(http.MethodGet)
	api.router.Handle("/api/v1/updates/install", api.handleInstall()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/updates/preference", api.handleSetPreference()).Methods(http.MethodPut)
	api.router.Handle("/api/v1/updates/events", api.handleGetEvents()).Methods(http.MethodGet)

	api.router.Handle("/api/v1/log", api.handleGetLog()).Methods(http.MethodGet)

	return api
}

func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(l, a.router)
	if err != nil {
		return errors.Errorf("Unable to serve api: %v", err)
	}

	return nil
}

// Handler exposes the router, mainly for tests.
func (a *Api) Handler() http.Handler {
	return a.router
}
