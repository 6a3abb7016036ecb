package api

import (
	"net/http"

	"github.com/roster-land/rosterd/applog"
)

type getLogResponse struct {
	Entries []applog.Entry `json:"entries"`
}

func (a *Api) handleGetLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := []applog.Entry{}
		if a.appLog != nil {
			entries = a.appLog.Entries()
		}

		a.jsonResponse(w, &getLogResponse{Entries: entries}, http.StatusOK)
	}
}
