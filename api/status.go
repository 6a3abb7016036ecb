package api

import (
	"net/http"
)

func (a *Api) handleGetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.jsonResponse(w, a.updater.Status(), http.StatusOK)
	}
}
