package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

type startDownloadRequest struct {
	Url      string `json:"url"`
	FileName string `json:"fileName"`
}

type installRequest struct {
	DownloadPath string `json:"downloadPath"`
}

type cancelDownloadResponse struct {
	Success bool `json:"success"`
}

type setPreferenceRequest struct {
	InstallOn string `json:"installOn"`
}

type setPreferenceResponse struct {
	Success bool `json:"success"`
}

func (a *Api) handleCheckUpdates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := a.updater.CheckForUpdates()

		a.jsonResponse(w, result, http.StatusOK)
	}
}

func (a *Api) handleStartDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := startDownloadRequest{}

		// An empty body means: use the persisted available update.
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil && err != io.EOF {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result := a.updater.StartDownload(req.Url, req.FileName)

		a.jsonResponse(w, result, http.StatusOK)
	}
}

func (a *Api) handleCancelDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a.updater.CancelDownload()

		a.jsonResponse(w, &cancelDownloadResponse{Success: true}, http.StatusOK)
	}
}

type getProgressResponse struct {
	Active   bool        `json:"active"`
	Progress interface{} `json:"progress,omitempty"`
}

func (a *Api) handleGetProgress() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		progress := a.updater.GetDownloadProgress()

		a.jsonResponse(w, &getProgressResponse{
			Active:   progress != nil,
			Progress: progress,
		}, http.StatusOK)
	}
}

func (a *Api) handleInstall() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := installRequest{}

		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil && err != io.EOF {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		result := a.updater.InstallAndRestart(req.DownloadPath)

		a.jsonResponse(w, result, http.StatusOK)
	}
}

func (a *Api) handleSetPreference() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := setPreferenceRequest{}

		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := a.updater.SetInstallPreference(req.InstallOn); err != nil {
			a.jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}

		a.jsonResponse(w, &setPreferenceResponse{Success: true}, http.StatusOK)
	}
}

func (a *Api) handleGetEvents() http.HandlerFunc {
	upgrader := &websocket.Upgrader{}

	return func(w http.ResponseWriter, r *http.Request) {
		client := a.updater.SubscribeEvents()

		defer client.Cancel()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// read pump
		go func() {
			defer c.Close()

			c.SetReadLimit(512)
			c.SetReadDeadline(time.Now().Add(60 * time.Second))
			c.SetPongHandler(func(string) error {
				c.SetReadDeadline(time.Now().Add(60 * time.Second))
				return nil
			})

			for {
				_, _, err := c.ReadMessage()
				if err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						a.log.Errorf("unexpected websocket closure: %v", err)
					}
					break
				}
			}
		}()

		// write pump
		ticker := time.NewTicker(54 * time.Second)
		defer ticker.Stop()
		defer c.Close()

		for {
			select {
			case event, ok := <-client.Events:
				c.SetWriteDeadline(time.Now().Add(10 * time.Second))

				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}

				if err := c.WriteJSON(event); err != nil {
					return
				}
			case <-ticker.C:
				c.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
