package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/repcoach/internal/exercise"
	"github.com/kdimtricp/repcoach/internal/workout"
)

type createSessionRequest struct {
	Mode    string `json:"mode"`
	Running bool   `json:"running"`
}

type updateSessionRequest struct {
	Mode    *string `json:"mode"`
	Running *bool   `json:"running"`
}

func (app *App) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	mode := exercise.Squat
	if req.Mode != "" {
		m, err := exercise.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		mode = m
	}

	session, err := app.Sessions.StartSession(r.Context(), mode)
	if err != nil {
		sessionError(w, err)
		return
	}
	if req.Running {
		if _, err := app.Sessions.SetRunning(session.ID, true); err != nil {
			sessionError(w, err)
			return
		}
	}

	info, err := app.Sessions.Snapshot(session.ID)
	if err != nil {
		sessionError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/sessions/%s", session.ID))
	writeJSON(w, http.StatusCreated, info)
}

func (app *App) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Sessions.ListSessions())
}

func (app *App) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	info, err := app.Sessions.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// UpdateSessionHandler changes mode and/or running. A mode change is applied
// first so "switch and start" is a single request.
func (app *App) UpdateSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Mode != nil {
		mode, err := exercise.ParseMode(*req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := app.Sessions.SetMode(r.Context(), id, mode); err != nil {
			sessionError(w, err)
			return
		}
	}
	if req.Running != nil {
		if _, err := app.Sessions.SetRunning(id, *req.Running); err != nil {
			sessionError(w, err)
			return
		}
	}

	info, err := app.Sessions.Snapshot(id)
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (app *App) ResetSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := app.Sessions.Reset(r.Context(), id); err != nil {
		sessionError(w, err)
		return
	}

	info, err := app.Sessions.Snapshot(id)
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (app *App) EndSessionHandler(w http.ResponseWriter, r *http.Request) {
	info, err := app.Sessions.EndSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// EventsHandler streams session updates as server-sent events until the
// session ends or the client goes away.
func (app *App) EventsHandler(w http.ResponseWriter, r *http.Request) {
	session, exists := app.Sessions.GetSession(chi.URLParam(r, "id"))
	if !exists {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if info, err := app.Sessions.Snapshot(session.ID); err == nil {
		writeEvent(w, workout.UpdateState, info.State)
		flusher.Flush()
	}

	clientGone := r.Context().Done()

	for {
		select {
		case update, ok := <-session.Updates:
			if !ok {
				fmt.Fprint(w, "event: end\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			writeEvent(w, update.Type, update.Data)
			flusher.Flush()

		case <-clientGone:
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
