package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/kdimtricp/repcoach/internal/emitter"
	"github.com/kdimtricp/repcoach/internal/models"
	"github.com/kdimtricp/repcoach/internal/pose"
	"github.com/kdimtricp/repcoach/internal/storage"
	"github.com/kdimtricp/repcoach/internal/workout"
)

// History is the read side of the workout set store.
type History interface {
	ListSets(ctx context.Context, limit int) ([]*models.WorkoutSet, error)
	ListSetsBySession(ctx context.Context, sessionID string) ([]*models.WorkoutSet, error)
	Totals(ctx context.Context) ([]models.ModeTotal, error)
}

// PoseMonitor reports the health of the pose worker.
type PoseMonitor interface {
	ID() string
	Metrics() pose.WorkerMetrics
}

type poseStatus struct {
	ID string
	pose.WorkerMetrics
}

type App struct {
	Sessions     *workout.Service
	History      History
	Storage      storage.Storage
	Emitter      *emitter.MQTTEmitter
	Pose         PoseMonitor
	MaxFrameSize int64
	TemplateDir  string
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func (app *App) HomeHandler(w http.ResponseWriter, r *http.Request) {
	dir := app.TemplateDir
	if dir == "" {
		dir = filepath.Join("web", "templates")
	}
	tmpl, err := template.ParseFiles(filepath.Join(dir, "index.html"))
	if err != nil {
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}

	data := struct {
		Title    string
		Sessions []workout.Info
		Totals   []models.ModeTotal
		MQTT     *emitter.Stats
		Pose     *poseStatus
	}{
		Title:    "RepCoach",
		Sessions: app.Sessions.ListSessions(),
	}

	if app.History != nil {
		totals, err := app.History.Totals(r.Context())
		if err != nil {
			slog.Error("failed to load totals", "error", err)
		}
		data.Totals = totals
	}
	if app.Emitter != nil {
		stats := app.Emitter.Stats()
		data.MQTT = &stats
	}
	if app.Pose != nil {
		data.Pose = &poseStatus{ID: app.Pose.ID(), WorkerMetrics: app.Pose.Metrics()}
	}

	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		return
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// sessionError maps service errors to a response.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workout.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, workout.ErrInvalidMode):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("session request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
