package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/repcoach/internal/exercise"
	"github.com/kdimtricp/repcoach/internal/pipeline"
	"github.com/kdimtricp/repcoach/internal/pose"
	"github.com/kdimtricp/repcoach/internal/storage"
	"github.com/kdimtricp/repcoach/internal/workout"
)

const defaultMaxFrameSize = 5 << 20

type landmarksRequest struct {
	Landmarks *pose.Landmarks `json:"landmarks"`
}

type frameResult struct {
	State      exercise.State `json:"state"`
	Angle      float64        `json:"angle"`
	Sag        float64        `json:"sag"`
	Feedback   string         `json:"feedback"`
	RepCounted bool           `json:"rep_counted"`
	Skipped    bool           `json:"skipped"`
}

func newFrameResult(st exercise.State, out pipeline.Output) frameResult {
	return frameResult{
		State:      st,
		Angle:      out.Angle,
		Sag:        out.Sag,
		Feedback:   out.Feedback,
		RepCounted: out.RepCounted,
		Skipped:    out.Skipped,
	}
}

func (app *App) maxFrameSize() int64 {
	if app.MaxFrameSize > 0 {
		return app.MaxFrameSize
	}
	return defaultMaxFrameSize
}

// LandmarksHandler accepts a pose estimated on the client. A null or missing
// landmarks field means no person was detected.
func (app *App) LandmarksHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.maxFrameSize())

	var req landmarksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid landmarks: "+err.Error())
		return
	}

	st, out, err := app.Sessions.ProcessLandmarks(r.Context(), chi.URLParam(r, "id"), req.Landmarks)
	if err != nil {
		sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newFrameResult(st, out))
}

// FrameHandler runs one camera frame through the server-side estimator and
// returns the annotated image. Counter state travels in X-* headers.
func (app *App) FrameHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, app.maxFrameSize())
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read frame")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty frame")
		return
	}

	frame := pose.Frame{Timestamp: time.Now(), Data: data}
	if seq := r.Header.Get("X-Frame-Seq"); seq != "" {
		if frame.Seq, err = strconv.ParseUint(seq, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid X-Frame-Seq")
			return
		}
	}

	st, out, err := app.Sessions.ProcessFrame(r.Context(), id, frame)
	switch {
	case err == nil:
	case errors.Is(err, workout.ErrSessionNotFound):
		sessionError(w, err)
		return
	case errors.Is(err, pipeline.ErrNoEstimator):
		writeError(w, http.StatusServiceUnavailable, "pose estimation is not configured")
		return
	case errors.Is(err, pipeline.ErrInvalidFrame):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	default:
		slog.Warn("frame processing failed", "session", id, "seq", frame.Seq, "error", err)
		writeError(w, http.StatusBadGateway, "pose estimation failed")
		return
	}

	h := w.Header()
	h.Set("Content-Type", http.DetectContentType(out.JPEG))
	h.Set("X-Rep-Count", strconv.Itoa(st.Count))
	h.Set("X-Stage", st.Stage.String())
	h.Set("X-Feedback", out.Feedback)
	h.Set("X-Annotated", strconv.FormatBool(out.Annotated))

	if r.URL.Query().Get("snapshot") == "1" && app.Storage != nil {
		name, err := app.Storage.SaveFile(bytes.NewReader(out.JPEG), storage.FileInfo{
			Prefix:      id,
			ContentType: h.Get("Content-Type"),
		})
		if err != nil {
			slog.Error("failed to save snapshot", "session", id, "error", err)
		} else {
			h.Set("X-Snapshot", name)
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write(out.JPEG)
}

func (app *App) SnapshotHandler(w http.ResponseWriter, r *http.Request) {
	if app.Storage == nil {
		writeError(w, http.StatusNotFound, "snapshots disabled")
		return
	}

	name := chi.URLParam(r, "name")
	file, err := app.Storage.OpenFile(name)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid snapshot name")
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "snapshot not found")
		return
	default:
		slog.Error("failed to open snapshot", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer file.Close()

	http.ServeContent(w, r, name, time.Time{}, file)
}
