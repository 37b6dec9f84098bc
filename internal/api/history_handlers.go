package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kdimtricp/repcoach/internal/export"
	"github.com/kdimtricp/repcoach/internal/models"
)

type historyResponse struct {
	Sets   []*models.WorkoutSet `json:"sets"`
	Totals []models.ModeTotal   `json:"totals"`
}

// HistoryHandler lists recorded sets, newest first, or the sets of one
// session with ?session=<id>.
func (app *App) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var (
		sets []*models.WorkoutSet
		err  error
	)
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		sets, err = app.History.ListSetsBySession(r.Context(), sessionID)
	} else {
		sets, err = app.History.ListSets(r.Context(), limit)
	}
	if err != nil {
		slog.Error("failed to list sets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	totals, err := app.History.Totals(r.Context())
	if err != nil {
		slog.Error("failed to load totals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	if sets == nil {
		sets = []*models.WorkoutSet{}
	}
	if totals == nil {
		totals = []models.ModeTotal{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Sets: sets, Totals: totals})
}

func (app *App) ExportHandler(w http.ResponseWriter, r *http.Request) {
	if app.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history is not configured")
		return
	}

	sets, err := app.History.ListSets(r.Context(), 0)
	if err != nil {
		slog.Error("failed to list sets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	totals, err := app.History.Totals(r.Context())
	if err != nil {
		slog.Error("failed to load totals", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	filename := "repcoach-" + time.Now().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.WriteWorkbook(w, sets, totals); err != nil {
		slog.Error("failed to write workbook", "error", err)
	}
}
