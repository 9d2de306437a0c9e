package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/usecase"
)

// statsHandler serves user and token totals.
func statsHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		totals, err := statsUC.Totals(r.Context())
		if err != nil {
			http.Error(w, "Failed to get totals", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, totals)
	}
}

func usageHandler(statsUC usecase.StatsUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID, err := strconv.ParseInt(chi.URLParam(r, "tgID"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid telegram id", http.StatusBadRequest)
			return
		}
		usage, err := statsUC.UsageFor(r.Context(), tgID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
			return
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Invalid telegram id", http.StatusBadRequest)
			return
		case err != nil:
			http.Error(w, "Failed to get usage", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, usage)
	}
}

// warningLogHandler returns the warning log as plain text, 204 when empty.
func warningLogHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			http.Error(w, "Failed to read log", http.StatusInternalServerError)
			return
		}
		if len(data) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
