package activity

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"librarydesk/internal/web"
)

type Handler struct {
	log    *Log
	logger *slog.Logger
}

func NewHandler(log *Log, logger *slog.Logger) *Handler {
	return &Handler{log: log, logger: logger}
}

// Routes mounts GET /activity.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/activity", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.log.List(r.Context(), limit)
	if err != nil {
		web.ServerError(w, r, h.logger, err)
		return
	}

	web.JSON(w, http.StatusOK, entries)
}
