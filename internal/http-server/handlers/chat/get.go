package chat

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"BotFlow/impl/core"
	"BotFlow/internal/lib/api/response"
	"BotFlow/internal/lib/sl"
)

const defaultDiagnosticsLimit = 50

func GetSession(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		logger := log.With(
			sl.Module("http.handlers.chat"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("session_id", sessionID),
		)

		session, err := handler.GetSession(r.Context(), sessionID)
		if errors.Is(err, core.ErrSessionNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Session not found"))
			return
		}
		if err != nil {
			logger.Error("get session", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to load session"))
			return
		}

		render.JSON(w, r, response.Ok(session))
	}
}

func ListDiagnostics(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := chi.URLParam(r, "session_id")
		logger := log.With(
			sl.Module("http.handlers.chat"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("session_id", sessionID),
		)

		limit := int64(defaultDiagnosticsLimit)
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n <= 0 {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("Invalid limit"))
				return
			}
			limit = n
		}

		list, err := handler.ListDiagnostics(r.Context(), sessionID, limit)
		if err != nil {
			logger.Error("list diagnostics", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to list diagnostics"))
			return
		}

		render.JSON(w, r, response.Ok(list))
	}
}
