package chat

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"BotFlow/internal/lib/api/response"
	"BotFlow/internal/lib/sl"
	"BotFlow/internal/service/lanes"
)

// ReplyRequest carries the user reply. An absent message continues the
// flow without input.
type ReplyRequest struct {
	Message *string `json:"message,omitempty"`
}

func (r *ReplyRequest) Bind(_ *http.Request) error {
	return nil
}

func Reply(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mod := sl.Module("http.handlers.chat")
		sessionID := chi.URLParam(r, "session_id")

		logger := log.With(
			mod,
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("session_id", sessionID),
		)

		var req ReplyRequest
		if r.ContentLength != 0 {
			if err := render.Bind(r, &req); err != nil {
				logger.Debug("decode reply", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error("Invalid request body"))
				return
			}
		}

		err := handler.HandleReply(sessionID, req.Message)
		if err != nil {
			status := http.StatusBadRequest
			switch {
			case errors.Is(err, lanes.ErrLaneFull):
				status = http.StatusTooManyRequests
			case errors.Is(err, lanes.ErrStopped):
				status = http.StatusServiceUnavailable
			}
			logger.Warn("reply rejected", sl.Err(err))
			render.Status(r, status)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, response.Ok("accepted"))
	}
}
