package key

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"BotFlow/internal/lib/api/response"
	"BotFlow/internal/lib/sl"
	"BotFlow/internal/lib/validate"
)

type Core interface {
	GenerateApiKey(username string) (string, error)
}

type Request struct {
	Username string `json:"username" validate:"required"`
}

func (k *Request) Bind(_ *http.Request) error {
	return validate.Struct(k)
}

func Generate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.key"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request
		if err := render.Bind(r, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("username is required"))
			return
		}

		apiKey, err := handler.GenerateApiKey(req.Username)
		if err != nil {
			logger.Error("generate api key", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to generate key"))
			return
		}

		logger.Info("api key generated", slog.String("username", req.Username))
		render.JSON(w, r, response.Ok(map[string]string{"key": apiKey}))
	}
}
