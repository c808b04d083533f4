package whatsapp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"BotFlow/bot/whatsapp/socket"
	"BotFlow/internal/lib/api/response"
	"BotFlow/internal/lib/sl"
	"BotFlow/internal/lib/validate"
)

type OpenRequest struct {
	OwnerID string `json:"owner_id" validate:"required"`
}

func (o *OpenRequest) Bind(_ *http.Request) error {
	return validate.Struct(o)
}

// Open starts a new pairing; the QR code and readiness arrive on the
// operator websocket as whatsapp_status events.
func Open(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.whatsapp"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req OpenRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Debug("decode open request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("owner_id is required"))
			return
		}

		info, err := handler.OpenConnection(r.Context(), req.OwnerID)
		if err != nil {
			logger.Error("open connection", sl.Err(err), slog.String("owner_id", req.OwnerID))
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error("Failed to open connection"))
			return
		}

		logger.Info("connection opened", slog.String("client_id", info.ClientID))
		render.JSON(w, r, response.Ok(info))
	}
}

func List(_ *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := handler.ListConnections()
		if list == nil {
			list = []socket.ConnectionInfo{}
		}
		render.JSON(w, r, response.Ok(list))
	}
}

func Close(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := chi.URLParam(r, "client_id")
		logger := log.With(
			sl.Module("http.handlers.whatsapp"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("client_id", clientID),
		)

		if _, err := socket.ParseConnectionKey(clientID); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid client id"))
			return
		}

		err := handler.CloseConnection(clientID)
		if errors.Is(err, socket.ErrConnectionNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("Connection not found"))
			return
		}
		if err != nil {
			logger.Error("close connection", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("Failed to close connection"))
			return
		}

		render.JSON(w, r, response.Ok("closed"))
	}
}

// Reattach re-dials an existing pairing after a restart or disconnect.
func Reattach(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := chi.URLParam(r, "client_id")
		logger := log.With(
			sl.Module("http.handlers.whatsapp"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("client_id", clientID),
		)

		if _, err := socket.ParseConnectionKey(clientID); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid client id"))
			return
		}

		if err := handler.ReattachConnection(r.Context(), clientID); err != nil {
			logger.Error("reattach connection", sl.Err(err))
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, response.Error("Failed to attach connection"))
			return
		}

		render.JSON(w, r, response.Ok("attached"))
	}
}
