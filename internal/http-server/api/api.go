package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"BotFlow/internal/config"
	"BotFlow/internal/http-server/handlers/chat"
	"BotFlow/internal/http-server/handlers/errors"
	"BotFlow/internal/http-server/handlers/key"
	"BotFlow/internal/http-server/handlers/whatsapp"
	"BotFlow/internal/http-server/middleware/authenticate"
	"BotFlow/internal/http-server/middleware/timeout"
	"BotFlow/internal/lib/sl"
	"BotFlow/internal/ws"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	ws.Authenticator
	chat.Core
	whatsapp.Core
	key.Core
}

// NewRouter builds the API routes. The operator websocket sits outside the
// bearer-token group because browsers pass the key as a query parameter.
func NewRouter(log *slog.Logger, handler Handler, hub *ws.Hub) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	if hub != nil {
		router.Get("/ws", ws.Serve(log, hub, handler))
	}

	router.Group(func(r chi.Router) {
		r.Use(timeout.Timeout(30))
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(authenticate.New(log, handler))

		r.Route("/api/v1", func(v1 chi.Router) {
			v1.Route("/chat/{session_id}", func(r chi.Router) {
				r.Get("/", chat.GetSession(log, handler))
				r.Post("/reply", chat.Reply(log, handler))
				r.Get("/diagnostics", chat.ListDiagnostics(log, handler))
			})
			v1.Route("/whatsapp/connections", func(r chi.Router) {
				r.Post("/", whatsapp.Open(log, handler))
				r.Get("/", whatsapp.List(log, handler))
				r.Delete("/{client_id}", whatsapp.Close(log, handler))
				r.Post("/{client_id}/attach", whatsapp.Reattach(log, handler))
			})
			v1.Route("/key", func(r chi.Router) {
				r.Use(authenticate.RequireAdmin)
				r.Post("/new", key.Generate(log, handler))
			})
		})
	})

	return router
}

func New(conf *config.Config, log *slog.Logger, handler Handler, hub *ws.Hub) *Server {
	server := &Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:  NewRouter(log, handler, hub),
		ErrorLog: httpLog,
	}
	return server
}

// Start blocks until the server stops; a graceful Shutdown returns nil.
func (s *Server) Start() error {
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Listen.BindIP, s.conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	s.log.Info("starting api server", slog.String("address", serverAddress))

	err = s.httpServer.Serve(listener)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
