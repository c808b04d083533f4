package authenticate

import (
	"BotFlow/entity"
	"BotFlow/internal/lib/api/cont"
	"BotFlow/internal/lib/api/response"
	"BotFlow/internal/lib/sl"
	"errors"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var (
	errNoHeader = errors.New("authorization header not found")
	errNoToken  = errors.New("bearer token not found")
)

type Authenticate interface {
	AuthenticateByToken(token string) (*entity.UserAuth, error)
}

// New resolves the bearer token to a user, stores it in the request context
// and writes one access log line per request.
func New(log *slog.Logger, auth Authenticate) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			logger := log.With(
				mod,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", remoteAddr(r)),
				slog.String("request_id", id),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			started := time.Now()
			defer func() {
				level := slog.LevelInfo
				if ww.Status() >= http.StatusBadRequest {
					level = slog.LevelWarn
				}
				logger.Log(r.Context(), level, "incoming request",
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(started).Seconds()),
				)
			}()

			token, err := bearerToken(r)
			if err != nil {
				logger = logger.With(sl.Err(err))
				deny(ww, r, http.StatusUnauthorized, "Unauthorized: "+err.Error())
				return
			}
			logger = logger.With(sl.Secret("token", token))

			if auth == nil {
				deny(ww, r, http.StatusUnauthorized, "Unauthorized: authentication not enabled")
				return
			}
			user, err := auth.AuthenticateByToken(token)
			if err != nil {
				logger = logger.With(sl.Err(err))
				deny(ww, r, http.StatusUnauthorized, "Unauthorized: invalid token")
				return
			}
			logger = logger.With(slog.String("user", user.Username))

			ww.Header().Set("X-Request-ID", id)
			ww.Header().Set("X-User", user.Username)
			next.ServeHTTP(ww, r.WithContext(cont.PutUser(r.Context(), user)))
		}
		return http.HandlerFunc(fn)
	}
}

// RequireAdmin lets through only requests authenticated with the master key.
// It must run after New.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := cont.GetUser(r.Context())
		if err != nil || !user.Admin {
			deny(w, r, http.StatusForbidden, "Forbidden: admin key required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errNoHeader
	}
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errNoToken
	}
	token := strings.TrimSpace(value)
	if token == "" {
		return "", errNoToken
	}
	return token, nil
}

// remoteAddr prefers the first X-Forwarded-For hop when behind a proxy.
func remoteAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

func deny(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, response.Error(message))
}
