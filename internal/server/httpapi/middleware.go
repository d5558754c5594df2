package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/models"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey struct{}

var currentUserKey ctxKey

// UserResolver maps a bearer token (possibly empty) to a user.
type UserResolver interface {
	Resolve(ctx context.Context, token string) (models.CurrentUser, error)
}

// accessLog logs one line per request after it completes.
func accessLog(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// authenticate resolves the current user from the Authorization header and
// stores it in the request context. A missing header means the default user.
func authenticate(users UserResolver, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r.Header.Get(common.AuthorizationHeaderName))
			if err != nil {
				writeError(r.Context(), w, log, err)
				return
			}

			cu, err := users.Resolve(r.Context(), token)
			if err != nil {
				writeError(r.Context(), w, log, err)
				return
			}

			ctx := context.WithValue(r.Context(), currentUserKey, cu)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", nil
	}
	if len(header) < len(common.BearerPrefix) || !strings.EqualFold(header[:len(common.BearerPrefix)], common.BearerPrefix) {
		return "", common.ErrorUnauthorized
	}
	token := strings.TrimSpace(header[len(common.BearerPrefix):])
	if token == "" {
		return "", common.ErrorUnauthorized
	}
	return token, nil
}

// currentUser returns the user stored by authenticate.
func currentUser(r *http.Request) models.CurrentUser {
	cu, _ := r.Context().Value(currentUserKey).(models.CurrentUser)
	return cu
}
