package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var errUnauthorized = errors.New("unauthorized")

func LoggingMiddleware(next http.Handler) http.Handler {
	logger := zap.L()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		next.ServeHTTP(w, r)
		logger.Info(r.RequestURI, zap.String("method", r.Method), zap.Duration("took", time.Since(start)))
	})
}

func (s *server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	if len(s.secret) == 0 {
		return next
	}
	keyFunc := func(*jwt.Token) (any, error) {
		return s.secret, nil
	}
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			handleError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		token, err := jwt.Parse(raw, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !token.Valid {
			s.logger.Warn("rejected token", zap.Error(err), zap.String("path", r.URL.Path))
			handleError(w, http.StatusUnauthorized, errUnauthorized)
			return
		}
		next(w, r)
	}
}
