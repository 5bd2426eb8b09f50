package server

import "net/http"

// Option configures the server.
type Option func(*server)

// WithStore serves stored values under /api/latest.
func WithStore(st store) Option {
	return func(s *server) {
		s.store = st
	}
}

func WithMetrics(h http.Handler) Option {
	return func(s *server) {
		s.metrics = h
	}
}

// WithJWTSecret guards write endpoints with HS256 bearer tokens signed by
// secret. An empty secret leaves them open.
func WithJWTSecret(secret string) Option {
	return func(s *server) {
		s.secret = []byte(secret)
	}
}
