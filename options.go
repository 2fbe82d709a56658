package queueservice

import (
	"log/slog"
	"time"

	"github.com/bikramjeet/queue-service/codec"
	"github.com/bikramjeet/queue-service/middleware"
	"github.com/bikramjeet/queue-service/throttle"
)

// Option configures a Service.
type Option func(*Service) error

// WithLogger sets the structured logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = l
		return nil
	}
}

// WithCodec sets the codec used to encode non-byte insert payloads.
// The default is JSON.
func WithCodec(c codec.Codec) Option {
	return func(s *Service) error {
		s.codec = c
		return nil
	}
}

// WithThrottle applies per-backend rate limits and concurrency caps to
// dispatch legs. Throttled legs block for capacity; they do not fail.
func WithThrottle(m *throttle.Manager) Option {
	return func(s *Service) error {
		s.limits = m
		return nil
	}
}

// WithMiddleware appends middleware after the default chain
// (recover → tracing → metrics → logging → timeout).
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Service) error {
		s.extraMws = append(s.extraMws, mws...)
		return nil
	}
}

// WithTimeout bounds every dispatch operation. Zero disables the
// deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) error {
		s.timeout = d
		return nil
	}
}
