package functions

import (
	"log/slog"

	"github.com/ggoodman/appfunctions-go/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// Option customizes a Service.
type Option func(*Service)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithStorage sets the backend used to persist enabled-state overrides. The
// default is an in-memory store that never evicts, so overrides last until
// the service is closed. A bounded store drops its least recently used
// overrides, which then fall back to EnabledByDefault.
func WithStorage(st storage.Storage) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithMetricsRegisterer enables execution metrics on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(s *Service) {
		s.reg = reg
	}
}
