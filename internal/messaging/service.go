package messaging

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

const (
	maxContentLength      = 2048
	defaultMaxThreadDepth = 64
)

var tracer = otel.Tracer("messaging-service/messaging")

// EventSink receives events after the write that produced them commits.
type EventSink interface {
	Emit(ctx context.Context, event models.Event)
}

type noopSink struct{}

func (noopSink) Emit(context.Context, models.Event) {}

// Service implements the messaging operations on top of a Store. Every
// operation takes the acting identity and applies the access rules itself.
type Service struct {
	store          repositories.Store
	events         EventSink
	logger         *zap.Logger
	now            func() time.Time
	hashPassword   func(string) (string, error)
	maxThreadDepth int
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMaxThreadDepth bounds thread materialization.
func WithMaxThreadDepth(depth int) Option {
	return func(s *Service) {
		if depth > 0 {
			s.maxThreadDepth = depth
		}
	}
}

// WithPasswordHasher overrides password hashing.
func WithPasswordHasher(hash func(string) (string, error)) Option {
	return func(s *Service) { s.hashPassword = hash }
}

// NewService constructs a Service. events and logger may be nil.
func NewService(store repositories.Store, events EventSink, logger *zap.Logger, opts ...Option) *Service {
	if events == nil {
		events = noopSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:          store,
		events:         events,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		hashPassword:   auth.HashPassword,
		maxThreadDepth: defaultMaxThreadDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) emit(ctx context.Context, event models.Event) {
	event.OccurredAt = s.now()
	s.events.Emit(ctx, event)
}
