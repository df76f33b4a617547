package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Publisher is the subset of the AMQP publisher used for operational events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

type requestIDKey struct{}

// WithRequestID stores the request id on ctx so publishers can forward it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TraceIDFromContext returns the active trace id or "".
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// HeadersFromContext builds message headers from the request id and trace
// carried by ctx.
func HeadersFromContext(ctx context.Context) map[string]string {
	return BuildHeaders(RequestIDFromContext(ctx), TraceIDFromContext(ctx))
}

var defaultPublisher Publisher

func SetPublisher(publisher Publisher) {
	defaultPublisher = publisher
}

// PublishEvent sends an operational event through the default publisher.
// It is a no-op until SetPublisher is called.
func PublishEvent(ctx context.Context, routingKey string, message interface{}) error {
	if defaultPublisher == nil {
		return nil
	}

	err := defaultPublisher.Publish(ctx, routingKey, message)
	if err != nil {
		IncAMQPPublishError()
	}
	return err
}
