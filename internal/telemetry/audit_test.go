package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"messaging-service/internal/mocks"
)

func TestAuditEmitterPublishesEnvelope(t *testing.T) {
	pub := new(mocks.PublisherMock)
	emitter := NewAuditEmitter(pub, "audit.messaging", "messaging-service", "test", nil)
	emitter.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	user := "8b0d6c52-6a4c-4c8e-9d7e-3b1f2c0a9e11"

	pub.On("Publish", mock.Anything, "audit.messaging", mock.MatchedBy(func(e AuditEnvelope) bool {
		return e.EventType == "audit_log" &&
			e.SchemaVersion == 1 &&
			e.OccurredAt == "2024-05-01T10:00:00Z" &&
			e.RequestID == "req-9" &&
			e.UserID != nil && *e.UserID == user &&
			e.Payload == AuditPayload{Level: "WARN", Text: "user deleted"}
	})).Return(nil).Once()

	emitter.Emit(context.Background(), "WARN", "user deleted", "req-9", &user)
	pub.AssertExpectations(t)
}

func TestAuditEmitterSwallowsPublishErrors(t *testing.T) {
	pub := new(mocks.PublisherMock)
	pub.On("Publish", mock.Anything, "audit.messaging", mock.Anything).Return(assert.AnError).Once()

	NewAuditEmitter(pub, "audit.messaging", "svc", "test", nil).Emit(context.Background(), "INFO", "x", "", nil)
	pub.AssertExpectations(t)
}

func TestNilAuditEmitterIsSafe(t *testing.T) {
	var emitter *AuditEmitter
	assert.NotPanics(t, func() { emitter.Emit(context.Background(), "INFO", "x", "", nil) })
}
