package consumer

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"example.com/stepcount/internal/domain"
	"example.com/stepcount/internal/events"
)

// Publisher receives step counts replayed from the event stream.
type Publisher interface {
	Publish(ctx context.Context, sc domain.StepCount) error
}

// MirrorHandler forwards stepcount.recorded events to a Publisher, typically the Firebase sink.
// Other event types are acknowledged and ignored.
type MirrorHandler struct {
	publisher Publisher
}

// NewMirrorHandler constructs a MirrorHandler.
func NewMirrorHandler(p Publisher) *MirrorHandler {
	return &MirrorHandler{publisher: p}
}

// Handle decodes the payload and publishes it.
func (h *MirrorHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != events.StepCountRecordedType {
		return nil
	}

	var event events.StepCountRecorded
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode %s: %w", msg.EventType, err)
	}
	return h.publisher.Publish(ctx, domain.StepCount{ID: event.ID, Count: event.Count})
}
