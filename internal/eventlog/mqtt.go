package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/gray-logic-basestation/internal/infrastructure/mqtt"
)

// Publisher is the part of the MQTT client used by MQTTPublisher.
type Publisher interface {
	PublishAsync(topic string, payload []byte) error
}

// MQTTPublisher publishes each event as JSON to
// graylogic/basestation/event/{device_id}. It does not wait for the broker.
type MQTTPublisher struct {
	client Publisher
	runID  string
}

// NewMQTTPublisher returns a sink publishing through client. The client is
// not closed by the sink.
func NewMQTTPublisher(client Publisher, runID string) *MQTTPublisher {
	return &MQTTPublisher{client: client, runID: runID}
}

// InsertEvent queues the event for publishing.
func (p *MQTTPublisher) InsertEvent(_ context.Context, e Event) error {
	payload, err := json.Marshal(newRecord(e, p.runID))
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := p.client.PublishAsync(mqtt.Topics{}.DeviceEvent(e.DeviceID), payload); err != nil {
		return fmt.Errorf("publishing event for device %d: %w", e.DeviceID, err)
	}
	return nil
}

// Close is a no-op.
func (p *MQTTPublisher) Close() error {
	return nil
}
