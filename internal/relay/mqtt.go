package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/biofleet/biofleet-core/internal/infrastructure/mqtt"
)

// mqttEvent adds the device identifier to the wire payload: MQTT consumers
// subscribe per-device and shouldn't have to parse it out of the topic.
type mqttEvent struct {
	Event
	DeviceID string `json:"deviceId"`
}

// Publisher is the slice of the MQTT client the sink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink delivers events by publishing to a per-device MQTT topic
// under a configured base topic.
type MQTTSink struct {
	pub   Publisher
	topic string
	qos   byte
}

// NewMQTTSink creates a sink publishing through pub at the given QoS.
// Events for a device go to "{topic}/{deviceID}"; an empty topic falls
// back to the canonical attendance hierarchy.
func NewMQTTSink(pub Publisher, topic string, qos byte) *MQTTSink {
	return &MQTTSink{pub: pub, topic: topic, qos: qos}
}

// Deliver implements Sink, publishing on the device's attendance topic.
// Attendance events are never retained.
func (s *MQTTSink) Deliver(ctx context.Context, deviceID string, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(mqttEvent{Event: ev, DeviceID: deviceID})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	topic := s.topic + "/" + deviceID
	if s.topic == "" {
		topic = mqtt.Topics{}.Attendance(deviceID)
	}
	if err := s.pub.Publish(topic, payload, s.qos, false); err != nil {
		return fmt.Errorf("publishing event: %w", err)
	}
	return nil
}
