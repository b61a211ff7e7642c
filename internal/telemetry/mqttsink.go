// MQTT event mirroring: an optional dc.Listener that republishes the
// produced download-progress event stream over MQTT, topic per event kind,
// for a host UI to subscribe to instead of polling.
package telemetry

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/soypat/natiu-mqtt"

	"github.com/libdivecomputer/godivecomputer/dc"
)

// MQTTSink implements dc.Listener by publishing each event as a JSON
// payload under topicPrefix. Messages are published with a zero header: the
// retain flag is not set.
type MQTTSink struct {
	client      *mqtt.Client
	topicPrefix string
}

// NewMQTTSink wraps an already-connected client. Establishing the
// connection (network dial, CONNECT handshake) is the caller's
// responsibility — this type only publishes.
func NewMQTTSink(client *mqtt.Client, topicPrefix string) *MQTTSink {
	return &MQTTSink{client: client, topicPrefix: topicPrefix}
}

var _ dc.Listener = (*MQTTSink)(nil)

func (s *MQTTSink) publish(subtopic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		return
	}
	varPub := mqtt.VariablesPublish{
		TopicName: []byte(fmt.Sprintf("%s/%s", s.topicPrefix, subtopic)),
	}
	_ = s.client.PublishPayload(mqtt.Header{}, varPub, payload)
}

func (s *MQTTSink) OnWaiting() { s.publish("waiting", struct{}{}) }

func (s *MQTTSink) OnProgress(p dc.Progress) { s.publish("progress", p) }

func (s *MQTTSink) OnDeviceInfo(d dc.DeviceInfo) { s.publish("device_info", d) }

func (s *MQTTSink) OnClock(c dc.ClockEvent) { s.publish("clock", c) }

func (s *MQTTSink) OnVendor(b []byte) { s.publish("vendor", b) }
