package emitter

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/optix-bridge/optix-bridge/internal/annotate"
	"github.com/optix-bridge/optix-bridge/internal/logger"
	"github.com/optix-bridge/optix-bridge/internal/mqtt"
)

const mirrorQueueSize = 64

// MQTTMirror publishes frame records to <topic>/<source_id>. Publishing happens on
// its own goroutine; Emit only enqueues and drops when the queue is full.
type MQTTMirror struct {
	client   mqtt.Client
	topic    string
	timeout  time.Duration
	queue    chan mirrorMessage
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	failures *failureLog
}

type mirrorMessage struct {
	topic   string
	payload []byte
	frameID int64
}

// NewMQTTMirror starts the publishing goroutine. Close stops it.
func NewMQTTMirror(client mqtt.Client, topic string, publishTimeout time.Duration) *MQTTMirror {
	m := &MQTTMirror{
		client:   client,
		topic:    strings.TrimSuffix(topic, "/"),
		timeout:  publishTimeout,
		queue:    make(chan mirrorMessage, mirrorQueueSize),
		done:     make(chan struct{}),
		failures: newFailureLog(GetLogger().Module("mqtt").With(logger.String("topic", topic))),
	}

	m.wg.Add(1)
	go m.run()
	return m
}

// Topic returns the topic a record from source is published to.
func (m *MQTTMirror) Topic(source string) string {
	if source == "" {
		source = UnknownSource
	}
	return m.topic + "/" + source
}

// Emit queues record for publishing. It returns false when the broker is not
// connected or the queue is full.
func (m *MQTTMirror) Emit(_ context.Context, record annotate.FrameRecord) bool {
	if !m.client.IsConnected() {
		m.failures.report("MQTT broker not connected", nil, record.FrameID)
		return false
	}

	payload, err := json.Marshal(record)
	if err != nil {
		m.failures.report("failed to encode frame record", err, record.FrameID)
		return false
	}

	select {
	case <-m.done:
		return false
	default:
	}

	select {
	case m.queue <- mirrorMessage{topic: m.Topic(record.SourceID), payload: payload, frameID: record.FrameID}:
		return true
	default:
		m.failures.report("MQTT mirror queue full, dropping record", nil, record.FrameID)
		return false
	}
}

func (m *MQTTMirror) run() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case msg := <-m.queue:
			m.publish(msg)
		}
	}
}

func (m *MQTTMirror) publish(msg mirrorMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	if err := m.client.Publish(ctx, msg.topic, msg.payload); err != nil {
		m.failures.report("MQTT publish failed", err, msg.frameID)
		return
	}
	m.failures.recovered()
}

// Close stops the publishing goroutine and disconnects the client. Queued records
// that were not yet published are dropped.
func (m *MQTTMirror) Close() error {
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		m.client.Disconnect()
	})
	return nil
}
