package ingest

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/hydroponics-core/internal/hydro"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/mqtt"
)

// DefaultQueueSize is the LatestPublisher buffer used when none is given.
const DefaultQueueSize = 128

// Publisher is the part of the MQTT client LatestPublisher needs.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

type latestReading struct {
	topic string
	m     hydro.Measurement
}

// LatestPublisher republishes recorded measurements as retained messages.
// It implements hydro.MeasurementSink; publishing happens on the Run
// goroutine so a slow broker never holds up a write.
type LatestPublisher struct {
	pub    Publisher
	topics mqtt.Topics
	queue  chan latestReading
	logger Logger
}

// NewLatestPublisher creates a publisher with room for size pending readings.
func NewLatestPublisher(pub Publisher, topics mqtt.Topics, size int) *LatestPublisher {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &LatestPublisher{
		pub:    pub,
		topics: topics,
		queue:  make(chan latestReading, size),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the publisher.
func (l *LatestPublisher) SetLogger(logger Logger) {
	l.logger = logger
}

// MeasurementRecorded queues m for publication under its owner's topic.
// A full queue drops the reading.
func (l *LatestPublisher) MeasurementRecorded(_ context.Context, owner hydro.Principal, m hydro.Measurement) error {
	select {
	case l.queue <- latestReading{topic: l.topics.Latest(owner.Username, m.SystemID), m: m}:
	default:
		l.logger.Warn("latest reading queue full, dropping", "system_id", m.SystemID)
	}
	return nil
}

// Run publishes queued readings until ctx is cancelled.
func (l *LatestPublisher) Run(ctx context.Context) {
	for {
		select {
		case r := <-l.queue:
			l.publish(r)
		case <-ctx.Done():
			return
		}
	}
}

func (l *LatestPublisher) publish(r latestReading) {
	payload, err := json.Marshal(r.m)
	if err != nil {
		l.logger.Error("encoding latest reading", "system_id", r.m.SystemID, "error", err)
		return
	}
	if err := l.pub.PublishRetained(r.topic, payload); err != nil {
		l.logger.Warn("publishing latest reading failed", "topic", r.topic, "error", err)
	}
}
