package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/hydroponics-core/internal/audit"
	"github.com/nerrad567/hydroponics-core/internal/auth"
	"github.com/nerrad567/hydroponics-core/internal/hydro"
	"github.com/nerrad567/hydroponics-core/internal/infrastructure/mqtt"
)

// defaultHandleTimeout bounds the lookup and write for one message.
const defaultHandleTimeout = 5 * time.Second

// Errors returned by HandleMessage.
var (
	// ErrUnknownUser means the topic names a username with no account.
	ErrUnknownUser = errors.New("unknown user in topic")

	// ErrInvalidPayload means the message body is not a reading object.
	ErrInvalidPayload = errors.New("invalid reading payload")
)

// Logger is the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// UserLookup resolves a topic's username. auth.UserRepository satisfies it.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*auth.User, error)
}

// MeasurementRecorder records a reading on behalf of a principal.
// *hydro.Service satisfies it.
type MeasurementRecorder interface {
	CreateMeasurement(ctx context.Context, p hydro.Principal, d hydro.MeasurementDraft) (*hydro.Measurement, error)
}

// Subscriber is the part of the MQTT client Handler needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// reading is the sensor payload. A system id in the body is ignored; the
// topic decides which system a reading belongs to.
type reading struct {
	PH          *float64 `json:"ph"`
	Temperature *float64 `json:"temperature"`
	TDS         *float64 `json:"tds"`
}

// Handler records sensor readings received over MQTT.
type Handler struct {
	users        UserLookup
	measurements MeasurementRecorder
	topics       mqtt.Topics
	timeout      time.Duration
	logger       Logger
}

// NewHandler creates a handler for the measurement topics under topics.
func NewHandler(users UserLookup, measurements MeasurementRecorder, topics mqtt.Topics) *Handler {
	return &Handler{
		users:        users,
		measurements: measurements,
		topics:       topics,
		timeout:      defaultHandleTimeout,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	h.logger = logger
}

// Start subscribes to every measurement topic with the given QoS.
func (h *Handler) Start(sub Subscriber, qos byte) error {
	topic := h.topics.AllMeasurements()
	if err := sub.Subscribe(topic, qos, h.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	h.logger.Info("mqtt ingestion started", "topic", topic)
	return nil
}

// Stop removes the subscription made by Start.
func (h *Handler) Stop(sub Subscriber) error {
	return sub.Unsubscribe(h.topics.AllMeasurements())
}

// HandleMessage records one reading. It matches mqtt.MessageHandler; a
// returned error is logged by the client and the message is dropped.
func (h *Handler) HandleMessage(topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	ctx = audit.ContextWithSource(ctx, audit.SourceMQTT)

	username, systemID, err := h.topics.ParseMeasurements(topic)
	if err != nil {
		return err
	}

	var r reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	user, err := h.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return fmt.Errorf("%w: %q", ErrUnknownUser, username)
		}
		return fmt.Errorf("looking up %q: %w", username, err)
	}
	if !user.IsActive {
		return fmt.Errorf("%w: %q", auth.ErrUserInactive, username)
	}

	m, err := h.measurements.CreateMeasurement(ctx, user.Principal(), hydro.MeasurementDraft{
		System:      &systemID,
		PH:          r.PH,
		Temperature: r.Temperature,
		TDS:         r.TDS,
	})
	if err != nil {
		return fmt.Errorf("recording reading from %s: %w", topic, err)
	}

	h.logger.Debug("reading ingested",
		"username", username,
		"system_id", systemID,
		"measurement_id", m.ID,
	)
	return nil
}
