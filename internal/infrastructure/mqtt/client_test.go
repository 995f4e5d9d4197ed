package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/hydroponics-core/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "hydrocore-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "hydroponics",
	}
}

// ─── Topics ───

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"measurements", Topics{Prefix: "hydroponics"}.Measurements("alice", 3), "hydroponics/alice/systems/3/measurements"},
		{"latest", Topics{Prefix: "hydroponics"}.Latest("alice", 3), "hydroponics/alice/systems/3/latest"},
		{"status", Topics{Prefix: "hydroponics"}.SystemStatus(), "hydroponics/system/status"},
		{"wildcard", Topics{Prefix: "hydroponics"}.AllMeasurements(), "hydroponics/+/systems/+/measurements"},
		{"default prefix", Topics{}.Measurements("bob", 12), "hydroponics/bob/systems/12/measurements"},
		{"custom prefix trailing slash", Topics{Prefix: "farm/"}.SystemStatus(), "farm/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("topic = %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseMeasurements(t *testing.T) {
	topics := Topics{Prefix: "hydroponics"}

	tests := []struct {
		name     string
		topic    string
		wantUser string
		wantID   int64
		wantErr  bool
	}{
		{"valid", "hydroponics/alice/systems/3/measurements", "alice", 3, false},
		{"roundtrip", topics.Measurements("bob.smith", 42), "bob.smith", 42, false},
		{"wrong prefix", "greenhouse/alice/systems/3/measurements", "", 0, true},
		{"latest topic", "hydroponics/alice/systems/3/latest", "", 0, true},
		{"missing user", "hydroponics//systems/3/measurements", "", 0, true},
		{"non-int id", "hydroponics/alice/systems/abc/measurements", "", 0, true},
		{"zero id", "hydroponics/alice/systems/0/measurements", "", 0, true},
		{"too deep", "hydroponics/alice/systems/3/measurements/extra", "", 0, true},
		{"status topic", "hydroponics/system/status", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, id, err := topics.ParseMeasurements(tt.topic)
			if tt.wantErr {
				if !errors.Is(err, ErrUnexpectedTopic) {
					t.Errorf("ParseMeasurements(%q) error = %v, want ErrUnexpectedTopic", tt.topic, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMeasurements(%q) error = %v", tt.topic, err)
			}
			if user != tt.wantUser || id != tt.wantID {
				t.Errorf("ParseMeasurements(%q) = (%q, %d), want (%q, %d)", tt.topic, user, id, tt.wantUser, tt.wantID)
			}
		})
	}
}

// ─── Options ───

func TestBuildClientOptions(t *testing.T) {
	t.Run("plain tcp without auth", func(t *testing.T) {
		opts := buildClientOptions(testConfig())

		if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
			t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
		}
		if opts.ClientID != "hydrocore-test" {
			t.Errorf("ClientID = %q, want %q", opts.ClientID, "hydrocore-test")
		}
		if opts.Username != "" {
			t.Errorf("Username = %q, want empty", opts.Username)
		}
		if opts.TLSConfig != nil {
			t.Error("TLSConfig set for a plain connection")
		}
		if !opts.AutoReconnect || !opts.CleanSession {
			t.Errorf("AutoReconnect = %v, CleanSession = %v, want both true", opts.AutoReconnect, opts.CleanSession)
		}
	})

	t.Run("tls with auth", func(t *testing.T) {
		cfg := testConfig()
		cfg.Broker.TLS = true
		cfg.Broker.Port = 8883
		cfg.Auth.Username = "sensor"
		cfg.Auth.Password = "sensor-secret"

		opts := buildClientOptions(cfg)

		if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
			t.Errorf("Servers = %v, want [ssl://127.0.0.1:8883]", opts.Servers)
		}
		if opts.Username != "sensor" || opts.Password != "sensor-secret" {
			t.Errorf("credentials = (%q, %q), want (sensor, sensor-secret)", opts.Username, opts.Password)
		}
		if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
			t.Errorf("TLSConfig = %+v, want MinVersion TLS 1.2", opts.TLSConfig)
		}
	})
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, Topics{Prefix: "hydroponics"}, "hydrocore-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "hydroponics/system/status" {
		t.Errorf("WillTopic = %q, want %q", opts.WillTopic, "hydroponics/system/status")
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var payload map[string]string
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["reason"] != "unexpected_disconnect" {
		t.Errorf("will payload = %v, want offline/unexpected_disconnect", payload)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantStatus string
		wantReason string
	}{
		{"online", buildOnlinePayload("core-1"), "online", ""},
		{"offline", buildOfflinePayload("core-1"), "offline", "graceful_shutdown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got map[string]string
			if err := json.Unmarshal([]byte(tt.payload), &got); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if got["status"] != tt.wantStatus {
				t.Errorf("status = %q, want %q", got["status"], tt.wantStatus)
			}
			if got["reason"] != tt.wantReason {
				t.Errorf("reason = %q, want %q", got["reason"], tt.wantReason)
			}
			if got["client_id"] != "core-1" {
				t.Errorf("client_id = %q, want core-1", got["client_id"])
			}
			if got["timestamp"] == "" {
				t.Error("timestamp missing")
			}
		})
	}
}

// ─── Disconnected client ───

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	c := &Client{}
	if c.IsConnected() {
		t.Error("IsConnected() = true on a fresh client")
	}
	if err := c.HealthCheck(t.Context()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"qos too high", "hydroponics/x", []byte("x"), 3, ErrInvalidQoS},
		{"payload too large", "hydroponics/x", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "hydroponics/x", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{}
	noop := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, noop, ErrInvalidTopic},
		{"qos too high", "hydroponics/#", 3, noop, ErrInvalidQoS},
		{"nil handler", "hydroponics/#", 1, nil, ErrSubscribeFailed},
		{"not connected", "hydroponics/#", 1, noop, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
}

// ─── Handler wrapping ───

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestWrapHandler(t *testing.T) {
	msg := fakeMessage{topic: "hydroponics/alice/systems/1/measurements", payload: []byte(`{"ph":6.5}`)}

	t.Run("delivers topic and payload", func(t *testing.T) {
		c := &Client{}
		var gotTopic, gotPayload string
		c.wrapHandler(func(topic string, payload []byte) error {
			gotTopic, gotPayload = topic, string(payload)
			return nil
		})(nil, msg)

		if gotTopic != msg.topic || gotPayload != `{"ph":6.5}` {
			t.Errorf("handler got (%q, %q), want (%q, %q)", gotTopic, gotPayload, msg.topic, `{"ph":6.5}`)
		}
	})

	t.Run("handler error is logged as warning", func(t *testing.T) {
		c := &Client{}
		logger := &mockLogger{}
		c.SetLogger(logger)

		c.wrapHandler(func(string, []byte) error {
			return errors.New("bad reading")
		})(nil, msg)

		if len(logger.warns) != 1 {
			t.Errorf("warns = %v, want one entry", logger.warns)
		}
	})

	t.Run("panic is recovered and logged", func(t *testing.T) {
		c := &Client{}
		logger := &mockLogger{}
		c.SetLogger(logger)

		c.wrapHandler(func(string, []byte) error {
			panic("boom")
		})(nil, msg)

		if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
			t.Errorf("errors = %v, want one panic entry", logger.errors)
		}
	})

	t.Run("no logger is fine", func(t *testing.T) {
		c := &Client{}
		c.wrapHandler(func(string, []byte) error {
			panic("boom")
		})(nil, msg)
	})
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	errors []string
	warns  []string
	mu     sync.Mutex
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}
