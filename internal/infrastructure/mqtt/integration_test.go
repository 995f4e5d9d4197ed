//go:build integration

package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/hydroponics-core/internal/infrastructure/config"
)

// Integration tests against a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -count=1 -v ./internal/infrastructure/mqtt/...

func integrationConfig(clientID string) config.MQTTConfig {
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	cfg.TopicPrefix = "hydroponics-int"
	return cfg
}

func connectOrFail(t *testing.T, clientID string) *Client {
	t.Helper()
	client, err := Connect(integrationConfig(clientID))
	if err != nil {
		t.Fatalf("Connect(%s) error = %v", clientID, err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_ConnectAndHealth(t *testing.T) {
	client := connectOrFail(t, "hydrocore-int-health")

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
	if err := client.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// TestIntegration_SubscriptionTracking verifies the bookkeeping used to
// restore subscriptions after a reconnect.
func TestIntegration_SubscriptionTracking(t *testing.T) {
	client := connectOrFail(t, "hydrocore-int-sub-track")
	topics := client.Topics()

	subs := []string{
		topics.Measurements("alice", 1),
		topics.Measurements("alice", 2),
		topics.AllMeasurements(),
	}
	handler := func(string, []byte) error { return nil }

	for _, topic := range subs {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != len(subs) {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(subs))
	}

	if err := client.Unsubscribe(subs[0]); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(subs[0]) {
		t.Errorf("HasSubscription(%s) = true after unsubscribe", subs[0])
	}
	if client.SubscriptionCount() != len(subs)-1 {
		t.Errorf("SubscriptionCount() = %d, want %d", client.SubscriptionCount(), len(subs)-1)
	}
}

func TestIntegration_WildcardMeasurementRoundtrip(t *testing.T) {
	pub := connectOrFail(t, "hydrocore-int-pub")
	sub := connectOrFail(t, "hydrocore-int-sub")

	type delivery struct {
		username string
		systemID int64
		payload  string
	}
	received := make(chan delivery, 1)
	var once sync.Once

	err := sub.Subscribe(sub.Topics().AllMeasurements(), 1, func(topic string, payload []byte) error {
		username, id, err := sub.Topics().ParseMeasurements(topic)
		if err != nil {
			return err
		}
		once.Do(func() { received <- delivery{username, id, string(payload)} })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	want := `{"ph":6.4,"temperature":21.5,"tds":800}`
	if err := pub.PublishString(pub.Topics().Measurements("alice", 7), want, 1, false); err != nil {
		t.Fatalf("PublishString() error = %v", err)
	}

	select {
	case got := <-received:
		if got.username != "alice" || got.systemID != 7 || got.payload != want {
			t.Errorf("received = %+v, want alice/7/%s", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for measurement")
	}
}

func TestIntegration_RetainedLatest(t *testing.T) {
	pub := connectOrFail(t, "hydrocore-int-retain-pub")
	topic := pub.Topics().Latest("alice", 9)
	payload := []byte(`{"id":1,"ph":6.1}`)

	if err := pub.PublishRetained(topic, payload); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	// A subscriber arriving later still sees the retained reading.
	late := connectOrFail(t, "hydrocore-int-retain-sub")
	received := make(chan string, 1)
	var once sync.Once
	err := late.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case got := <-received:
		if got != string(payload) {
			t.Errorf("retained payload = %q, want %q", got, payload)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for retained message")
	}

	// Clear the retained message so reruns start clean.
	pub.PublishRetained(topic, nil) //nolint:errcheck // best-effort cleanup
}

func TestIntegration_CloseThenPublish(t *testing.T) {
	client, err := Connect(integrationConfig("hydrocore-int-close"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err = client.PublishString(client.Topics().SystemStatus(), "x", 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestIntegration_LoggerSet(t *testing.T) {
	client := connectOrFail(t, "hydrocore-int-logger")

	client.SetLogger(&mockLogger{})
	if client.getLogger() == nil {
		t.Error("getLogger() = nil after SetLogger()")
	}
	client.SetLogger(nil)
	if client.getLogger() != nil {
		t.Error("getLogger() should be nil after SetLogger(nil)")
	}
}
