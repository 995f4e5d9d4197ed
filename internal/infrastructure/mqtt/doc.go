// Package mqtt provides MQTT client connectivity for Hydroponics Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - The measurement topic hierarchy
//
// # Architecture
//
// Sensors publish readings for a system to a per-user topic. The ingest
// package subscribes to every such topic and records the readings through
// the same service the HTTP API uses, then republishes the stored
// measurement as the system's retained latest reading.
//
//	Sensors → MQTT Broker → Core → MQTT Broker (latest, retained)
//
// # Security Considerations
//
//   - TLS should be enabled for deployments beyond a trusted LAN (cfg.Broker.TLS=true)
//   - The username in a topic is checked against the owner of the system it names,
//     so a sensor can only write to a system of the account its topic carries
//   - Broker ACLs should restrict each sensor to its own user's subtree
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllMeasurements(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
