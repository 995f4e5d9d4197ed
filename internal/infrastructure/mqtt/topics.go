package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves the prefix empty.
const DefaultTopicPrefix = "hydroponics"

// Topics provides builders for the Hydroponics Core topic hierarchy.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	{prefix}/{username}/systems/{system_id}/measurements   sensors publish readings
//	{prefix}/{username}/systems/{system_id}/latest         core republishes, retained
//	{prefix}/system/status                                 core online/offline, retained
//
// Example:
//
//	topics := mqtt.Topics{Prefix: "hydroponics"}
//	topics.Measurements("alice", 3)
//	// Returns: "hydroponics/alice/systems/3/measurements"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// Measurements returns the topic sensors publish readings of one system to.
//
// Example: hydroponics/alice/systems/3/measurements
func (t Topics) Measurements(username string, systemID int64) string {
	return fmt.Sprintf("%s/%s/systems/%d/measurements", t.prefix(), username, systemID)
}

// Latest returns the retained topic carrying a system's newest measurement.
//
// Example: hydroponics/alice/systems/3/latest
func (t Topics) Latest(username string, systemID int64) string {
	return fmt.Sprintf("%s/%s/systems/%d/latest", t.prefix(), username, systemID)
}

// SystemStatus returns the topic for core online/offline status.
//
// Example: hydroponics/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// AllMeasurements returns the wildcard subscription for every sensor reading.
//
// Example: hydroponics/+/systems/+/measurements
func (t Topics) AllMeasurements() string {
	return t.prefix() + "/+/systems/+/measurements"
}

// ParseMeasurements splits a measurement topic into the username and
// system id it names. Anything else yields ErrUnexpectedTopic.
func (t Topics) ParseMeasurements(topic string) (username string, systemID int64, err error) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/")
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrUnexpectedTopic, topic)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 4 || parts[0] == "" || parts[1] != "systems" || parts[3] != "measurements" {
		return "", 0, fmt.Errorf("%w: %q", ErrUnexpectedTopic, topic)
	}

	systemID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil || systemID < 1 {
		return "", 0, fmt.Errorf("%w: system id %q in %q", ErrUnexpectedTopic, parts[2], topic)
	}
	return parts[0], systemID, nil
}
