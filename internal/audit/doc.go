// Package audit records who changed what through the API and the MQTT
// ingest path, and lets each user read back their own trail.
//
// Writes from request handlers go through a Recorder, which queues entries
// on a bounded channel and persists them from a single goroutine so a slow
// disk never holds up a request. A full queue drops the entry with a warning.
package audit
