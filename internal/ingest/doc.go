// Package ingest connects MQTT sensors to the hydroponics service.
//
// Sensors publish a reading as JSON to
//
//	{prefix}/{username}/systems/{system_id}/measurements
//
// Handler resolves the username to an account and records the reading
// through hydro.Service on that account's behalf, so ownership and range
// checks are the same as for the HTTP API. A reading naming a system the
// account does not own is rejected and logged; nothing is written.
//
// LatestPublisher is a hydro.MeasurementSink that republishes every
// recorded measurement, from either channel, as the retained
//
//	{prefix}/{username}/systems/{system_id}/latest
//
// message so dashboards see the newest reading as soon as they subscribe.
package ingest
