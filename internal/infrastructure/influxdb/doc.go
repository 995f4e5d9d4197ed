// Package influxdb mirrors recorded hydroponic measurements into InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every measurement
// the service stores, whether it arrived over HTTP or MQTT, becomes one
// point:
//
//	hydroponic_measurement,system_id=3,owner_id=<uuid> ph=6.2,temperature=21.5,tds=850 <timestamp>
//
// Only readings that are present become fields. SQLite stays the system of
// record; the mirror exists for long-range charts and Flux queries.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "hydroponics",
//	    Bucket:  "measurements",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	service.AddSink(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback (SetOnError). Connection and health check errors are returned
// directly.
package influxdb
