// Package influxdb mirrors readings into InfluxDB v2 for long-term
// time-series storage.
//
// Writes go through the non-blocking batched write API of
// influxdb-client-go, sized by batch_size and flush_interval in the
// config. Points are written at millisecond precision and carry a
// source=sensorhub tag next to channel_id. Write failures surface asynchronously through SetOnError and
// never reach the ingestion path.
package influxdb
