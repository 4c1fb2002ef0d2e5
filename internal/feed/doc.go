// Package feed ingests, stores and lists sensor readings.
//
// Ingestion has two admission paths: a device presenting the channel's
// write key, or the authenticated channel owner. Admitted readings are
// persisted with a per-channel sequence number, reloaded with their channel
// (key material stripped), then handed to the realtime broadcaster and any
// mirror sinks. Delivery is best effort: a reading that was stored is a
// successful ingestion even if no subscriber received it.
package feed
