// Package relay fans realtime events out across nodes through Redis
// pub/sub.
//
// Every node publishes its newFeed events to one Redis channel and
// subscribes to it. Received envelopes are delivered into the node's local
// rooms, including the node's own publications, so with the relay enabled
// Redis is the only delivery path. If a publish fails the event is
// delivered locally so subscribers on this node still see it.
package relay
