// Package realtime fans new readings out to live subscribers.
//
// Each channel has one room. A connection joins rooms after the transport
// has authorised it, and leaves all of them when it closes. Publishing
// snapshots the room and queues the encoded event on every member without
// blocking: a member whose buffer is full misses the event. Nothing is
// replayed to late joiners.
package realtime
