// Package audit records who changed which channel and when.
//
// Channel and key operations report events to a Recorder, which queues
// them and writes them to the audit_logs table from a single goroutine.
// Recording never blocks the operation that produced the event: when the
// queue is full the event is dropped and logged.
package audit
