// Package queue defines message payloads exchanged over the message
// broker and the background consumer that drains them.
package queue

// PushEvent is published when the notification router has members to
// reach over the asynchronous push channel.  One event batches every
// push-eligible recipient of a single room event; the consumer hands the
// batch to the push provider in one call.
type PushEvent struct {
    UserIDs []uint64          `json:"user_ids"`
    Title   string            `json:"title"`
    Body    string            `json:"body"`
    Data    map[string]string `json:"data,omitempty"`
    SentAt  string            `json:"sent_at"`
}
