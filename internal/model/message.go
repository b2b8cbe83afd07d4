package model

import "time"

// MessageType distinguishes human chat messages from system messages
// generated by lifecycle and settlement operations.
type MessageType string

const (
    MessageText   MessageType = "TEXT"
    MessageSystem MessageType = "SYSTEM"
)

// Message mirrors the `messages` table.  IDs are sequential and monotonic
// within the table; PublicID is the opaque token clients use as a
// pagination cursor and edit/delete handle.  The ledger is append-only
// apart from edit (content mutation, Edited set) and soft delete (Deleted
// set); physical deletion is reserved for administrators.
type Message struct {
    ID             uint64      // messages.id, pagination order
    PublicID       string      // messages.public_id, uuid
    RoomID         uint64      // messages.room_id
    SenderID       *uint64     // messages.sender_id, null for system messages
    SenderNickname *string     // messages.sender_nickname, snapshot at send time
    Type           MessageType // messages.type
    Content        string      // messages.content
    Edited         bool        // messages.edited
    Deleted        bool        // messages.deleted
    CreatedAt      time.Time   // messages.created_at
    UpdatedAt      time.Time   // messages.updated_at
}

// System reports whether the message was generated by the server rather
// than a room member.
func (m *Message) System() bool { return m.SenderID == nil }
