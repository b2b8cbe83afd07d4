package service

import "github.com/seojunpark/carpool-backend/internal/model"

// messagePayload is the wire shape of a ledger message inside event
// envelopes and chat responses.  Deleted messages keep their token and
// metadata but carry no content.
func messagePayload(m *model.Message) map[string]any {
    p := map[string]any{
        "token":      m.PublicID,
        "room_id":    m.RoomID,
        "type":       m.Type,
        "edited":     m.Edited,
        "deleted":    m.Deleted,
        "created_at": m.CreatedAt,
    }
    if !m.Deleted {
        p["content"] = m.Content
    }
    if m.SenderID != nil {
        p["sender_id"] = *m.SenderID
    }
    if m.SenderNickname != nil {
        p["sender_nickname"] = *m.SenderNickname
    }
    return p
}

// MessagePayload exposes the wire shape to the handler layer.
func MessagePayload(m *model.Message) map[string]any { return messagePayload(m) }
