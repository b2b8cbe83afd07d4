package service

import (
    "context"
    "strings"

    "github.com/google/uuid"

    "github.com/seojunpark/carpool-backend/internal/model"
)

// pageBefore limits: a zero or negative limit falls back to the default,
// anything above the cap is clamped.
const (
    defaultPageSize = 30
    maxPageSize     = 100
)

// MessageStore is the persistence seam for the chat ledger.
type MessageStore interface {
    // Insert stores the message and populates its sequential ID.
    Insert(ctx context.Context, m *model.Message) error
    // PageBefore returns up to limit messages of the room with id strictly
    // smaller than beforeID, newest first.  beforeID == 0 means "from the
    // latest".
    PageBefore(ctx context.Context, roomID, beforeID uint64, limit int) ([]model.Message, error)
    // ResolveToken maps a public token to its numeric id within the room.
    // ok is false when the token does not resolve there.
    ResolveToken(ctx context.Context, roomID uint64, token string) (id uint64, ok bool, err error)
    // Last returns the highest-id message of the room, or nil when the
    // room has no messages.
    Last(ctx context.Context, roomID uint64) (*model.Message, error)
    ByToken(ctx context.Context, token string) (*model.Message, error)
    SetContent(ctx context.Context, id uint64, content string) error
    MarkDeleted(ctx context.Context, id uint64) error
    Delete(ctx context.Context, id uint64) error
}

// ReadPointerStore persists a member's last-read position.  Implemented by
// the membership repository.
type ReadPointerStore interface {
    SetLastRead(ctx context.Context, roomID, userID uint64, token string) error
}

// ChatService is the append-only message ledger.  It is consumed by the
// room and settlement engines (system messages), by the chat endpoints
// (user messages, pagination) and by the presence registry (read-position
// save on disconnect).
type ChatService struct {
    msgs  MessageStore
    reads ReadPointerStore
    names NicknameLookup
}

func NewChatService(msgs MessageStore, reads ReadPointerStore, names NicknameLookup) *ChatService {
    return &ChatService{msgs: msgs, reads: reads, names: names}
}

// AppendUser stores a chat message sent by a room member.  The sender's
// nickname is snapshotted onto the row so later nickname changes do not
// rewrite history.
func (s *ChatService) AppendUser(ctx context.Context, roomID, senderID uint64, text string) (*model.Message, error) {
    text = strings.TrimSpace(text)
    if text == "" {
        return nil, ErrValidation
    }
    nick, err := s.names.Nickname(ctx, senderID)
    if err != nil {
        return nil, err
    }
    m := &model.Message{
        PublicID:       uuid.NewString(),
        RoomID:         roomID,
        SenderID:       &senderID,
        SenderNickname: &nick,
        Type:           model.MessageText,
        Content:        text,
    }
    if err := s.msgs.Insert(ctx, m); err != nil {
        return nil, err
    }
    return m, nil
}

// AppendSystem stores a server-generated message narrating a lifecycle or
// settlement change.  System messages have no sender.
func (s *ChatService) AppendSystem(ctx context.Context, roomID uint64, text string) (*model.Message, error) {
    m := &model.Message{
        PublicID: uuid.NewString(),
        RoomID:   roomID,
        Type:     model.MessageSystem,
        Content:  text,
    }
    if err := s.msgs.Insert(ctx, m); err != nil {
        return nil, err
    }
    return m, nil
}

// PageBefore returns a reverse-cursor page of the room's messages.  An
// empty beforeToken starts from the newest message.  A token that does not
// resolve (stale client cursor) yields an empty page, not an error.
func (s *ChatService) PageBefore(ctx context.Context, roomID uint64, beforeToken string, limit int) ([]model.Message, error) {
    if limit <= 0 {
        limit = defaultPageSize
    }
    if limit > maxPageSize {
        limit = maxPageSize
    }
    var beforeID uint64
    if beforeToken != "" {
        id, ok, err := s.msgs.ResolveToken(ctx, roomID, beforeToken)
        if err != nil {
            return nil, err
        }
        if !ok {
            return []model.Message{}, nil
        }
        beforeID = id
    }
    return s.msgs.PageBefore(ctx, roomID, beforeID, limit)
}

// LastMessage returns the room's newest message, or nil when the ledger is
// empty for that room.
func (s *ChatService) LastMessage(ctx context.Context, roomID uint64) (*model.Message, error) {
    return s.msgs.Last(ctx, roomID)
}

// SaveReadPosition moves the member's last-read pointer to the room's
// newest message.  A room without messages is a no-op.
func (s *ChatService) SaveReadPosition(ctx context.Context, roomID, userID uint64) error {
    last, err := s.msgs.Last(ctx, roomID)
    if err != nil {
        return err
    }
    if last == nil {
        return nil
    }
    return s.reads.SetLastRead(ctx, roomID, userID, last.PublicID)
}

// Edit replaces the content of the caller's own message and marks it
// edited.  System and deleted messages cannot be edited.
func (s *ChatService) Edit(ctx context.Context, token string, callerID uint64, text string) (*model.Message, error) {
    text = strings.TrimSpace(text)
    if text == "" {
        return nil, ErrValidation
    }
    m, err := s.msgs.ByToken(ctx, token)
    if err != nil {
        return nil, err
    }
    if m.SenderID == nil || *m.SenderID != callerID {
        return nil, ErrForbidden
    }
    if m.Deleted {
        return nil, ErrInvalidState
    }
    if err := s.msgs.SetContent(ctx, m.ID, text); err != nil {
        return nil, err
    }
    m.Content = text
    m.Edited = true
    return m, nil
}

// SoftDelete hides the caller's own message.  The row is retained; only
// administrators can remove it physically.
func (s *ChatService) SoftDelete(ctx context.Context, token string, callerID uint64) (*model.Message, error) {
    m, err := s.msgs.ByToken(ctx, token)
    if err != nil {
        return nil, err
    }
    if m.SenderID == nil || *m.SenderID != callerID {
        return nil, ErrForbidden
    }
    if m.Deleted {
        return m, nil
    }
    if err := s.msgs.MarkDeleted(ctx, m.ID); err != nil {
        return nil, err
    }
    m.Deleted = true
    return m, nil
}

// HardDelete removes a message row outright.  Role enforcement happens at
// the handler; the ledger only performs the deletion.
func (s *ChatService) HardDelete(ctx context.Context, token string) (*model.Message, error) {
    m, err := s.msgs.ByToken(ctx, token)
    if err != nil {
        return nil, err
    }
    if err := s.msgs.Delete(ctx, m.ID); err != nil {
        return nil, err
    }
    m.Deleted = true
    return m, nil
}
