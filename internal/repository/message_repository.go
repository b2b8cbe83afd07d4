package repository

import (
    "context"
    "database/sql"

    "github.com/seojunpark/carpool-backend/internal/model"
)

// MessageRepo provides the append-only message store.  Rows are ordered
// by the auto-increment id; the public_id column carries the opaque token
// clients use for pagination cursors and edit/delete handles.
type MessageRepo struct {
    db *sql.DB
}

// NewMessageRepo returns a new MessageRepo bound to the given database.
func NewMessageRepo(db *sql.DB) *MessageRepo { return &MessageRepo{db: db} }

const messageColumns = `id, public_id, room_id, sender_id, sender_nickname, type, content, edited, deleted, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
    var (
        m      model.Message
        sender sql.NullInt64
        nick   sql.NullString
    )
    err := row.Scan(&m.ID, &m.PublicID, &m.RoomID, &sender, &nick, &m.Type, &m.Content,
        &m.Edited, &m.Deleted, &m.CreatedAt, &m.UpdatedAt)
    if err != nil {
        return nil, err
    }
    if sender.Valid {
        v := uint64(sender.Int64)
        m.SenderID = &v
    }
    if nick.Valid {
        v := nick.String
        m.SenderNickname = &v
    }
    return &m, nil
}

// Insert appends a message and populates its sequential id and
// timestamps.
func (r *MessageRepo) Insert(ctx context.Context, m *model.Message) error {
    const q = `INSERT INTO messages (public_id, room_id, sender_id, sender_nickname, type, content)
        VALUES (?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, m.PublicID, m.RoomID, m.SenderID, m.SenderNickname, m.Type, m.Content)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    m.ID = uint64(id)
    const sel = `SELECT created_at, updated_at FROM messages WHERE id = ?`
    return r.db.QueryRowContext(ctx, sel, m.ID).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// PageBefore returns up to limit messages of the room with id strictly
// smaller than beforeID, newest first.  beforeID == 0 starts from the
// latest message.
func (r *MessageRepo) PageBefore(ctx context.Context, roomID, beforeID uint64, limit int) ([]model.Message, error) {
    q := `SELECT ` + messageColumns + ` FROM messages WHERE room_id = ?`
    args := []any{roomID}
    if beforeID > 0 {
        q += ` AND id < ?`
        args = append(args, beforeID)
    }
    q += ` ORDER BY id DESC LIMIT ?`
    args = append(args, limit)

    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]model.Message, 0, limit)
    for rows.Next() {
        m, err := scanMessage(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *m)
    }
    return out, rows.Err()
}

// ResolveToken maps a public token to its numeric id within the room.
// A token from another room (or a deleted-then-purged one) does not
// resolve; ok is false and err is nil so pagination can fall back to an
// empty page instead of failing on stale cursors.
func (r *MessageRepo) ResolveToken(ctx context.Context, roomID uint64, token string) (uint64, bool, error) {
    var id uint64
    err := r.db.QueryRowContext(ctx,
        `SELECT id FROM messages WHERE room_id = ? AND public_id = ?`,
        roomID, token).Scan(&id)
    if err == sql.ErrNoRows {
        return 0, false, nil
    }
    if err != nil {
        return 0, false, err
    }
    return id, true, nil
}

// Last returns the highest-id message of the room, or nil when the room
// has no messages yet.
func (r *MessageRepo) Last(ctx context.Context, roomID uint64) (*model.Message, error) {
    const q = `SELECT ` + messageColumns + ` FROM messages WHERE room_id = ? ORDER BY id DESC LIMIT 1`
    m, err := scanMessage(r.db.QueryRowContext(ctx, q, roomID))
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return m, nil
}

// ByToken loads a message by its public token regardless of room.
// Returns sql.ErrNoRows when the token does not resolve.
func (r *MessageRepo) ByToken(ctx context.Context, token string) (*model.Message, error) {
    const q = `SELECT ` + messageColumns + ` FROM messages WHERE public_id = ?`
    return scanMessage(r.db.QueryRowContext(ctx, q, token))
}

// SetContent replaces the message body and marks it edited.
func (r *MessageRepo) SetContent(ctx context.Context, id uint64, content string) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE messages SET content = ?, edited = TRUE WHERE id = ?`, content, id)
    return err
}

// MarkDeleted soft-deletes the message; the row survives.
func (r *MessageRepo) MarkDeleted(ctx context.Context, id uint64) error {
    _, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted = TRUE WHERE id = ?`, id)
    return err
}

// Delete removes the row physically.  Admin-only at the handler layer.
func (r *MessageRepo) Delete(ctx context.Context, id uint64) error {
    _, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
    return err
}
