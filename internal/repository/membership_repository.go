package repository

import (
    "context"
    "database/sql"

    "github.com/seojunpark/carpool-backend/internal/model"
)

// MembershipRepo provides CRUD operations for room memberships.  One row
// exists per (room, user) pair; leave and kick are status transitions,
// not deletions, so the row carries the member's history.  Only kick
// cancellation removes rows.
type MembershipRepo struct {
    db *sql.DB
}

// NewMembershipRepo returns a new MembershipRepo bound to the given database.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

const membershipColumns = `room_id, user_id, status, paid, muted, kick_reason, last_read_token, created_at, updated_at`

func scanMembership(row interface{ Scan(...any) error }) (*model.Membership, error) {
    var (
        m        model.Membership
        reason   sql.NullString
        lastRead sql.NullString
    )
    err := row.Scan(&m.RoomID, &m.UserID, &m.Status, &m.Paid, &m.Muted, &reason, &lastRead, &m.CreatedAt, &m.UpdatedAt)
    if err != nil {
        return nil, err
    }
    if reason.Valid {
        v := reason.String
        m.KickReason = &v
    }
    if lastRead.Valid {
        v := lastRead.String
        m.LastReadToken = &v
    }
    return &m, nil
}

// Get loads one membership row.  Returns sql.ErrNoRows when absent.
func (r *MembershipRepo) Get(ctx context.Context, roomID, userID uint64) (*model.Membership, error) {
    const q = `SELECT ` + membershipColumns + ` FROM room_members WHERE room_id = ? AND user_id = ?`
    return scanMembership(r.db.QueryRowContext(ctx, q, roomID, userID))
}

// GetTx is Get inside a transaction.
func (r *MembershipRepo) GetTx(ctx context.Context, tx *sql.Tx, roomID, userID uint64) (*model.Membership, error) {
    const q = `SELECT ` + membershipColumns + ` FROM room_members WHERE room_id = ? AND user_id = ?`
    return scanMembership(tx.QueryRowContext(ctx, q, roomID, userID))
}

// CreateTx inserts a fresh membership row within the transaction.
func (r *MembershipRepo) CreateTx(ctx context.Context, tx *sql.Tx, m *model.Membership) error {
    const q = `INSERT INTO room_members (room_id, user_id, status, paid, muted) VALUES (?, ?, ?, ?, ?)`
    _, err := tx.ExecContext(ctx, q, m.RoomID, m.UserID, m.Status, m.Paid, m.Muted)
    return err
}

// SetStatusTx transitions the membership status.  The kick reason is set
// on KICKED and cleared on any other status.
func (r *MembershipRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, roomID, userID uint64, st model.MembershipStatus, kickReason *string) error {
    const q = `UPDATE room_members SET status = ?, kick_reason = ? WHERE room_id = ? AND user_id = ?`
    _, err := tx.ExecContext(ctx, q, st, kickReason, roomID, userID)
    return err
}

// DeleteTx removes the membership row outright.  Used only by kick
// cancellation, which intentionally erases the member's history.
func (r *MembershipRepo) DeleteTx(ctx context.Context, tx *sql.Tx, roomID, userID uint64) error {
    _, err := tx.ExecContext(ctx, `DELETE FROM room_members WHERE room_id = ? AND user_id = ?`, roomID, userID)
    return err
}

// CountJoinedTx counts JOINED rows inside the transaction.  This is the
// source of truth for the room's participant counter.
func (r *MembershipRepo) CountJoinedTx(ctx context.Context, tx *sql.Tx, roomID uint64) (int, error) {
    var n int
    err := tx.QueryRowContext(ctx,
        `SELECT COUNT(*) FROM room_members WHERE room_id = ? AND status = ?`,
        roomID, model.MemberJoined).Scan(&n)
    return n, err
}

// EarliestJoinedExceptTx returns the user id of the oldest JOINED
// membership other than exclude.  Ordering by created_at then user_id
// makes the delegation pick deterministic.  Returns sql.ErrNoRows when
// no other JOINED member exists.
func (r *MembershipRepo) EarliestJoinedExceptTx(ctx context.Context, tx *sql.Tx, roomID, exclude uint64) (uint64, error) {
    const q = `SELECT user_id FROM room_members
        WHERE room_id = ? AND status = ? AND user_id <> ?
        ORDER BY created_at ASC, user_id ASC LIMIT 1`
    var userID uint64
    err := tx.QueryRowContext(ctx, q, roomID, model.MemberJoined, exclude).Scan(&userID)
    return userID, err
}

// ListJoined returns the JOINED roster of the room, oldest member first.
func (r *MembershipRepo) ListJoined(ctx context.Context, roomID uint64) ([]model.Membership, error) {
    const q = `SELECT ` + membershipColumns + ` FROM room_members
        WHERE room_id = ? AND status = ? ORDER BY created_at ASC, user_id ASC`
    rows, err := r.db.QueryContext(ctx, q, roomID, model.MemberJoined)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]model.Membership, 0)
    for rows.Next() {
        m, err := scanMembership(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *m)
    }
    return out, rows.Err()
}

// SetPaidTx writes one member's paid flag.
func (r *MembershipRepo) SetPaidTx(ctx context.Context, tx *sql.Tx, roomID, userID uint64, paid bool) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE room_members SET paid = ? WHERE room_id = ? AND user_id = ?`,
        paid, roomID, userID)
    return err
}

// ResetPaidTx clears every member's paid flag for a new settlement cycle.
func (r *MembershipRepo) ResetPaidTx(ctx context.Context, tx *sql.Tx, roomID uint64) error {
    _, err := tx.ExecContext(ctx, `UPDATE room_members SET paid = FALSE WHERE room_id = ?`, roomID)
    return err
}

// ResetPaidExceptTx clears every paid flag except the given user's,
// reflecting that changed amounts invalidate earlier payments.
func (r *MembershipRepo) ResetPaidExceptTx(ctx context.Context, tx *sql.Tx, roomID, exclude uint64) error {
    _, err := tx.ExecContext(ctx,
        `UPDATE room_members SET paid = FALSE WHERE room_id = ? AND user_id <> ?`,
        roomID, exclude)
    return err
}

// SetMuted flips the member's mute flag.  Runs outside any transaction;
// the flag is independent of the lifecycle invariants.
func (r *MembershipRepo) SetMuted(ctx context.Context, roomID, userID uint64, muted bool) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE room_members SET muted = ? WHERE room_id = ? AND user_id = ?`,
        muted, roomID, userID)
    return err
}

// SetLastRead moves the member's last-read pointer to the given message
// token.
func (r *MembershipRepo) SetLastRead(ctx context.Context, roomID, userID uint64, token string) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE room_members SET last_read_token = ? WHERE room_id = ? AND user_id = ?`,
        token, roomID, userID)
    return err
}
