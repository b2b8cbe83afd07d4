package repository

import (
    "context"
    "database/sql"

    "github.com/seojunpark/carpool-backend/internal/model"
    "github.com/seojunpark/carpool-backend/internal/service"
)

// Store adapts the room and membership repositories to the service
// layer's Store/Tx interfaces.  It owns transaction lifecycles
// (begin / rollback-unless-committed / commit) and translates
// sql.ErrNoRows into the service sentinels so the engines never see
// driver-level errors for missing rows.
type Store struct {
    db      *sql.DB
    rooms   *RoomRepo
    members *MembershipRepo
}

// NewStore wires the adapter over the shared database handle.
func NewStore(db *sql.DB, rooms *RoomRepo, members *MembershipRepo) *Store {
    return &Store{db: db, rooms: rooms, members: members}
}

// RunTx runs fn inside one transaction.  Any error from fn (or from the
// commit itself) rolls everything back and is returned unchanged.
func (s *Store) RunTx(ctx context.Context, fn func(tx service.Tx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(&storeTx{tx: tx, s: s}); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

func (s *Store) Room(ctx context.Context, roomID uint64) (*model.Room, error) {
    r, err := s.rooms.GetByID(ctx, roomID)
    if err == sql.ErrNoRows {
        return nil, service.ErrRoomNotFound
    }
    return r, err
}

func (s *Store) Membership(ctx context.Context, roomID, userID uint64) (*model.Membership, error) {
    m, err := s.members.Get(ctx, roomID, userID)
    if err == sql.ErrNoRows {
        return nil, service.ErrMembershipNotFound
    }
    return m, err
}

func (s *Store) JoinedMembers(ctx context.Context, roomID uint64) ([]model.Membership, error) {
    return s.members.ListJoined(ctx, roomID)
}

func (s *Store) ListRooms(ctx context.Context, f service.RoomFilter) ([]model.Room, error) {
    return s.rooms.List(ctx, f)
}

func (s *Store) SetMuted(ctx context.Context, roomID, userID uint64, muted bool) error {
    return s.members.SetMuted(ctx, roomID, userID, muted)
}

// storeTx is the transaction-scoped view handed to service callbacks.
type storeTx struct {
    tx *sql.Tx
    s  *Store
}

func (t *storeTx) RoomForUpdate(ctx context.Context, roomID uint64) (*model.Room, error) {
    r, err := t.s.rooms.GetForUpdateTx(ctx, t.tx, roomID)
    if err == sql.ErrNoRows {
        return nil, service.ErrRoomNotFound
    }
    return r, err
}

func (t *storeTx) InsertRoom(ctx context.Context, room *model.Room) error {
    return t.s.rooms.CreateTx(ctx, t.tx, room)
}

func (t *storeTx) UpdateRoomFields(ctx context.Context, roomID uint64, patch service.RoomPatch) error {
    return t.s.rooms.UpdateFieldsTx(ctx, t.tx, roomID, patch)
}

func (t *storeTx) SetRoomStatus(ctx context.Context, roomID uint64, st model.RoomStatus) error {
    return t.s.rooms.SetStatusTx(ctx, t.tx, roomID, st)
}

func (t *storeTx) SetRoomOwner(ctx context.Context, roomID, ownerID uint64) error {
    return t.s.rooms.SetOwnerTx(ctx, t.tx, roomID, ownerID)
}

func (t *storeTx) SetRoomSettlement(ctx context.Context, roomID uint64, f service.SettlementFields) error {
    return t.s.rooms.SetSettlementTx(ctx, t.tx, roomID, f)
}

func (t *storeTx) ClearRoomSettlement(ctx context.Context, roomID uint64) error {
    return t.s.rooms.ClearSettlementTx(ctx, t.tx, roomID)
}

func (t *storeTx) SetParticipantCount(ctx context.Context, roomID uint64, n int) error {
    return t.s.rooms.SetParticipantCountTx(ctx, t.tx, roomID, n)
}

func (t *storeTx) Membership(ctx context.Context, roomID, userID uint64) (*model.Membership, error) {
    m, err := t.s.members.GetTx(ctx, t.tx, roomID, userID)
    if err == sql.ErrNoRows {
        return nil, service.ErrMembershipNotFound
    }
    return m, err
}

func (t *storeTx) InsertMembership(ctx context.Context, m *model.Membership) error {
    return t.s.members.CreateTx(ctx, t.tx, m)
}

func (t *storeTx) SetMembershipStatus(ctx context.Context, roomID, userID uint64, st model.MembershipStatus, kickReason *string) error {
    return t.s.members.SetStatusTx(ctx, t.tx, roomID, userID, st, kickReason)
}

func (t *storeTx) DeleteMembership(ctx context.Context, roomID, userID uint64) error {
    return t.s.members.DeleteTx(ctx, t.tx, roomID, userID)
}

func (t *storeTx) CountJoined(ctx context.Context, roomID uint64) (int, error) {
    return t.s.members.CountJoinedTx(ctx, t.tx, roomID)
}

func (t *storeTx) EarliestJoinedExcept(ctx context.Context, roomID, exclude uint64) (uint64, error) {
    id, err := t.s.members.EarliestJoinedExceptTx(ctx, t.tx, roomID, exclude)
    if err == sql.ErrNoRows {
        return 0, service.ErrMembershipNotFound
    }
    return id, err
}

func (t *storeTx) SetPaid(ctx context.Context, roomID, userID uint64, paid bool) error {
    return t.s.members.SetPaidTx(ctx, t.tx, roomID, userID, paid)
}

func (t *storeTx) ResetPaid(ctx context.Context, roomID uint64) error {
    return t.s.members.ResetPaidTx(ctx, t.tx, roomID)
}

func (t *storeTx) ResetPaidExcept(ctx context.Context, roomID, exclude uint64) error {
    return t.s.members.ResetPaidExceptTx(ctx, t.tx, roomID, exclude)
}

// messageStore adapts MessageRepo to the chat ledger's store interface,
// translating sql.ErrNoRows on token lookups.
type messageStore struct{ repo *MessageRepo }

// NewMessageStore wraps the message repository for the chat service.
func NewMessageStore(repo *MessageRepo) service.MessageStore { return &messageStore{repo: repo} }

func (m *messageStore) Insert(ctx context.Context, msg *model.Message) error {
    return m.repo.Insert(ctx, msg)
}

func (m *messageStore) PageBefore(ctx context.Context, roomID, beforeID uint64, limit int) ([]model.Message, error) {
    return m.repo.PageBefore(ctx, roomID, beforeID, limit)
}

func (m *messageStore) ResolveToken(ctx context.Context, roomID uint64, token string) (uint64, bool, error) {
    return m.repo.ResolveToken(ctx, roomID, token)
}

func (m *messageStore) Last(ctx context.Context, roomID uint64) (*model.Message, error) {
    return m.repo.Last(ctx, roomID)
}

func (m *messageStore) ByToken(ctx context.Context, token string) (*model.Message, error) {
    msg, err := m.repo.ByToken(ctx, token)
    if err == sql.ErrNoRows {
        return nil, service.ErrMessageNotFound
    }
    return msg, err
}

func (m *messageStore) SetContent(ctx context.Context, id uint64, content string) error {
    return m.repo.SetContent(ctx, id, content)
}

func (m *messageStore) MarkDeleted(ctx context.Context, id uint64) error {
    return m.repo.MarkDeleted(ctx, id)
}

func (m *messageStore) Delete(ctx context.Context, id uint64) error {
    return m.repo.Delete(ctx, id)
}
