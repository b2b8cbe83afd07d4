package service

import (
    "context"
    "time"

    "github.com/seojunpark/carpool-backend/internal/model"
)

// Store is the persistence seam consumed by RoomService and
// SettlementService.  The production adapter lives in
// internal/repository and wraps *sql.DB; tests substitute an in-memory
// fake.  Multi-row mutations go through RunTx so that membership writes
// and the room's participant counter always commit together.
type Store interface {
    // RunTx begins a transaction, invokes fn with a transaction-scoped
    // view, and commits when fn returns nil.  Any error from fn rolls the
    // transaction back and is returned unchanged.
    RunTx(ctx context.Context, fn func(tx Tx) error) error

    Room(ctx context.Context, roomID uint64) (*model.Room, error)
    Membership(ctx context.Context, roomID, userID uint64) (*model.Membership, error)
    JoinedMembers(ctx context.Context, roomID uint64) ([]model.Membership, error)
    ListRooms(ctx context.Context, f RoomFilter) ([]model.Room, error)
    SetMuted(ctx context.Context, roomID, userID uint64, muted bool) error
}

// Tx exposes the mutating operations available inside one transaction.
// Implementations return ErrRoomNotFound / ErrMembershipNotFound for
// absent rows so the services can propagate them without translation.
type Tx interface {
    // RoomForUpdate loads the room row with a write lock so concurrent
    // joins and leaves serialize on it for the rest of the transaction.
    RoomForUpdate(ctx context.Context, roomID uint64) (*model.Room, error)
    InsertRoom(ctx context.Context, room *model.Room) error
    UpdateRoomFields(ctx context.Context, roomID uint64, patch RoomPatch) error
    SetRoomStatus(ctx context.Context, roomID uint64, st model.RoomStatus) error
    SetRoomOwner(ctx context.Context, roomID, ownerID uint64) error
    SetRoomSettlement(ctx context.Context, roomID uint64, f SettlementFields) error
    ClearRoomSettlement(ctx context.Context, roomID uint64) error
    SetParticipantCount(ctx context.Context, roomID uint64, n int) error

    Membership(ctx context.Context, roomID, userID uint64) (*model.Membership, error)
    InsertMembership(ctx context.Context, m *model.Membership) error
    SetMembershipStatus(ctx context.Context, roomID, userID uint64, st model.MembershipStatus, kickReason *string) error
    DeleteMembership(ctx context.Context, roomID, userID uint64) error
    // CountJoined is the source of truth for the participant counter; it
    // runs inside the same transaction as the write that changed
    // membership so racing joins converge on a correct total.
    CountJoined(ctx context.Context, roomID uint64) (int, error)
    // EarliestJoinedExcept returns the user id of the oldest surviving
    // JOINED membership other than exclude, or ErrMembershipNotFound
    // when the excluded user is the only member left.
    EarliestJoinedExcept(ctx context.Context, roomID, exclude uint64) (uint64, error)
    SetPaid(ctx context.Context, roomID, userID uint64, paid bool) error
    ResetPaid(ctx context.Context, roomID uint64) error
    ResetPaidExcept(ctx context.Context, roomID, exclude uint64) error
}

// RoomFilter narrows ListRooms.  Zero values mean "no constraint".
type RoomFilter struct {
    Status      model.RoomStatus
    Departure   string
    Destination string
    Limit       int
    Offset      int
}

// RoomPatch carries the updatable room fields; nil pointers leave the
// column untouched.
type RoomPatch struct {
    Title          *string
    Departure      *string
    Destination    *string
    DepartureTime  *time.Time
    MaxParticipant *int
}

// SettlementFields is the snapshot written onto the room row when a
// settlement is requested: the payer, the total amount and the payer's
// encrypted account at request time.
type SettlementFields struct {
    PayerID       uint64
    Amount        int64
    AccountEnc    string
    AccountHolder string
    BankName      string
}

// AccountStore is the external account collaborator.  Get returns
// (nil, nil) when the user has no stored account.
type AccountStore interface {
    Upsert(ctx context.Context, acct *model.BankAccount) error
    Get(ctx context.Context, userID uint64) (*model.BankAccount, error)
}

// Cipher encrypts and decrypts account numbers.  The production
// implementation is the AES-GCM cipher in internal/utils.
type Cipher interface {
    Encrypt(plain string) (string, error)
    Decrypt(enc string) (string, error)
}

// NicknameLookup resolves a user's display name for message snapshots and
// system-message text.  Implemented by the user repository.
type NicknameLookup interface {
    Nickname(ctx context.Context, userID uint64) (string, error)
}
