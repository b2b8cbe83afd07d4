package service

import (
    "context"
    "fmt"
    "sort"
    "time"

    "github.com/seojunpark/carpool-backend/internal/model"
)

// fakeStore is an in-memory Store/Tx used by the service tests.  RunTx
// simply invokes fn against the same state; rollback fidelity is not
// needed because the tests only assert on successful paths and on errors
// surfaced before any write.
type fakeStore struct {
    rooms   map[uint64]*model.Room
    members map[uint64]map[uint64]*model.Membership
    roomSeq uint64
    clock   time.Time
}

func newFakeStore() *fakeStore {
    return &fakeStore{
        rooms:   map[uint64]*model.Room{},
        members: map[uint64]map[uint64]*model.Membership{},
        clock:   time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
    }
}

func (f *fakeStore) tick() time.Time {
    f.clock = f.clock.Add(time.Second)
    return f.clock
}

func (f *fakeStore) RunTx(ctx context.Context, fn func(tx Tx) error) error {
    return fn(f)
}

func (f *fakeStore) Room(ctx context.Context, roomID uint64) (*model.Room, error) {
    r, ok := f.rooms[roomID]
    if !ok {
        return nil, ErrRoomNotFound
    }
    cp := *r
    return &cp, nil
}

func (f *fakeStore) RoomForUpdate(ctx context.Context, roomID uint64) (*model.Room, error) {
    return f.Room(ctx, roomID)
}

func (f *fakeStore) InsertRoom(ctx context.Context, room *model.Room) error {
    f.roomSeq++
    room.ID = f.roomSeq
    room.CreatedAt = f.tick()
    room.UpdatedAt = room.CreatedAt
    cp := *room
    f.rooms[room.ID] = &cp
    return nil
}

func (f *fakeStore) UpdateRoomFields(ctx context.Context, roomID uint64, patch RoomPatch) error {
    r, ok := f.rooms[roomID]
    if !ok {
        return ErrRoomNotFound
    }
    if patch.Title != nil {
        r.Title = *patch.Title
    }
    if patch.Departure != nil {
        r.Departure = *patch.Departure
    }
    if patch.Destination != nil {
        r.Destination = *patch.Destination
    }
    if patch.DepartureTime != nil {
        r.DepartureTime = patch.DepartureTime.UTC()
    }
    if patch.MaxParticipant != nil {
        r.MaxParticipant = *patch.MaxParticipant
    }
    return nil
}

func (f *fakeStore) SetRoomStatus(ctx context.Context, roomID uint64, st model.RoomStatus) error {
    r, ok := f.rooms[roomID]
    if !ok {
        return ErrRoomNotFound
    }
    r.Status = st
    return nil
}

func (f *fakeStore) SetRoomOwner(ctx context.Context, roomID, ownerID uint64) error {
    r, ok := f.rooms[roomID]
    if !ok {
        return ErrRoomNotFound
    }
    r.OwnerID = ownerID
    return nil
}

func (f *fakeStore) SetRoomSettlement(ctx context.Context, roomID uint64, s SettlementFields) error {
    r, ok := f.rooms[roomID]
    if !ok {
        return ErrRoomNotFound
    }
    payer, amount := s.PayerID, s.Amount
    enc, holder, bank := s.AccountEnc, s.AccountHolder, s.BankName
    r.PayerID = &payer
    r.PayAmount = &amount
    r.PayerAccountEnc = &enc
    r.PayerAccountHolder = &holder
    r.PayerBankName = &bank
    return nil
}

func (f *fakeStore) ClearRoomSettlement(ctx context.Context, roomID uint64) error {
    r, ok := f.rooms[roomID]
    if !ok {
        return ErrRoomNotFound
    }
    r.PayerID = nil
    r.PayAmount = nil
    r.PayerAccountEnc = nil
    r.PayerAccountHolder = nil
    r.PayerBankName = nil
    return nil
}

func (f *fakeStore) SetParticipantCount(ctx context.Context, roomID uint64, n int) error {
    r, ok := f.rooms[roomID]
    if !ok {
        return ErrRoomNotFound
    }
    r.CurrentParticipant = n
    return nil
}

func (f *fakeStore) Membership(ctx context.Context, roomID, userID uint64) (*model.Membership, error) {
    m, ok := f.members[roomID][userID]
    if !ok {
        return nil, ErrMembershipNotFound
    }
    cp := *m
    return &cp, nil
}

func (f *fakeStore) InsertMembership(ctx context.Context, m *model.Membership) error {
    if f.members[m.RoomID] == nil {
        f.members[m.RoomID] = map[uint64]*model.Membership{}
    }
    m.CreatedAt = f.tick()
    m.UpdatedAt = m.CreatedAt
    cp := *m
    f.members[m.RoomID][m.UserID] = &cp
    return nil
}

func (f *fakeStore) SetMembershipStatus(ctx context.Context, roomID, userID uint64, st model.MembershipStatus, kickReason *string) error {
    m, ok := f.members[roomID][userID]
    if !ok {
        return ErrMembershipNotFound
    }
    m.Status = st
    m.KickReason = kickReason
    m.UpdatedAt = f.tick()
    return nil
}

func (f *fakeStore) DeleteMembership(ctx context.Context, roomID, userID uint64) error {
    if _, ok := f.members[roomID][userID]; !ok {
        return ErrMembershipNotFound
    }
    delete(f.members[roomID], userID)
    return nil
}

func (f *fakeStore) CountJoined(ctx context.Context, roomID uint64) (int, error) {
    n := 0
    for _, m := range f.members[roomID] {
        if m.Status == model.MemberJoined {
            n++
        }
    }
    return n, nil
}

func (f *fakeStore) EarliestJoinedExcept(ctx context.Context, roomID, exclude uint64) (uint64, error) {
    var candidates []*model.Membership
    for _, m := range f.members[roomID] {
        if m.UserID != exclude && m.Status == model.MemberJoined {
            candidates = append(candidates, m)
        }
    }
    if len(candidates) == 0 {
        return 0, ErrMembershipNotFound
    }
    sort.Slice(candidates, func(i, j int) bool {
        if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
            return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
        }
        return candidates[i].UserID < candidates[j].UserID
    })
    return candidates[0].UserID, nil
}

func (f *fakeStore) SetPaid(ctx context.Context, roomID, userID uint64, paid bool) error {
    m, ok := f.members[roomID][userID]
    if !ok {
        return ErrMembershipNotFound
    }
    m.Paid = paid
    return nil
}

func (f *fakeStore) ResetPaid(ctx context.Context, roomID uint64) error {
    for _, m := range f.members[roomID] {
        m.Paid = false
    }
    return nil
}

func (f *fakeStore) ResetPaidExcept(ctx context.Context, roomID, exclude uint64) error {
    for _, m := range f.members[roomID] {
        if m.UserID != exclude {
            m.Paid = false
        }
    }
    return nil
}

func (f *fakeStore) JoinedMembers(ctx context.Context, roomID uint64) ([]model.Membership, error) {
    var out []model.Membership
    for _, m := range f.members[roomID] {
        if m.Status == model.MemberJoined {
            out = append(out, *m)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
    return out, nil
}

func (f *fakeStore) ListRooms(ctx context.Context, filter RoomFilter) ([]model.Room, error) {
    var out []model.Room
    for _, r := range f.rooms {
        if filter.Status != "" && r.Status != filter.Status {
            continue
        }
        out = append(out, *r)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

func (f *fakeStore) SetMuted(ctx context.Context, roomID, userID uint64, muted bool) error {
    m, ok := f.members[roomID][userID]
    if !ok {
        return ErrMembershipNotFound
    }
    m.Muted = muted
    return nil
}

// fakeMessageStore keeps the message ledger in a slice ordered by id.
type fakeMessageStore struct {
    msgs []model.Message
    seq  uint64
}

func (f *fakeMessageStore) Insert(ctx context.Context, m *model.Message) error {
    f.seq++
    m.ID = f.seq
    f.msgs = append(f.msgs, *m)
    return nil
}

func (f *fakeMessageStore) PageBefore(ctx context.Context, roomID, beforeID uint64, limit int) ([]model.Message, error) {
    out := []model.Message{}
    for i := len(f.msgs) - 1; i >= 0 && len(out) < limit; i-- {
        m := f.msgs[i]
        if m.RoomID != roomID {
            continue
        }
        if beforeID != 0 && m.ID >= beforeID {
            continue
        }
        out = append(out, m)
    }
    return out, nil
}

func (f *fakeMessageStore) ResolveToken(ctx context.Context, roomID uint64, token string) (uint64, bool, error) {
    for _, m := range f.msgs {
        if m.RoomID == roomID && m.PublicID == token {
            return m.ID, true, nil
        }
    }
    return 0, false, nil
}

func (f *fakeMessageStore) Last(ctx context.Context, roomID uint64) (*model.Message, error) {
    for i := len(f.msgs) - 1; i >= 0; i-- {
        if f.msgs[i].RoomID == roomID {
            cp := f.msgs[i]
            return &cp, nil
        }
    }
    return nil, nil
}

func (f *fakeMessageStore) ByToken(ctx context.Context, token string) (*model.Message, error) {
    for i := range f.msgs {
        if f.msgs[i].PublicID == token {
            cp := f.msgs[i]
            return &cp, nil
        }
    }
    return nil, ErrMessageNotFound
}

func (f *fakeMessageStore) SetContent(ctx context.Context, id uint64, content string) error {
    for i := range f.msgs {
        if f.msgs[i].ID == id {
            f.msgs[i].Content = content
            f.msgs[i].Edited = true
            return nil
        }
    }
    return ErrMessageNotFound
}

func (f *fakeMessageStore) MarkDeleted(ctx context.Context, id uint64) error {
    for i := range f.msgs {
        if f.msgs[i].ID == id {
            f.msgs[i].Deleted = true
            return nil
        }
    }
    return ErrMessageNotFound
}

func (f *fakeMessageStore) Delete(ctx context.Context, id uint64) error {
    for i := range f.msgs {
        if f.msgs[i].ID == id {
            f.msgs = append(f.msgs[:i], f.msgs[i+1:]...)
            return nil
        }
    }
    return ErrMessageNotFound
}

// countByRoom helps assertions over the system-message stream.
func (f *fakeMessageStore) countByRoom(roomID uint64) int {
    n := 0
    for _, m := range f.msgs {
        if m.RoomID == roomID {
            n++
        }
    }
    return n
}

// fakeReads records SaveReadPosition writes keyed room/user.
type fakeReads struct {
    tokens map[string]string
}

func newFakeReads() *fakeReads { return &fakeReads{tokens: map[string]string{}} }

func (f *fakeReads) SetLastRead(ctx context.Context, roomID, userID uint64, token string) error {
    f.tokens[fmt.Sprintf("%d/%d", roomID, userID)] = token
    return nil
}

// fakeNames resolves nicknames from a static map, defaulting to user-<id>.
type fakeNames map[uint64]string

func (f fakeNames) Nickname(ctx context.Context, userID uint64) (string, error) {
    if n, ok := f[userID]; ok {
        return n, nil
    }
    return fmt.Sprintf("user-%d", userID), nil
}

// fakeLive simulates the presence registry: focused holds each user's
// foreground room and sent collects live deliveries.
type fakeLive struct {
    focused map[uint64]uint64
    sent    map[uint64][][]byte
}

func newFakeLive() *fakeLive {
    return &fakeLive{focused: map[uint64]uint64{}, sent: map[uint64][][]byte{}}
}

func (f *fakeLive) GetFocus(userID uint64) (uint64, bool) {
    r, ok := f.focused[userID]
    return r, ok
}

func (f *fakeLive) SendToUser(userID uint64, payload []byte) int {
    f.sent[userID] = append(f.sent[userID], payload)
    return 1
}

// fakePush records push batches.
type pushBatch struct {
    UserIDs []uint64
    Title   string
    Body    string
    Data    map[string]string
}

type fakePush struct {
    batches []pushBatch
}

func (f *fakePush) SendToUsers(ctx context.Context, userIDs []uint64, title, body string, data map[string]string) error {
    ids := append([]uint64(nil), userIDs...)
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    f.batches = append(f.batches, pushBatch{UserIDs: ids, Title: title, Body: body, Data: data})
    return nil
}

// fakeAccounts is the in-memory AccountStore.
type fakeAccounts struct {
    accts map[uint64]*model.BankAccount
}

func newFakeAccounts() *fakeAccounts { return &fakeAccounts{accts: map[uint64]*model.BankAccount{}} }

func (f *fakeAccounts) Upsert(ctx context.Context, acct *model.BankAccount) error {
    cp := *acct
    f.accts[acct.UserID] = &cp
    return nil
}

func (f *fakeAccounts) Get(ctx context.Context, userID uint64) (*model.BankAccount, error) {
    a, ok := f.accts[userID]
    if !ok {
        return nil, nil
    }
    cp := *a
    return &cp, nil
}

// fakeCipher reversibly tags the plaintext so tests can assert on round
// trips without real crypto.
type fakeCipher struct{}

func (fakeCipher) Encrypt(plain string) (string, error) { return "enc:" + plain, nil }

func (fakeCipher) Decrypt(enc string) (string, error) {
    if len(enc) < 4 || enc[:4] != "enc:" {
        return "", fmt.Errorf("bad ciphertext %q", enc)
    }
    return enc[4:], nil
}
