package service

import (
    "context"
    "testing"
    "time"

    "github.com/seojunpark/carpool-backend/internal/model"
)

func newSettlementHarness() (*fakeStore, *fakeAccounts, *RoomService, *SettlementService) {
    store := newFakeStore()
    msgs := &fakeMessageStore{}
    chat := NewChatService(msgs, newFakeReads(), fakeNames{})
    notifier := NewNotifier(store, newFakeLive(), &fakePush{})
    rooms := NewRoomService(store, chat, notifier, fakeNames{})
    rooms.now = func() time.Time { return testNow }
    accounts := newFakeAccounts()
    settle := NewSettlementService(store, accounts, fakeCipher{}, chat, notifier, fakeNames{})
    return store, accounts, rooms, settle
}

func TestPerPersonShareRoundsUp(t *testing.T) {
    cases := []struct {
        amount       int64
        participants int
        want         int64
    }{
        {10000, 3, 3334},
        {10000, 4, 2500},
        {1, 3, 1},
        {9999, 1, 9999},
        {0, 3, 0},
        {100, 0, 100}, // degenerate roster clamps to 1
    }
    for _, tc := range cases {
        if got := perPersonShare(tc.amount, tc.participants); got != tc.want {
            t.Errorf("perPersonShare(%d, %d) = %d, want %d", tc.amount, tc.participants, got, tc.want)
        }
    }
}

func settledRoom(t *testing.T, store *fakeStore, accounts *fakeAccounts, rooms *RoomService, settle *SettlementService) *model.Room {
    t.Helper()
    ctx := context.Background()
    room := mustCreateRoom(t, rooms, 1, 4)
    for _, uid := range []uint64{2, 3} {
        if _, _, err := rooms.Join(ctx, room.ID, uid); err != nil {
            t.Fatalf("join %d: %v", uid, err)
        }
    }
    err := settle.Request(ctx, room.ID, 1, SettlementRequest{
        Amount:        10000,
        UpdateAccount: true,
        AccountNumber: "110-222-333",
        AccountHolder: "Kim",
        BankName:      "KB",
    })
    if err != nil {
        t.Fatalf("request settlement: %v", err)
    }
    r, err := store.Room(ctx, room.ID)
    if err != nil {
        t.Fatal(err)
    }
    return r
}

func TestSettlementRequest(t *testing.T) {
    ctx := context.Background()

    t.Run("moves the room to IN_SETTLEMENT with a snapshot", func(t *testing.T) {
        store, accounts, rooms, settle := newSettlementHarness()
        r := settledRoom(t, store, accounts, rooms, settle)

        if r.Status != model.RoomInSettlement {
            t.Fatalf("status = %s, want IN_SETTLEMENT", r.Status)
        }
        if r.PayerID == nil || *r.PayerID != 1 {
            t.Fatalf("payer = %v, want 1", r.PayerID)
        }
        if r.PayAmount == nil || *r.PayAmount != 10000 {
            t.Fatalf("amount = %v, want 10000", r.PayAmount)
        }
        if r.PayerAccountEnc == nil || *r.PayerAccountEnc != "enc:110-222-333" {
            t.Fatalf("account snapshot = %v, want encrypted number", r.PayerAccountEnc)
        }
        // Fresh paid cycle: payer true, everyone else false.
        for uid, want := range map[uint64]bool{1: true, 2: false, 3: false} {
            m, err := store.Membership(ctx, r.ID, uid)
            if err != nil {
                t.Fatal(err)
            }
            if m.Paid != want {
                t.Fatalf("paid[%d] = %v, want %v", uid, m.Paid, want)
            }
        }
    })

    t.Run("requires a payout account on file", func(t *testing.T) {
        _, _, rooms, settle := newSettlementHarness()
        room := mustCreateRoom(t, rooms, 1, 4)
        err := settle.Request(ctx, room.ID, 1, SettlementRequest{Amount: 500})
        if err != ErrValidation {
            t.Fatalf("got %v, want ErrValidation", err)
        }
    })

    t.Run("rejects a non-positive amount", func(t *testing.T) {
        _, _, rooms, settle := newSettlementHarness()
        room := mustCreateRoom(t, rooms, 1, 4)
        if err := settle.Request(ctx, room.ID, 1, SettlementRequest{Amount: 0}); err != ErrValidation {
            t.Fatalf("got %v, want ErrValidation", err)
        }
    })

    t.Run("rejects a second open settlement", func(t *testing.T) {
        store, accounts, rooms, settle := newSettlementHarness()
        r := settledRoom(t, store, accounts, rooms, settle)
        err := settle.Request(ctx, r.ID, 2, SettlementRequest{
            Amount: 1, UpdateAccount: true, AccountNumber: "9", AccountHolder: "Lee", BankName: "NH",
        })
        if err != ErrInvalidState {
            t.Fatalf("got %v, want ErrInvalidState", err)
        }
    })

    t.Run("payer must be joined", func(t *testing.T) {
        _, accounts, rooms, settle := newSettlementHarness()
        room := mustCreateRoom(t, rooms, 1, 4)
        _ = accounts.Upsert(ctx, &model.BankAccount{UserID: 9, NumberEnc: "enc:1", HolderName: "h", BankName: "b"})
        if err := settle.Request(ctx, room.ID, 9, SettlementRequest{Amount: 100}); err != ErrMembershipNotFound {
            t.Fatalf("got %v, want ErrMembershipNotFound", err)
        }
    })
}

func TestSettlementUpdateResetsOtherPaidFlags(t *testing.T) {
    ctx := context.Background()
    store, accounts, rooms, settle := newSettlementHarness()
    r := settledRoom(t, store, accounts, rooms, settle)

    if err := settle.SetUserPayStatus(ctx, r.ID, 2, "USER", 2, true); err != nil {
        t.Fatalf("member marks paid: %v", err)
    }
    if err := settle.Update(ctx, r.ID, 1, SettlementRequest{Amount: 12000}); err != nil {
        t.Fatalf("update: %v", err)
    }
    for uid, want := range map[uint64]bool{1: true, 2: false, 3: false} {
        m, _ := store.Membership(ctx, r.ID, uid)
        if m.Paid != want {
            t.Fatalf("paid[%d] = %v after update, want %v", uid, m.Paid, want)
        }
    }
    got, _ := store.Room(ctx, r.ID)
    if got.PayAmount == nil || *got.PayAmount != 12000 {
        t.Fatalf("amount = %v, want 12000", got.PayAmount)
    }

    if err := settle.Update(ctx, r.ID, 2, SettlementRequest{Amount: 1}); err != ErrValidation {
        // member 2 has no account on file, so validation fires first;
        // give them one and check the payer guard proper.
        t.Fatalf("got %v, want ErrValidation", err)
    }
    _ = accounts.Upsert(ctx, &model.BankAccount{UserID: 2, NumberEnc: "enc:2", HolderName: "h", BankName: "b"})
    if err := settle.Update(ctx, r.ID, 2, SettlementRequest{Amount: 1}); err != ErrForbidden {
        t.Fatalf("non-payer update: got %v, want ErrForbidden", err)
    }
}

func TestSettlementCancel(t *testing.T) {
    ctx := context.Background()
    store, accounts, rooms, settle := newSettlementHarness()
    r := settledRoom(t, store, accounts, rooms, settle)

    if err := settle.Cancel(ctx, r.ID, 2); err != ErrForbidden {
        t.Fatalf("non-payer cancel: got %v, want ErrForbidden", err)
    }
    if err := settle.Cancel(ctx, r.ID, 1); err != nil {
        t.Fatalf("cancel: %v", err)
    }
    got, _ := store.Room(ctx, r.ID)
    if got.Status != model.RoomActive {
        t.Fatalf("status = %s, want ACTIVE", got.Status)
    }
    if got.PayerID != nil || got.PayAmount != nil || got.PayerAccountEnc != nil {
        t.Fatal("settlement snapshot not cleared")
    }
    for _, uid := range []uint64{1, 2, 3} {
        m, _ := store.Membership(ctx, r.ID, uid)
        if m.Paid {
            t.Fatalf("paid[%d] still set after cancel", uid)
        }
    }
    if err := settle.Cancel(ctx, r.ID, 1); err != ErrInvalidState {
        t.Fatalf("second cancel: got %v, want ErrInvalidState", err)
    }
}

func TestSettlementComplete(t *testing.T) {
    ctx := context.Background()
    store, accounts, rooms, settle := newSettlementHarness()
    r := settledRoom(t, store, accounts, rooms, settle)

    if err := settle.Complete(ctx, r.ID, 2, "USER"); err != ErrForbidden {
        t.Fatalf("non-payer complete: got %v, want ErrForbidden", err)
    }
    if err := settle.Complete(ctx, r.ID, 1, "USER"); err != nil {
        t.Fatalf("complete: %v", err)
    }
    got, _ := store.Room(ctx, r.ID)
    if got.Status != model.RoomCompleted {
        t.Fatalf("status = %s, want COMPLETED", got.Status)
    }

    // COMPLETED is terminal: no further settlement mutation.
    if err := settle.Complete(ctx, r.ID, 1, "USER"); err != ErrInvalidState {
        t.Fatalf("second complete: got %v, want ErrInvalidState", err)
    }
    if err := settle.Cancel(ctx, r.ID, 1); err != ErrInvalidState {
        t.Fatalf("cancel after complete: got %v, want ErrInvalidState", err)
    }
    if err := settle.SetUserPayStatus(ctx, r.ID, 1, "USER", 2, true); err != ErrInvalidState {
        t.Fatalf("pay status after complete: got %v, want ErrInvalidState", err)
    }

    // The view remains readable for receipts.
    view, err := settle.Get(ctx, r.ID, 1, "USER")
    if err != nil {
        t.Fatalf("get after complete: %v", err)
    }
    if view.AccountNumber != "110-222-333" {
        t.Fatalf("account = %q, want decrypted snapshot", view.AccountNumber)
    }
    if view.PerPersonShare != 3334 {
        t.Fatalf("share = %d, want 3334", view.PerPersonShare)
    }
}

func TestSettlementGet(t *testing.T) {
    ctx := context.Background()

    t.Run("active room has no settlement", func(t *testing.T) {
        _, _, rooms, settle := newSettlementHarness()
        room := mustCreateRoom(t, rooms, 1, 4)
        if _, err := settle.Get(ctx, room.ID, 1, "USER"); err != ErrSettlementNotFound {
            t.Fatalf("got %v, want ErrSettlementNotFound", err)
        }
    })

    t.Run("missing room propagates as not found", func(t *testing.T) {
        _, _, _, settle := newSettlementHarness()
        if _, err := settle.Get(ctx, 404, 1, "USER"); err != ErrRoomNotFound {
            t.Fatalf("got %v, want ErrRoomNotFound", err)
        }
    })

    t.Run("only members see the account snapshot", func(t *testing.T) {
        store, accounts, rooms, settle := newSettlementHarness()
        r := settledRoom(t, store, accounts, rooms, settle)

        if _, err := settle.Get(ctx, r.ID, 9, "USER"); err != ErrForbidden {
            t.Fatalf("non-member: got %v, want ErrForbidden", err)
        }
        if _, err := settle.Get(ctx, r.ID, 2, "USER"); err != nil {
            t.Fatalf("member: %v", err)
        }
        if view, err := settle.Get(ctx, r.ID, 9, "ADMIN"); err != nil || view.AccountNumber != "110-222-333" {
            t.Fatalf("admin view = %v, %v", view, err)
        }
    })
}

func TestPayStatusPermissions(t *testing.T) {
    ctx := context.Background()
    store, accounts, rooms, settle := newSettlementHarness()
    r := settledRoom(t, store, accounts, rooms, settle)

    cases := []struct {
        name    string
        actor   uint64
        role    string
        target  uint64
        wantErr error
    }{
        {"member flags themself", 2, "USER", 2, nil},
        {"member cannot flag another", 2, "USER", 3, ErrForbidden},
        {"payer flags anyone", 1, "USER", 3, nil},
        {"admin flags anyone", 99, "ADMIN", 2, nil},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            err := settle.SetUserPayStatus(ctx, r.ID, tc.actor, tc.role, tc.target, true)
            if err != tc.wantErr {
                t.Fatalf("got %v, want %v", err, tc.wantErr)
            }
        })
    }

    paid, err := settle.GetUserPayStatus(ctx, r.ID, 3)
    if err != nil {
        t.Fatalf("get pay status: %v", err)
    }
    if !paid {
        t.Fatal("paid[3] = false, want true")
    }
}
