package service

import (
    "context"
    "encoding/json"
    "reflect"
    "testing"

    "github.com/seojunpark/carpool-backend/internal/model"
)

func seedRoster(t *testing.T, store *fakeStore, roomID uint64, members map[uint64]bool) {
    t.Helper()
    ctx := context.Background()
    if err := store.InsertRoom(ctx, &model.Room{Title: "r", OwnerID: 1, Status: model.RoomActive, MaxParticipant: 10}); err != nil {
        t.Fatal(err)
    }
    for uid, muted := range members {
        if err := store.InsertMembership(ctx, &model.Membership{RoomID: roomID, UserID: uid, Status: model.MemberJoined, Muted: muted}); err != nil {
            t.Fatal(err)
        }
    }
}

func TestPublishPartitionsLiveAndPush(t *testing.T) {
    ctx := context.Background()
    store := newFakeStore()
    live := newFakeLive()
    push := &fakePush{}
    n := NewNotifier(store, live, push)

    // user 2 has the room focused, user 3 is connected elsewhere, user 4
    // is offline.
    seedRoster(t, store, 1, map[uint64]bool{2: false, 3: false, 4: false})
    live.focused[2] = 1
    live.focused[3] = 7

    err := n.Publish(ctx, Event{
        RoomID:    1,
        Kind:      EventMessageCreated,
        Payload:   map[string]any{"token": "abc"},
        PushTitle: "mina",
        PushBody:  "hi",
    })
    if err != nil {
        t.Fatalf("publish: %v", err)
    }

    if len(live.sent[2]) != 1 {
        t.Fatalf("live deliveries to focused user = %d, want 1", len(live.sent[2]))
    }
    var env struct {
        Kind   EventKind `json:"kind"`
        RoomID uint64    `json:"room_id"`
    }
    if err := json.Unmarshal(live.sent[2][0], &env); err != nil {
        t.Fatalf("unmarshal envelope: %v", err)
    }
    if env.Kind != EventMessageCreated || env.RoomID != 1 {
        t.Fatalf("envelope = %+v", env)
    }

    if len(push.batches) != 1 {
        t.Fatalf("push batches = %d, want 1", len(push.batches))
    }
    b := push.batches[0]
    if !reflect.DeepEqual(b.UserIDs, []uint64{3, 4}) {
        t.Fatalf("push recipients = %v, want [3 4]", b.UserIDs)
    }
    if b.Title != "mina" || b.Body != "hi" {
        t.Fatalf("push content = %q/%q", b.Title, b.Body)
    }
    if b.Data["room_id"] != "1" || b.Data["kind"] != string(EventMessageCreated) {
        t.Fatalf("push data = %v", b.Data)
    }
}

func TestPublishMuteHandling(t *testing.T) {
    ctx := context.Background()

    t.Run("respected mute drops the member entirely", func(t *testing.T) {
        store := newFakeStore()
        live := newFakeLive()
        push := &fakePush{}
        n := NewNotifier(store, live, push)
        seedRoster(t, store, 1, map[uint64]bool{2: true, 3: false})

        if err := n.Publish(ctx, Event{RoomID: 1, Kind: EventMessageCreated, RespectMute: true}); err != nil {
            t.Fatal(err)
        }
        if len(push.batches) != 1 || !reflect.DeepEqual(push.batches[0].UserIDs, []uint64{3}) {
            t.Fatalf("push batches = %+v, want only user 3", push.batches)
        }
        if len(live.sent[2]) != 0 {
            t.Fatal("muted member received a live delivery")
        }
    })

    t.Run("kick events reach muted members anyway", func(t *testing.T) {
        store := newFakeStore()
        live := newFakeLive()
        push := &fakePush{}
        n := NewNotifier(store, live, push)
        seedRoster(t, store, 1, map[uint64]bool{2: true})

        // RespectMute false models kick/settlement/room.deleted events.
        if err := n.Publish(ctx, Event{RoomID: 1, Kind: EventMemberKicked, Extra: []uint64{9}}); err != nil {
            t.Fatal(err)
        }
        if len(push.batches) != 1 {
            t.Fatalf("push batches = %d, want 1", len(push.batches))
        }
        if !reflect.DeepEqual(push.batches[0].UserIDs, []uint64{2, 9}) {
            t.Fatalf("recipients = %v, want muted member and kicked target", push.batches[0].UserIDs)
        }
    })

    t.Run("extra ids are not delivered twice", func(t *testing.T) {
        store := newFakeStore()
        live := newFakeLive()
        push := &fakePush{}
        n := NewNotifier(store, live, push)
        seedRoster(t, store, 1, map[uint64]bool{2: false})

        if err := n.Publish(ctx, Event{RoomID: 1, Kind: EventMemberKicked, Extra: []uint64{2, 2}}); err != nil {
            t.Fatal(err)
        }
        if !reflect.DeepEqual(push.batches[0].UserIDs, []uint64{2}) {
            t.Fatalf("recipients = %v, want deduped [2]", push.batches[0].UserIDs)
        }
    })
}

func TestPublishFocusOnOtherRoomMeansPush(t *testing.T) {
    ctx := context.Background()
    store := newFakeStore()
    live := newFakeLive()
    push := &fakePush{}
    n := NewNotifier(store, live, push)
    seedRoster(t, store, 1, map[uint64]bool{2: false})
    live.focused[2] = 99 // connected, but looking at another room

    if err := n.Publish(ctx, Event{RoomID: 1, Kind: EventMessageCreated}); err != nil {
        t.Fatal(err)
    }
    if len(live.sent[2]) != 0 {
        t.Fatal("delivered live to a user focused elsewhere")
    }
    if len(push.batches) != 1 || !reflect.DeepEqual(push.batches[0].UserIDs, []uint64{2}) {
        t.Fatalf("push batches = %+v, want [2]", push.batches)
    }
}
