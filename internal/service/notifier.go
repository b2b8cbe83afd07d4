package service

import (
    "context"
    "encoding/json"
    "log"
    "strconv"
)

// EventKind names a room-scoped event delivered to members.
type EventKind string

const (
    EventMessageCreated EventKind = "message.created"
    EventMessageUpdated EventKind = "message.updated"
    EventMessageDeleted EventKind = "message.deleted"

    EventMemberJoined EventKind = "member.joined"
    EventMemberLeft   EventKind = "member.left"
    EventMemberKicked EventKind = "member.kicked"
    EventOwnerChanged EventKind = "owner.changed"

    EventRoomUpdated EventKind = "room.updated"
    EventRoomDeleted EventKind = "room.deleted"

    EventSettlementRequested EventKind = "settlement.requested"
    EventSettlementUpdated   EventKind = "settlement.updated"
    EventSettlementCancelled EventKind = "settlement.cancelled"
    EventSettlementCompleted EventKind = "settlement.completed"
    EventPayStatusChanged    EventKind = "settlement.pay_status"
)

// Event is one room-scoped fan-out request.  RespectMute marks routine
// chat noise: muted members are skipped entirely for such events (no live,
// no push).  Kick and settlement events always set RespectMute false.
// Extra lists user ids outside the JOINED roster that must still be
// notified, e.g. the target of a kick who is no longer JOINED by the time
// the event is published.
type Event struct {
    RoomID      uint64
    Kind        EventKind
    Payload     any
    RespectMute bool
    PushTitle   string
    PushBody    string
    Extra       []uint64
}

// LivePresence is the view of the presence registry the router needs to
// classify a user as live.  Implemented by realtime.Registry.
type LivePresence interface {
    // GetFocus returns the room a user currently has in the foreground
    // over any live connection; ok is false when the user is not
    // connected or has no focused room.
    GetFocus(userID uint64) (roomID uint64, ok bool)
    // SendToUser writes the payload to every live connection of the user
    // and reports how many connections accepted it.
    SendToUser(userID uint64, payload []byte) int
}

// PushSender is the external push-notification transport.  One call per
// event, batching all push-eligible users; failures are logged by the
// implementation and never retried here.
type PushSender interface {
    SendToUsers(ctx context.Context, userIDs []uint64, title, body string, data map[string]string) error
}

// envelope is the wire form delivered over the live channel.
type envelope struct {
    Kind    EventKind `json:"kind"`
    RoomID  uint64    `json:"room_id"`
    Payload any       `json:"payload,omitempty"`
}

// Notifier partitions a room's members into live and push delivery for
// every published event.  A member is live when at least one of their
// connections has the event's room focused; everyone else is pushed,
// unless muted and the event respects mutes.
type Notifier struct {
    store Store
    live  LivePresence
    push  PushSender
}

func NewNotifier(store Store, live LivePresence, push PushSender) *Notifier {
    return &Notifier{store: store, live: live, push: push}
}

// Publish fans the event out.  The returned error covers only the roster
// lookup; push transport failures are logged and swallowed so a flaky
// provider cannot fail the triggering operation.
func (n *Notifier) Publish(ctx context.Context, ev Event) error {
    members, err := n.store.JoinedMembers(ctx, ev.RoomID)
    if err != nil {
        return err
    }

    payload, err := json.Marshal(envelope{Kind: ev.Kind, RoomID: ev.RoomID, Payload: ev.Payload})
    if err != nil {
        return err
    }

    seen := make(map[uint64]bool, len(members)+len(ev.Extra))
    var pushIDs []uint64
    deliver := func(userID uint64, muted bool) {
        if seen[userID] {
            return
        }
        seen[userID] = true
        if ev.RespectMute && muted {
            return
        }
        if focus, ok := n.live.GetFocus(userID); ok && focus == ev.RoomID {
            n.live.SendToUser(userID, payload)
            return
        }
        pushIDs = append(pushIDs, userID)
    }

    for _, m := range members {
        deliver(m.UserID, m.Muted)
    }
    for _, id := range ev.Extra {
        deliver(id, false)
    }

    if len(pushIDs) > 0 && n.push != nil {
        data := map[string]string{
            "room_id": strconv.FormatUint(ev.RoomID, 10),
            "kind":    string(ev.Kind),
        }
        if err := n.push.SendToUsers(ctx, pushIDs, ev.PushTitle, ev.PushBody, data); err != nil {
            log.Printf("notifier: push send failed for room %d: %v", ev.RoomID, err)
        }
    }
    return nil
}
