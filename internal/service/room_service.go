package service

import (
    "context"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/seojunpark/carpool-backend/internal/model"
)

// CreateRoomSpec carries the attributes of a new room.  Amounts of people
// include the owner, so MaxParticipant must be at least 2 for a carpool to
// make sense.
type CreateRoomSpec struct {
    Title          string
    Departure      string
    Destination    string
    DepartureTime  time.Time
    MaxParticipant int
}

// RoomService enforces the room lifecycle: creation, join/leave/kick,
// ownership delegation, updates and soft deletion.  Every multi-row
// mutation (membership write + participant counter, ownership transfer)
// runs in one transaction, and the counter is always recomputed from a
// count of JOINED rows inside that transaction rather than incremented,
// so concurrent joins and leaves converge on a correct total.
type RoomService struct {
    store    Store
    chat     *ChatService
    notifier *Notifier
    names    NicknameLookup
    now      func() time.Time
}

func NewRoomService(store Store, chat *ChatService, notifier *Notifier, names NicknameLookup) *RoomService {
    return &RoomService{store: store, chat: chat, notifier: notifier, names: names, now: time.Now}
}

// Create validates the spec and atomically inserts the room together with
// a JOINED membership for the owner.  Both rows commit or neither does.
func (s *RoomService) Create(ctx context.Context, ownerID uint64, spec CreateRoomSpec) (*model.Room, error) {
    spec.Title = strings.TrimSpace(spec.Title)
    if spec.Title == "" || strings.TrimSpace(spec.Departure) == "" || strings.TrimSpace(spec.Destination) == "" {
        return nil, ErrValidation
    }
    if !spec.DepartureTime.After(s.now()) {
        return nil, ErrValidation
    }
    if spec.MaxParticipant < 2 {
        return nil, ErrValidation
    }

    room := &model.Room{
        Title:              spec.Title,
        OwnerID:            ownerID,
        Departure:          strings.TrimSpace(spec.Departure),
        Destination:        strings.TrimSpace(spec.Destination),
        DepartureTime:      spec.DepartureTime.UTC(),
        MaxParticipant:     spec.MaxParticipant,
        CurrentParticipant: 1,
        Status:             model.RoomActive,
    }
    err := s.store.RunTx(ctx, func(tx Tx) error {
        if err := tx.InsertRoom(ctx, room); err != nil {
            return err
        }
        return tx.InsertMembership(ctx, &model.Membership{
            RoomID: room.ID,
            UserID: ownerID,
            Status: model.MemberJoined,
        })
    })
    if err != nil {
        return nil, err
    }
    return room, nil
}

// Join adds the user to the room.  A first-time joiner gets a fresh
// membership row, a LEFT row flips back to JOINED, a KICKED row is
// rejected and an already-JOINED row is an idempotent no-op.  The
// returned flag reports whether a join actually happened (and therefore a
// join system-message was emitted).
func (s *RoomService) Join(ctx context.Context, roomID, userID uint64) (*model.Room, bool, error) {
    var (
        room   *model.Room
        joined bool
    )
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status == model.RoomDeleted || r.Status == model.RoomDeactivated {
            return ErrInvalidState
        }

        m, err := tx.Membership(ctx, roomID, userID)
        switch {
        case err == ErrMembershipNotFound:
            if r.CurrentParticipant >= r.MaxParticipant {
                return ErrInvalidState
            }
            if err := tx.InsertMembership(ctx, &model.Membership{
                RoomID: roomID,
                UserID: userID,
                Status: model.MemberJoined,
            }); err != nil {
                return err
            }
            joined = true
        case err != nil:
            return err
        case m.Status == model.MemberKicked:
            return ErrForbidden
        case m.Status == model.MemberJoined:
            // Double join, e.g. a retried request.  Nothing to do.
            room = r
            return nil
        default: // LEFT -> JOINED re-entry
            if r.CurrentParticipant >= r.MaxParticipant {
                return ErrInvalidState
            }
            if err := tx.SetMembershipStatus(ctx, roomID, userID, model.MemberJoined, nil); err != nil {
                return err
            }
            joined = true
        }

        count, err := s.reconcileCount(ctx, tx, r, r.CurrentParticipant+1)
        if err != nil {
            return err
        }
        r.CurrentParticipant = count
        room = r
        return nil
    })
    if err != nil {
        return nil, false, err
    }
    if joined {
        s.announce(ctx, roomID, userID, "%s joined the room", Event{
            RoomID:      roomID,
            Kind:        EventMemberJoined,
            RespectMute: true,
            PushTitle:   room.Title,
        })
    }
    return room, joined, nil
}

// Leave marks the membership LEFT.  An owner can only leave when another
// JOINED member exists to take over; ownership then passes to the
// earliest surviving membership.  Leaving is blocked while a settlement
// is open.
func (s *RoomService) Leave(ctx context.Context, roomID, userID uint64) error {
    var (
        roomTitle string
        newOwner  uint64
    )
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status == model.RoomInSettlement {
            return ErrInvalidState
        }
        m, err := tx.Membership(ctx, roomID, userID)
        if err != nil {
            return err
        }
        if m.Status != model.MemberJoined {
            return ErrInvalidState
        }

        if r.OwnerID == userID {
            next, err := tx.EarliestJoinedExcept(ctx, roomID, userID)
            if err == ErrMembershipNotFound {
                return ErrInvalidState // no one to delegate to
            }
            if err != nil {
                return err
            }
            if err := tx.SetRoomOwner(ctx, roomID, next); err != nil {
                return err
            }
            newOwner = next
        }

        if err := tx.SetMembershipStatus(ctx, roomID, userID, model.MemberLeft, nil); err != nil {
            return err
        }
        if _, err := s.reconcileCount(ctx, tx, r, r.CurrentParticipant-1); err != nil {
            return err
        }
        roomTitle = r.Title
        return nil
    })
    if err != nil {
        return err
    }

    s.announce(ctx, roomID, userID, "%s left the room", Event{
        RoomID:      roomID,
        Kind:        EventMemberLeft,
        RespectMute: true,
        PushTitle:   roomTitle,
    })
    if newOwner != 0 {
        s.announce(ctx, roomID, newOwner, "%s is now the room owner", Event{
            RoomID:      roomID,
            Kind:        EventOwnerChanged,
            RespectMute: true,
            PushTitle:   roomTitle,
        })
    }
    return nil
}

// Kick removes a member by owner decision.  The membership row is kept
// with status KICKED and the reason, which permanently blocks re-joining
// until the kick is cancelled.
func (s *RoomService) Kick(ctx context.Context, roomID, actorID, targetID uint64, reason string) error {
    var roomTitle string
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status == model.RoomDeleted {
            return ErrInvalidState
        }
        if r.OwnerID != actorID {
            return ErrForbidden
        }
        if actorID == targetID {
            return ErrValidation
        }
        m, err := tx.Membership(ctx, roomID, targetID)
        if err != nil {
            return err
        }
        if m.Status != model.MemberJoined {
            return ErrInvalidState
        }
        var kickReason *string
        if reason = strings.TrimSpace(reason); reason != "" {
            kickReason = &reason
        }
        if err := tx.SetMembershipStatus(ctx, roomID, targetID, model.MemberKicked, kickReason); err != nil {
            return err
        }
        if _, err := s.reconcileCount(ctx, tx, r, r.CurrentParticipant-1); err != nil {
            return err
        }
        roomTitle = r.Title
        return nil
    })
    if err != nil {
        return err
    }

    // The target is no longer JOINED, so list them explicitly; kicks
    // ignore mute settings.
    s.announce(ctx, roomID, targetID, "%s was removed from the room", Event{
        RoomID:    roomID,
        Kind:      EventMemberKicked,
        PushTitle: roomTitle,
        PushBody:  "You were removed from the room",
        Extra:     []uint64{targetID},
    })
    return nil
}

// CancelKick erases a KICKED membership row outright so the user can join
// again as if never seen.  Unlike leave, no history survives; this
// asymmetry is deliberate.
func (s *RoomService) CancelKick(ctx context.Context, roomID, actorID uint64, actorRole string, targetID uint64) error {
    return s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.OwnerID != actorID && actorRole != "ADMIN" {
            return ErrForbidden
        }
        m, err := tx.Membership(ctx, roomID, targetID)
        if err != nil {
            return err
        }
        if m.Status != model.MemberKicked {
            return ErrInvalidState
        }
        return tx.DeleteMembership(ctx, roomID, targetID)
    })
}

// DelegateOwnership hands the room to another JOINED member.
func (s *RoomService) DelegateOwnership(ctx context.Context, roomID, currentOwnerID, newOwnerID uint64) error {
    var roomTitle string
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.OwnerID != currentOwnerID {
            return ErrForbidden
        }
        if newOwnerID == currentOwnerID {
            return ErrValidation
        }
        m, err := tx.Membership(ctx, roomID, newOwnerID)
        if err != nil {
            return err
        }
        if m.Status != model.MemberJoined {
            return ErrInvalidState
        }
        roomTitle = r.Title
        return tx.SetRoomOwner(ctx, roomID, newOwnerID)
    })
    if err != nil {
        return err
    }
    s.announce(ctx, roomID, newOwnerID, "%s is now the room owner", Event{
        RoomID:      roomID,
        Kind:        EventOwnerChanged,
        RespectMute: true,
        PushTitle:   roomTitle,
    })
    return nil
}

// Update applies a partial edit by the owner or an admin and returns the
// field-level diff against the pre-update snapshot for broadcasting.
// Rooms that are COMPLETED or DELETED cannot be edited, and a new
// departure time must lie in the future.
func (s *RoomService) Update(ctx context.Context, roomID, actorID uint64, actorRole string, patch RoomPatch) (map[string]any, error) {
    diff := map[string]any{}
    var roomTitle string
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status == model.RoomCompleted || r.Status == model.RoomDeleted {
            return ErrInvalidState
        }
        if r.OwnerID != actorID && actorRole != "ADMIN" {
            return ErrForbidden
        }
        if patch.DepartureTime != nil && !patch.DepartureTime.After(s.now()) {
            return ErrValidation
        }
        if patch.MaxParticipant != nil && *patch.MaxParticipant < r.CurrentParticipant {
            return ErrValidation
        }

        if patch.Title != nil && *patch.Title != r.Title {
            diff["title"] = *patch.Title
        }
        if patch.Departure != nil && *patch.Departure != r.Departure {
            diff["departure"] = *patch.Departure
        }
        if patch.Destination != nil && *patch.Destination != r.Destination {
            diff["destination"] = *patch.Destination
        }
        if patch.DepartureTime != nil && !patch.DepartureTime.Equal(r.DepartureTime) {
            diff["departure_time"] = patch.DepartureTime.UTC()
        }
        if patch.MaxParticipant != nil && *patch.MaxParticipant != r.MaxParticipant {
            diff["max_participant"] = *patch.MaxParticipant
        }
        if len(diff) == 0 {
            return nil
        }
        roomTitle = r.Title
        return tx.UpdateRoomFields(ctx, roomID, patch)
    })
    if err != nil {
        return nil, err
    }
    if len(diff) > 0 {
        if _, err := s.chat.AppendSystem(ctx, roomID, "Room details were updated"); err != nil {
            log.Printf("rooms: append system message failed for room %d: %v", roomID, err)
        }
        s.publish(ctx, Event{
            RoomID:      roomID,
            Kind:        EventRoomUpdated,
            Payload:     diff,
            RespectMute: true,
            PushTitle:   roomTitle,
            PushBody:    "Room details were updated",
        })
    }
    return diff, nil
}

// Remove soft-deletes the room.  History (memberships, messages) is
// retained.  Blocked while a settlement is open.
func (s *RoomService) Remove(ctx context.Context, roomID, actorID uint64, actorRole string) error {
    var roomTitle string
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status == model.RoomDeleted || r.Status == model.RoomInSettlement {
            return ErrInvalidState
        }
        if r.OwnerID != actorID && actorRole != "ADMIN" {
            return ErrForbidden
        }
        roomTitle = r.Title
        return tx.SetRoomStatus(ctx, roomID, model.RoomDeleted)
    })
    if err != nil {
        return err
    }
    s.publish(ctx, Event{
        RoomID:    roomID,
        Kind:      EventRoomDeleted,
        PushTitle: roomTitle,
        PushBody:  "The room was closed",
    })
    return nil
}

// Deactivate retires an ACTIVE room without deleting it, e.g. after the
// departure passed with no ride.
func (s *RoomService) Deactivate(ctx context.Context, roomID, actorID uint64, actorRole string) error {
    return s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status != model.RoomActive {
            return ErrInvalidState
        }
        if r.OwnerID != actorID && actorRole != "ADMIN" {
            return ErrForbidden
        }
        return tx.SetRoomStatus(ctx, roomID, model.RoomDeactivated)
    })
}

// Get returns the room and its JOINED roster.
func (s *RoomService) Get(ctx context.Context, roomID uint64) (*model.Room, []model.Membership, error) {
    room, err := s.store.Room(ctx, roomID)
    if err != nil {
        return nil, nil, err
    }
    members, err := s.store.JoinedMembers(ctx, roomID)
    if err != nil {
        return nil, nil, err
    }
    return room, members, nil
}

// List returns rooms matching the filter for the browse endpoint.
func (s *RoomService) List(ctx context.Context, f RoomFilter) ([]model.Room, error) {
    return s.store.ListRooms(ctx, f)
}

// EnsureJoined verifies the user is a JOINED member of an existing,
// non-deleted room.  Used by the chat and mute entry points.
func (s *RoomService) EnsureJoined(ctx context.Context, roomID, userID uint64) (*model.Membership, error) {
    room, err := s.store.Room(ctx, roomID)
    if err != nil {
        return nil, err
    }
    if room.Status == model.RoomDeleted {
        return nil, ErrInvalidState
    }
    m, err := s.store.Membership(ctx, roomID, userID)
    if err != nil {
        return nil, err
    }
    if m.Status != model.MemberJoined {
        return nil, ErrForbidden
    }
    return m, nil
}

// SetMuted flips the caller's mute flag for the room.
func (s *RoomService) SetMuted(ctx context.Context, roomID, userID uint64, muted bool) error {
    if _, err := s.EnsureJoined(ctx, roomID, userID); err != nil {
        return err
    }
    return s.store.SetMuted(ctx, roomID, userID, muted)
}

// reconcileCount recomputes the participant counter from the JOINED rows
// inside the running transaction and persists it.  A mismatch with the
// naively expected value is logged as a data-integrity warning but never
// fails the operation; the recompute is the correction.
func (s *RoomService) reconcileCount(ctx context.Context, tx Tx, room *model.Room, expected int) (int, error) {
    count, err := tx.CountJoined(ctx, room.ID)
    if err != nil {
        return 0, err
    }
    if count != expected {
        log.Printf("rooms: participant count mismatch for room %d: stored %d expected %d recomputed %d",
            room.ID, room.CurrentParticipant, expected, count)
    }
    if err := tx.SetParticipantCount(ctx, room.ID, count); err != nil {
        return 0, err
    }
    return count, nil
}

// announce writes a system message mentioning the user and publishes the
// event carrying both the message and the subject user.  Failures here
// must not undo the committed lifecycle change, so they are only logged.
func (s *RoomService) announce(ctx context.Context, roomID, userID uint64, format string, ev Event) {
    nick, err := s.names.Nickname(ctx, userID)
    if err != nil {
        log.Printf("rooms: nickname lookup failed for user %d: %v", userID, err)
        nick = "A member"
    }
    text := fmt.Sprintf(format, nick)
    msg, err := s.chat.AppendSystem(ctx, roomID, text)
    if err != nil {
        log.Printf("rooms: append system message failed for room %d: %v", roomID, err)
    }
    payload := map[string]any{"user_id": userID, "nickname": nick}
    if msg != nil {
        payload["message"] = messagePayload(msg)
    }
    ev.Payload = payload
    if ev.PushBody == "" {
        ev.PushBody = text
    }
    s.publish(ctx, ev)
}

func (s *RoomService) publish(ctx context.Context, ev Event) {
    if s.notifier == nil {
        return
    }
    if err := s.notifier.Publish(ctx, ev); err != nil {
        log.Printf("rooms: publish %s failed for room %d: %v", ev.Kind, ev.RoomID, err)
    }
}
