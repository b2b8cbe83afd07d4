package model

import "time"

// MembershipStatus enumerates a user's relationship to a room.  A row is
// created on first join and never deleted by leave or kick; status
// transitions carry the history.  The single exception is kick
// cancellation, which removes the row so the user can be invited fresh.
type MembershipStatus string

const (
    MemberJoined MembershipStatus = "JOINED"
    MemberLeft   MembershipStatus = "LEFT"
    MemberKicked MembershipStatus = "KICKED"
)

// Membership mirrors the `room_members` table, one row per (room, user).
//
// Fields:
//  RoomID        – room_members.room_id
//  UserID        – room_members.user_id
//  Status        – room_members.status (JOINED | LEFT | KICKED)
//  Paid          – room_members.paid, reset at each settlement cycle
//  Muted         – room_members.muted, suppresses routine chat pushes
//  KickReason    – room_members.kick_reason (null unless KICKED)
//  LastReadToken – room_members.last_read_token, public token of the last
//                  message the user has read (null when never saved)
type Membership struct {
    RoomID        uint64
    UserID        uint64
    Status        MembershipStatus
    Paid          bool
    Muted         bool
    KickReason    *string
    LastReadToken *string
    CreatedAt     time.Time
    UpdatedAt     time.Time
}
