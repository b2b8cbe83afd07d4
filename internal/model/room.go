package model

import "time"

// RoomStatus enumerates the lifecycle states of a carpool room.  The
// transitions are enforced by the service layer: ACTIVE may move to
// IN_SETTLEMENT, DEACTIVATED or DELETED; IN_SETTLEMENT may move back to
// ACTIVE (settlement cancelled), forward to COMPLETED, or to DELETED;
// COMPLETED and DELETED are terminal.
type RoomStatus string

const (
    RoomActive       RoomStatus = "ACTIVE"
    RoomInSettlement RoomStatus = "IN_SETTLEMENT"
    RoomCompleted    RoomStatus = "COMPLETED"
    RoomDeactivated  RoomStatus = "DEACTIVATED"
    RoomDeleted      RoomStatus = "DELETED"
)

// Room mirrors the `rooms` table.  The settlement columns are null until a
// settlement is requested; they hold a snapshot of the payer's account at
// request time so that later reads do not depend on the live account row.
//
// Invariant: CurrentParticipant always equals the number of memberships for
// this room whose status is JOINED.  The repository recomputes it from a
// count query inside the same transaction as any membership write.
type Room struct {
    ID                 uint64     // rooms.id
    Title              string     // rooms.title
    OwnerID            uint64     // rooms.owner_id
    Departure          string     // rooms.departure
    Destination        string     // rooms.destination
    DepartureTime      time.Time  // rooms.departure_time (UTC)
    MaxParticipant     int        // rooms.max_participant
    CurrentParticipant int        // rooms.current_participant
    Status             RoomStatus // rooms.status
    PayerID            *uint64    // rooms.payer_id (null unless settling)
    PayAmount          *int64     // rooms.pay_amount, smallest currency unit
    PayerAccountEnc    *string    // rooms.payer_account_enc, AES-GCM, base64
    PayerAccountHolder *string    // rooms.payer_account_holder
    PayerBankName      *string    // rooms.payer_bank_name
    CreatedAt          time.Time  // rooms.created_at
    UpdatedAt          time.Time  // rooms.updated_at
}

// Settling reports whether the room currently carries an open settlement.
func (r *Room) Settling() bool { return r.Status == RoomInSettlement }
