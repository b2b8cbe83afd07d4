// Package service implements the room lifecycle, settlement, chat ledger
// and notification routing engines.  Handlers translate the sentinel
// errors defined here into stable HTTP statuses: ErrValidation -> 400,
// ErrForbidden -> 403, the *NotFound values -> 404 and ErrInvalidState
// -> 409.  Everything else is an unexpected datastore failure.
package service

import "errors"

// ErrRoomNotFound is returned when the referenced room does not exist.
var ErrRoomNotFound = errors.New("room not found")

// ErrMembershipNotFound is returned when the caller or target has no
// membership row in the room.
var ErrMembershipNotFound = errors.New("membership not found")

// ErrMessageNotFound is returned when a message token does not resolve in
// a context where the message is required (edit, delete).  Pagination
// deliberately does not use it: a stale cursor yields an empty page.
var ErrMessageNotFound = errors.New("message not found")

// ErrSettlementNotFound is returned when a settlement view is requested
// but the room carries no (complete) settlement snapshot.  It is distinct
// from ErrRoomNotFound so callers can tell "no settlement yet" apart from
// "no such room".
var ErrSettlementNotFound = errors.New("settlement not found")

// ErrInvalidState is returned when an operation is not valid for the
// room's current lifecycle status, e.g. settling a DELETED room or
// leaving during settlement.
var ErrInvalidState = errors.New("invalid state")

// ErrForbidden is returned when an ownership or role check fails, e.g. a
// non-owner kicking or a non-payer mutating the settlement.
var ErrForbidden = errors.New("forbidden")

// ErrValidation is returned for malformed input, e.g. a departure time in
// the past or a non-positive settlement amount.
var ErrValidation = errors.New("validation failed")
