package realtime

import (
    "context"
    "log"
    "sync"
)

// ReadSaver persists a member's read position when a focused connection
// disappears.  Implemented by the chat service.
type ReadSaver interface {
    SaveReadPosition(ctx context.Context, roomID, userID uint64) error
}

// Registry tracks which users are connected and which room each
// connection currently has in the foreground.  Entries are ephemeral:
// created on connect, destroyed on disconnect.  A user may hold several
// connections (several devices); each carries its own focus.
//
// All maps are guarded by mu.  Entries are only mutated by the
// connection that owns them, so contention is limited to fan-out reads.
type Registry struct {
    mu    sync.RWMutex
    conns map[uint64]map[*Connection]struct{} // userID -> live connections
    focus map[*Connection]uint64              // connection -> focused room (0 = none)

    reads ReadSaver
}

// NewRegistry constructs an empty registry.  reads may be nil in tests.
func NewRegistry(reads ReadSaver) *Registry {
    return &Registry{
        conns: make(map[uint64]map[*Connection]struct{}),
        focus: make(map[*Connection]uint64),
        reads: reads,
    }
}

// OnConnect registers a started connection under its user.
func (r *Registry) OnConnect(conn *Connection) {
    r.mu.Lock()
    set := r.conns[conn.UserID]
    if set == nil {
        set = make(map[*Connection]struct{})
        r.conns[conn.UserID] = set
    }
    set[conn] = struct{}{}
    r.mu.Unlock()
}

// OnDisconnect drops the connection.  If it had a focused room, the
// member's read position is saved first so the unread marker lands on
// the last message they actually saw.  A disconnect racing a focus
// update is harmless: the entry is checked under the lock and removed at
// most once.
func (r *Registry) OnDisconnect(ctx context.Context, conn *Connection) {
    r.mu.Lock()
    set, ok := r.conns[conn.UserID]
    if !ok {
        r.mu.Unlock()
        return
    }
    if _, ok := set[conn]; !ok {
        r.mu.Unlock()
        return
    }
    delete(set, conn)
    if len(set) == 0 {
        delete(r.conns, conn.UserID)
    }
    focused := r.focus[conn]
    delete(r.focus, conn)
    r.mu.Unlock()

    if focused != 0 && r.reads != nil {
        if err := r.reads.SaveReadPosition(ctx, focused, conn.UserID); err != nil {
            log.Printf("presence: save read position failed for user %d room %d: %v", conn.UserID, focused, err)
        }
    }
}

// SetFocus records the room the connection's client has in the
// foreground; roomID 0 clears the focus (client went to background or
// another screen).  Moving focus away from a room saves the member's
// read position there, same as a disconnect would.
func (r *Registry) SetFocus(ctx context.Context, conn *Connection, roomID uint64) {
    r.mu.Lock()
    set, ok := r.conns[conn.UserID]
    if !ok {
        r.mu.Unlock()
        return // disconnect already processed
    }
    if _, ok := set[conn]; !ok {
        // This connection is gone even though the user still has other
        // devices online; a late focus frame must not resurrect it.
        r.mu.Unlock()
        return
    }
    prev := r.focus[conn]
    if roomID == 0 {
        delete(r.focus, conn)
    } else {
        r.focus[conn] = roomID
    }
    r.mu.Unlock()

    if prev != 0 && prev != roomID && r.reads != nil {
        if err := r.reads.SaveReadPosition(ctx, prev, conn.UserID); err != nil {
            log.Printf("presence: save read position failed for user %d room %d: %v", conn.UserID, prev, err)
        }
    }
}

// GetFocus returns the room the user has focused over any live
// connection.  ok is false when the user is offline or nothing is
// focused.
func (r *Registry) GetFocus(userID uint64) (uint64, bool) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    for conn := range r.conns[userID] {
        if roomID, ok := r.focus[conn]; ok && roomID != 0 {
            return roomID, true
        }
    }
    return 0, false
}

// Connected reports whether the user has at least one live connection.
func (r *Registry) Connected(userID uint64) bool {
    r.mu.RLock()
    defer r.mu.RUnlock()
    return len(r.conns[userID]) > 0
}

// SendToUser writes the payload to every live connection of the user and
// returns how many connections accepted it.
func (r *Registry) SendToUser(userID uint64, payload []byte) int {
    r.mu.RLock()
    targets := make([]*Connection, 0, len(r.conns[userID]))
    for conn := range r.conns[userID] {
        targets = append(targets, conn)
    }
    r.mu.RUnlock()

    delivered := 0
    for _, conn := range targets {
        if err := conn.Send(payload); err == nil {
            delivered++
        }
    }
    return delivered
}
