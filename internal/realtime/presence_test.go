package realtime

import (
    "context"
    "fmt"
    "testing"
)

// recordingReads captures SaveReadPosition calls.
type recordingReads struct {
    saved []string
}

func (r *recordingReads) SaveReadPosition(ctx context.Context, roomID, userID uint64) error {
    r.saved = append(r.saved, fmt.Sprintf("%d/%d", roomID, userID))
    return nil
}

func TestFocusLifecycle(t *testing.T) {
    ctx := context.Background()
    reads := &recordingReads{}
    reg := NewRegistry(reads)

    conn := NewConnection(5, nil)
    reg.OnConnect(conn)

    if !reg.Connected(5) {
        t.Fatal("user not connected after OnConnect")
    }
    if _, ok := reg.GetFocus(5); ok {
        t.Fatal("fresh connection reports a focus")
    }

    reg.SetFocus(ctx, conn, 3)
    if room, ok := reg.GetFocus(5); !ok || room != 3 {
        t.Fatalf("focus = %d/%v, want 3/true", room, ok)
    }

    // Moving focus to another room saves the read position in the old one.
    reg.SetFocus(ctx, conn, 4)
    if len(reads.saved) != 1 || reads.saved[0] != "3/5" {
        t.Fatalf("saved = %v, want [3/5]", reads.saved)
    }

    // Blur clears focus and saves again.
    reg.SetFocus(ctx, conn, 0)
    if _, ok := reg.GetFocus(5); ok {
        t.Fatal("focus survived blur")
    }
    if len(reads.saved) != 2 || reads.saved[1] != "4/5" {
        t.Fatalf("saved = %v, want blur save for room 4", reads.saved)
    }
}

func TestDisconnectSavesReadPosition(t *testing.T) {
    ctx := context.Background()
    reads := &recordingReads{}
    reg := NewRegistry(reads)

    conn := NewConnection(5, nil)
    reg.OnConnect(conn)
    reg.SetFocus(ctx, conn, 7)

    reg.OnDisconnect(ctx, conn)
    if reg.Connected(5) {
        t.Fatal("user still connected after OnDisconnect")
    }
    if len(reads.saved) != 1 || reads.saved[0] != "7/5" {
        t.Fatalf("saved = %v, want [7/5]", reads.saved)
    }

    // A second disconnect for the same connection is a no-op.
    reg.OnDisconnect(ctx, conn)
    if len(reads.saved) != 1 {
        t.Fatalf("duplicate disconnect saved again: %v", reads.saved)
    }
}

func TestDisconnectWithoutFocusSavesNothing(t *testing.T) {
    ctx := context.Background()
    reads := &recordingReads{}
    reg := NewRegistry(reads)

    conn := NewConnection(5, nil)
    reg.OnConnect(conn)
    reg.OnDisconnect(ctx, conn)
    if len(reads.saved) != 0 {
        t.Fatalf("saved = %v, want none", reads.saved)
    }
}

func TestGetFocusAcrossConnections(t *testing.T) {
    ctx := context.Background()
    reg := NewRegistry(nil)

    phone := NewConnection(5, nil)
    laptop := NewConnection(5, nil)
    reg.OnConnect(phone)
    reg.OnConnect(laptop)

    reg.SetFocus(ctx, laptop, 3)
    if room, ok := reg.GetFocus(5); !ok || room != 3 {
        t.Fatalf("focus = %d/%v, want 3 via laptop", room, ok)
    }

    // Dropping the focused connection leaves the other, unfocused one.
    reg.OnDisconnect(ctx, laptop)
    if _, ok := reg.GetFocus(5); ok {
        t.Fatal("focus survived the focused connection's disconnect")
    }
    if !reg.Connected(5) {
        t.Fatal("other connection dropped too")
    }
}

func TestSetFocusAfterDisconnectIsIgnored(t *testing.T) {
    ctx := context.Background()
    reg := NewRegistry(nil)

    conn := NewConnection(5, nil)
    reg.OnConnect(conn)
    reg.OnDisconnect(ctx, conn)

    reg.SetFocus(ctx, conn, 3)
    if _, ok := reg.GetFocus(5); ok {
        t.Fatal("focus recorded for a disconnected connection")
    }
}

func TestSetFocusOnDisconnectedDeviceWithAnotherLive(t *testing.T) {
    ctx := context.Background()
    reg := NewRegistry(nil)

    phone := NewConnection(5, nil)
    laptop := NewConnection(5, nil)
    reg.OnConnect(phone)
    reg.OnConnect(laptop)
    reg.OnDisconnect(ctx, phone)

    // A late focus frame from the dead device must not register while
    // the user is still online on another one.
    reg.SetFocus(ctx, phone, 3)
    if _, ok := reg.GetFocus(5); ok {
        t.Fatal("focus recorded for a disconnected connection")
    }
    if _, ok := reg.focus[phone]; ok {
        t.Fatal("focus map retains an entry for a disconnected connection")
    }

    reg.SetFocus(ctx, laptop, 4)
    if room, ok := reg.GetFocus(5); !ok || room != 4 {
        t.Fatalf("focus = %d/%v, want 4/true", room, ok)
    }
}
