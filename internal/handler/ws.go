package handler

import (
    "context"
    "encoding/json"
    "log"
    "net/http"
    "time"

    "github.com/gorilla/websocket"
    "github.com/labstack/echo/v4"

    "github.com/seojunpark/carpool-backend/internal/realtime"
    "github.com/seojunpark/carpool-backend/internal/service"
)

const (
    readWait       = 90 * time.Second
    maxMessageSize = 4096
)

// WSHandler upgrades /ws and runs the per-connection read loop. Clients
// send focus/blur frames to tell the server which room is in the
// foreground; everything else arrives over the REST API, so the socket is
// receive-mostly.
type WSHandler struct {
    Registry *realtime.Registry
    Rooms    *service.RoomService

    upgrader websocket.Upgrader
}

func NewWSHandler(registry *realtime.Registry, rooms *service.RoomService) *WSHandler {
    return &WSHandler{
        Registry: registry,
        Rooms:    rooms,
        upgrader: websocket.Upgrader{
            ReadBufferSize:  1024,
            WriteBufferSize: 1024,
            // Mobile clients connect from app schemes, not browser origins.
            CheckOrigin: func(*http.Request) bool { return true },
        },
    }
}

// clientFrame is the only inbound message shape: focus (room_id set) or
// blur (room_id zero or type "blur").
type clientFrame struct {
    Type   string `json:"type"`
    RoomID uint64 `json:"room_id"`
}

// Serve handles GET /ws. JWT middleware has already authenticated the
// request (via the token query parameter for browser clients).
func (h *WSHandler) Serve(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
    if err != nil {
        // Upgrade already wrote the HTTP error response.
        return nil
    }

    conn := realtime.NewConnection(uid, ws)
    h.Registry.OnConnect(conn)
    conn.Start()

    ws.SetReadLimit(maxMessageSize)
    _ = ws.SetReadDeadline(time.Now().Add(readWait))
    ws.SetPongHandler(func(string) error {
        return ws.SetReadDeadline(time.Now().Add(readWait))
    })

    defer func() {
        // Use a fresh context: the request context dies with the handler
        // but the read-position save must still run.
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        defer cancel()
        h.Registry.OnDisconnect(ctx, conn)
        conn.Close(websocket.CloseNormalClosure, "")
    }()

    for {
        _, raw, err := ws.ReadMessage()
        if err != nil {
            if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
                log.Printf("ws: read error for user %d: %v", uid, err)
            }
            return nil
        }
        _ = ws.SetReadDeadline(time.Now().Add(readWait))

        var frame clientFrame
        if err := json.Unmarshal(raw, &frame); err != nil {
            continue // ignore malformed frames
        }
        switch frame.Type {
        case "focus":
            if frame.RoomID == 0 {
                continue
            }
            // Focusing a room requires being a member of it.
            if _, err := h.Rooms.EnsureJoined(c.Request().Context(), frame.RoomID, uid); err != nil {
                continue
            }
            h.Registry.SetFocus(c.Request().Context(), conn, frame.RoomID)
        case "blur":
            h.Registry.SetFocus(c.Request().Context(), conn, 0)
        }
    }
}
