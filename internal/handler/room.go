package handler

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/seojunpark/carpool-backend/internal/model"
    "github.com/seojunpark/carpool-backend/internal/service"
)

// RoomHandler exposes the room lifecycle over HTTP.
type RoomHandler struct {
    Rooms *service.RoomService
}

func NewRoomHandler(rooms *service.RoomService) *RoomHandler {
    return &RoomHandler{Rooms: rooms}
}

// ----- DTOs -----

type createRoomReq struct {
    Title          string    `json:"title"`
    Departure      string    `json:"departure"`
    Destination    string    `json:"destination"`
    DepartureTime  time.Time `json:"departure_time"`
    MaxParticipant int       `json:"max_participant"`
}

type updateRoomReq struct {
    Title          *string    `json:"title"`
    Departure      *string    `json:"departure"`
    Destination    *string    `json:"destination"`
    DepartureTime  *time.Time `json:"departure_time"`
    MaxParticipant *int       `json:"max_participant"`
}

type kickReq struct {
    UserID uint64 `json:"user_id"`
    Reason string `json:"reason"`
}

type delegateReq struct {
    UserID uint64 `json:"user_id"`
}

type muteReq struct {
    Muted bool `json:"muted"`
}

type roomView struct {
    ID                 uint64           `json:"id"`
    Title              string           `json:"title"`
    OwnerID            uint64           `json:"owner_id"`
    Departure          string           `json:"departure"`
    Destination        string           `json:"destination"`
    DepartureTime      time.Time        `json:"departure_time"`
    MaxParticipant     int              `json:"max_participant"`
    CurrentParticipant int              `json:"current_participant"`
    Status             model.RoomStatus `json:"status"`
    CreatedAt          time.Time        `json:"created_at"`
}

type memberView struct {
    UserID uint64                 `json:"user_id"`
    Status model.MembershipStatus `json:"status"`
    Paid   bool                   `json:"paid"`
    Muted  bool                   `json:"muted"`
}

func toRoomView(r *model.Room) roomView {
    return roomView{
        ID:                 r.ID,
        Title:              r.Title,
        OwnerID:            r.OwnerID,
        Departure:          r.Departure,
        Destination:        r.Destination,
        DepartureTime:      r.DepartureTime,
        MaxParticipant:     r.MaxParticipant,
        CurrentParticipant: r.CurrentParticipant,
        Status:             r.Status,
        CreatedAt:          r.CreatedAt,
    }
}

// Create handles POST /v1/rooms. The creator becomes the owner and first
// member.
func (h *RoomHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req createRoomReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    room, err := h.Rooms.Create(c.Request().Context(), uid, service.CreateRoomSpec{
        Title:          req.Title,
        Departure:      req.Departure,
        Destination:    req.Destination,
        DepartureTime:  req.DepartureTime,
        MaxParticipant: req.MaxParticipant,
    })
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusCreated, toRoomView(room))
}

// List handles GET /v1/rooms with optional status, departure, destination
// and paging query parameters. Responses on this route are cached.
func (h *RoomHandler) List(c echo.Context) error {
    f := service.RoomFilter{
        Departure:   c.QueryParam("departure"),
        Destination: c.QueryParam("destination"),
    }
    if s := c.QueryParam("status"); s != "" {
        f.Status = model.RoomStatus(s)
    } else {
        f.Status = model.RoomActive
    }
    if v := c.QueryParam("limit"); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            f.Limit = n
        }
    }
    if v := c.QueryParam("offset"); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            f.Offset = n
        }
    }
    rooms, err := h.Rooms.List(c.Request().Context(), f)
    if err != nil {
        return writeServiceError(c, err)
    }
    out := make([]roomView, 0, len(rooms))
    for i := range rooms {
        out = append(out, toRoomView(&rooms[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"rooms": out})
}

// Get handles GET /v1/rooms/:id and includes the joined member list.
func (h *RoomHandler) Get(c echo.Context) error {
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    room, members, err := h.Rooms.Get(c.Request().Context(), roomID)
    if err != nil {
        return writeServiceError(c, err)
    }
    mv := make([]memberView, 0, len(members))
    for _, m := range members {
        mv = append(mv, memberView{UserID: m.UserID, Status: m.Status, Paid: m.Paid, Muted: m.Muted})
    }
    return c.JSON(http.StatusOK, echo.Map{"room": toRoomView(room), "members": mv})
}

// Join handles POST /v1/rooms/:id/join. Joining twice is not an error;
// the response reports whether membership actually changed.
func (h *RoomHandler) Join(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    room, joined, err := h.Rooms.Join(c.Request().Context(), roomID, uid)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"room": toRoomView(room), "joined": joined})
}

// Leave handles POST /v1/rooms/:id/leave.
func (h *RoomHandler) Leave(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    if err := h.Rooms.Leave(c.Request().Context(), roomID, uid); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Kick handles POST /v1/rooms/:id/kick. Owner only.
func (h *RoomHandler) Kick(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req kickReq
    if err := c.Bind(&req); err != nil || req.UserID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
    }
    if err := h.Rooms.Kick(c.Request().Context(), roomID, uid, req.UserID, req.Reason); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// CancelKick handles POST /v1/rooms/:id/kick/cancel. The kicked user's
// membership row is removed entirely so a later join starts fresh.
func (h *RoomHandler) CancelKick(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req delegateReq
    if err := c.Bind(&req); err != nil || req.UserID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
    }
    if err := h.Rooms.CancelKick(c.Request().Context(), roomID, uid, getRole(c), req.UserID); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Delegate handles POST /v1/rooms/:id/delegate, transferring ownership to
// another joined member.
func (h *RoomHandler) Delegate(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req delegateReq
    if err := c.Bind(&req); err != nil || req.UserID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
    }
    if err := h.Rooms.DelegateOwnership(c.Request().Context(), roomID, uid, req.UserID); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Update handles PATCH /v1/rooms/:id. Only provided fields change; the
// response body echoes the applied diff.
func (h *RoomHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req updateRoomReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    diff, err := h.Rooms.Update(c.Request().Context(), roomID, uid, getRole(c), service.RoomPatch{
        Title:          req.Title,
        Departure:      req.Departure,
        Destination:    req.Destination,
        DepartureTime:  req.DepartureTime,
        MaxParticipant: req.MaxParticipant,
    })
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"updated": diff})
}

// Remove handles DELETE /v1/rooms/:id (soft delete).
func (h *RoomHandler) Remove(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    if err := h.Rooms.Remove(c.Request().Context(), roomID, uid, getRole(c)); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Deactivate handles POST /v1/rooms/:id/deactivate.
func (h *RoomHandler) Deactivate(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    if err := h.Rooms.Deactivate(c.Request().Context(), roomID, uid, getRole(c)); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// SetMute handles PUT /v1/rooms/:id/mute for the calling member.
func (h *RoomHandler) SetMute(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req muteReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.Rooms.SetMuted(c.Request().Context(), roomID, uid, req.Muted); err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"muted": req.Muted})
}
