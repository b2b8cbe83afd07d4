package handler

import (
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/seojunpark/carpool-backend/internal/model"
    "github.com/seojunpark/carpool-backend/internal/service"
)

// ChatHandler exposes room chat: append, backward paging, last message,
// read position and message edit/delete. Message writes publish the
// corresponding room event so live members see them immediately.
type ChatHandler struct {
    Chat     *service.ChatService
    Rooms    *service.RoomService
    Notifier *service.Notifier
}

func NewChatHandler(chat *service.ChatService, rooms *service.RoomService, notifier *service.Notifier) *ChatHandler {
    return &ChatHandler{Chat: chat, Rooms: rooms, Notifier: notifier}
}

type appendMessageReq struct {
    Content string `json:"content"`
}

// Append handles POST /v1/rooms/:id/messages. Only JOINED members can
// post.
func (h *ChatHandler) Append(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req appendMessageReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "content required"})
    }
    ctx := c.Request().Context()
    if _, err := h.Rooms.EnsureJoined(ctx, roomID, uid); err != nil {
        return writeServiceError(c, err)
    }
    m, err := h.Chat.AppendUser(ctx, roomID, uid, req.Content)
    if err != nil {
        return writeServiceError(c, err)
    }
    title := ""
    if m.SenderNickname != nil {
        title = *m.SenderNickname
    }
    _ = h.Notifier.Publish(ctx, service.Event{
        RoomID:      roomID,
        Kind:        service.EventMessageCreated,
        Payload:     service.MessagePayload(m),
        RespectMute: true,
        PushTitle:   title,
        PushBody:    m.Content,
    })
    return c.JSON(http.StatusCreated, service.MessagePayload(m))
}

// Page handles GET /v1/rooms/:id/messages. The optional "before" query
// parameter is a message token; paging walks strictly backward from it.
func (h *ChatHandler) Page(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    ctx := c.Request().Context()
    if _, err := h.Rooms.EnsureJoined(ctx, roomID, uid); err != nil {
        return writeServiceError(c, err)
    }
    limit := 0
    if v := c.QueryParam("limit"); v != "" {
        if n, err := strconv.Atoi(v); err == nil {
            limit = n
        }
    }
    msgs, err := h.Chat.PageBefore(ctx, roomID, c.QueryParam("before"), limit)
    if err != nil {
        return writeServiceError(c, err)
    }
    out := make([]map[string]any, 0, len(msgs))
    for i := range msgs {
        out = append(out, service.MessagePayload(&msgs[i]))
    }
    return c.JSON(http.StatusOK, echo.Map{"messages": out})
}

// Last handles GET /v1/rooms/:id/messages/last, used for room list
// previews.
func (h *ChatHandler) Last(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    ctx := c.Request().Context()
    if _, err := h.Rooms.EnsureJoined(ctx, roomID, uid); err != nil {
        return writeServiceError(c, err)
    }
    m, err := h.Chat.LastMessage(ctx, roomID)
    if err != nil {
        return writeServiceError(c, err)
    }
    if m == nil {
        return c.JSON(http.StatusOK, echo.Map{"message": nil})
    }
    return c.JSON(http.StatusOK, echo.Map{"message": service.MessagePayload(m)})
}

// MarkRead handles PUT /v1/rooms/:id/read, pinning the caller's read
// pointer at the room's newest message.
func (h *ChatHandler) MarkRead(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    ctx := c.Request().Context()
    if _, err := h.Rooms.EnsureJoined(ctx, roomID, uid); err != nil {
        return writeServiceError(c, err)
    }
    if err := h.Chat.SaveReadPosition(ctx, roomID, uid); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Edit handles PATCH /v1/rooms/:id/messages/:token. Sender only.
func (h *ChatHandler) Edit(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    token := c.Param("token")
    var req appendMessageReq
    if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Content) == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "content required"})
    }
    ctx := c.Request().Context()
    m, err := h.Chat.Edit(ctx, token, uid, req.Content)
    if err != nil {
        return writeServiceError(c, err)
    }
    _ = h.Notifier.Publish(ctx, service.Event{
        RoomID:      m.RoomID,
        Kind:        service.EventMessageUpdated,
        Payload:     service.MessagePayload(m),
        RespectMute: true,
    })
    return c.JSON(http.StatusOK, service.MessagePayload(m))
}

// Delete handles DELETE /v1/rooms/:id/messages/:token. The row is kept
// and tombstoned so paging stays stable.
func (h *ChatHandler) Delete(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    token := c.Param("token")
    ctx := c.Request().Context()
    var m *model.Message
    if c.QueryParam("hard") == "true" && getRole(c) == "ADMIN" {
        m, err = h.Chat.HardDelete(ctx, token)
    } else {
        m, err = h.Chat.SoftDelete(ctx, token, uid)
    }
    if err != nil {
        return writeServiceError(c, err)
    }
    _ = h.Notifier.Publish(ctx, service.Event{
        RoomID:      m.RoomID,
        Kind:        service.EventMessageDeleted,
        Payload:     service.MessagePayload(m),
        RespectMute: true,
    })
    return c.NoContent(http.StatusNoContent)
}
