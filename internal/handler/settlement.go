package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/seojunpark/carpool-backend/internal/service"
)

// SettlementHandler exposes the settlement state machine over HTTP. All
// routes live under /v1/rooms/:id/settlement.
type SettlementHandler struct {
    Settlements *service.SettlementService
}

func NewSettlementHandler(s *service.SettlementService) *SettlementHandler {
    return &SettlementHandler{Settlements: s}
}

type settlementReq struct {
    Amount        int64  `json:"amount"`
    UpdateAccount bool   `json:"update_account"`
    AccountNumber string `json:"account_number"`
    AccountHolder string `json:"account_holder"`
    BankName      string `json:"bank_name"`
}

type payStatusReq struct {
    UserID uint64 `json:"user_id"`
    Paid   bool   `json:"paid"`
}

func (r settlementReq) toService() service.SettlementRequest {
    return service.SettlementRequest{
        Amount:        r.Amount,
        UpdateAccount: r.UpdateAccount,
        AccountNumber: r.AccountNumber,
        AccountHolder: r.AccountHolder,
        BankName:      r.BankName,
    }
}

// Request handles POST /v1/rooms/:id/settlement. The caller becomes the
// payer and the room enters IN_SETTLEMENT.
func (h *SettlementHandler) Request(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req settlementReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.Settlements.Request(c.Request().Context(), roomID, uid, req.toService()); err != nil {
        return writeServiceError(c, err)
    }
    view, err := h.Settlements.Get(c.Request().Context(), roomID, uid, getRole(c))
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusCreated, view)
}

// Update handles PATCH /v1/rooms/:id/settlement. Payer only; resets every
// other member's paid flag.
func (h *SettlementHandler) Update(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req settlementReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.Settlements.Update(c.Request().Context(), roomID, uid, req.toService()); err != nil {
        return writeServiceError(c, err)
    }
    view, err := h.Settlements.Get(c.Request().Context(), roomID, uid, getRole(c))
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, view)
}

// Cancel handles DELETE /v1/rooms/:id/settlement, returning the room to
// ACTIVE and clearing the snapshot.
func (h *SettlementHandler) Cancel(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    if err := h.Settlements.Cancel(c.Request().Context(), roomID, uid); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Complete handles POST /v1/rooms/:id/settlement/complete, moving the
// room to its terminal COMPLETED state.
func (h *SettlementHandler) Complete(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    if err := h.Settlements.Complete(c.Request().Context(), roomID, uid, getRole(c)); err != nil {
        return writeServiceError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Get handles GET /v1/rooms/:id/settlement.  Members only: the view
// includes the payer's account number.
func (h *SettlementHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    view, err := h.Settlements.Get(c.Request().Context(), roomID, uid, getRole(c))
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, view)
}

// GetPayStatus handles GET /v1/rooms/:id/settlement/pay-status for the
// calling member.
func (h *SettlementHandler) GetPayStatus(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    paid, err := h.Settlements.GetUserPayStatus(c.Request().Context(), roomID, uid)
    if err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"user_id": uid, "paid": paid})
}

// SetPayStatus handles PUT /v1/rooms/:id/settlement/pay-status. A member
// may flag themselves; the payer or an admin may flag anyone.
func (h *SettlementHandler) SetPayStatus(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    roomID, err := pathID(c, "id")
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid room id"})
    }
    var req payStatusReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    target := req.UserID
    if target == 0 {
        target = uid
    }
    if err := h.Settlements.SetUserPayStatus(c.Request().Context(), roomID, uid, getRole(c), target, req.Paid); err != nil {
        return writeServiceError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"user_id": target, "paid": req.Paid})
}
