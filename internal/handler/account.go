package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/seojunpark/carpool-backend/internal/model"
    "github.com/seojunpark/carpool-backend/internal/service"
)

// AccountHandler manages the caller's bank account used for settlement
// snapshots. Account numbers are encrypted at rest and only ever decrypted
// for the owning user or a settlement view.
type AccountHandler struct {
    Accounts service.AccountStore
    Cipher   service.Cipher
}

func NewAccountHandler(accounts service.AccountStore, cipher service.Cipher) *AccountHandler {
    return &AccountHandler{Accounts: accounts, Cipher: cipher}
}

type accountReq struct {
    AccountNumber string `json:"account_number"`
    AccountHolder string `json:"account_holder"`
    BankName      string `json:"bank_name"`
}

// Put handles PUT /v1/account, creating or replacing the caller's account.
func (h *AccountHandler) Put(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var req accountReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    req.AccountNumber = strings.TrimSpace(req.AccountNumber)
    req.AccountHolder = strings.TrimSpace(req.AccountHolder)
    req.BankName = strings.TrimSpace(req.BankName)
    if req.AccountNumber == "" || req.AccountHolder == "" || req.BankName == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "account_number/account_holder/bank_name required"})
    }
    enc, err := h.Cipher.Encrypt(req.AccountNumber)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "encrypt failed"})
    }
    acct := &model.BankAccount{
        UserID:     uid,
        NumberEnc:  enc,
        HolderName: req.AccountHolder,
        BankName:   req.BankName,
    }
    if err := h.Accounts.Upsert(c.Request().Context(), acct); err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save account failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "account_holder": req.AccountHolder,
        "bank_name":      req.BankName,
    })
}

// Get handles GET /v1/account, returning the caller's account with the
// number decrypted.
func (h *AccountHandler) Get(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    acct, err := h.Accounts.Get(c.Request().Context(), uid)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
    }
    if acct == nil {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "no account registered"})
    }
    number, err := h.Cipher.Decrypt(acct.NumberEnc)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "decrypt failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "account_number": number,
        "account_holder": acct.HolderName,
        "bank_name":      acct.BankName,
    })
}
