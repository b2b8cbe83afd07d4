package service

import (
    "context"
    "fmt"
    "log"
    "strings"

    "github.com/seojunpark/carpool-backend/internal/model"
)

// SettlementRequest carries the payer's input for requesting or updating
// a settlement.  Amount is in the smallest currency unit.  When
// UpdateAccount is set, the payer's stored bank account is replaced
// before the settlement snapshot is taken.
type SettlementRequest struct {
    Amount        int64
    UpdateAccount bool
    AccountNumber string
    AccountHolder string
    BankName      string
}

// SettlementView is the derived read model: room settlement fields plus
// the decrypted account snapshot and the computed per-person share.
type SettlementView struct {
    RoomID         uint64           `json:"room_id"`
    Status         model.RoomStatus `json:"status"`
    PayerID        uint64           `json:"payer_id"`
    Amount         int64            `json:"amount"`
    PerPersonShare int64            `json:"per_person_share"`
    Participants   int              `json:"participants"`
    AccountNumber  string           `json:"account_number"`
    AccountHolder  string           `json:"account_holder"`
    BankName       string           `json:"bank_name"`
}

// SettlementService layers the settlement state machine onto the room
// status: request moves ACTIVE -> IN_SETTLEMENT, cancel moves back (the
// only backward transition, allowed exactly while IN_SETTLEMENT) and
// complete moves to the terminal COMPLETED.
type SettlementService struct {
    store    Store
    accounts AccountStore
    cipher   Cipher
    chat     *ChatService
    notifier *Notifier
    names    NicknameLookup
}

func NewSettlementService(store Store, accounts AccountStore, cipher Cipher, chat *ChatService, notifier *Notifier, names NicknameLookup) *SettlementService {
    return &SettlementService{store: store, accounts: accounts, cipher: cipher, chat: chat, notifier: notifier, names: names}
}

// perPersonShare divides the total across the current participants,
// rounding up.  The payer may collect up to participants-1 units more
// than the nominal total; that remainder intentionally stays with them.
func perPersonShare(amount int64, participants int) int64 {
    if participants < 1 {
        participants = 1
    }
    n := int64(participants)
    return (amount + n - 1) / n
}

// Request opens a settlement: stores (optionally updated) payer account,
// snapshots it onto the room row together with payer and amount, moves
// the room to IN_SETTLEMENT and starts a fresh paid-flag cycle with only
// the payer marked paid.
func (s *SettlementService) Request(ctx context.Context, roomID, payerID uint64, req SettlementRequest) error {
    snapshot, err := s.prepareSnapshot(ctx, payerID, req)
    if err != nil {
        return err
    }

    err = s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status == model.RoomDeleted || r.Status == model.RoomCompleted || r.Status == model.RoomInSettlement {
            return ErrInvalidState
        }
        m, err := tx.Membership(ctx, roomID, payerID)
        if err != nil {
            return err
        }
        if m.Status != model.MemberJoined {
            return ErrForbidden
        }
        if err := tx.SetRoomSettlement(ctx, roomID, *snapshot); err != nil {
            return err
        }
        if err := tx.SetRoomStatus(ctx, roomID, model.RoomInSettlement); err != nil {
            return err
        }
        // New settlement cycle: everyone unpaid except the payer.
        if err := tx.ResetPaid(ctx, roomID); err != nil {
            return err
        }
        return tx.SetPaid(ctx, roomID, payerID, true)
    })
    if err != nil {
        return err
    }

    s.announce(ctx, roomID, payerID, "%s requested a settlement", EventSettlementRequested, map[string]any{
        "payer_id": payerID,
        "amount":   req.Amount,
    })
    return nil
}

// Update changes the open settlement's amount (and optionally the account
// snapshot).  Only the current payer may call it, and because the amounts
// changed every other member's paid flag resets to false.
func (s *SettlementService) Update(ctx context.Context, roomID, callerID uint64, req SettlementRequest) error {
    snapshot, err := s.prepareSnapshot(ctx, callerID, req)
    if err != nil {
        return err
    }

    err = s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status != model.RoomInSettlement {
            return ErrInvalidState
        }
        if r.PayerID == nil || *r.PayerID != callerID {
            return ErrForbidden
        }
        if err := tx.SetRoomSettlement(ctx, roomID, *snapshot); err != nil {
            return err
        }
        return tx.ResetPaidExcept(ctx, roomID, callerID)
    })
    if err != nil {
        return err
    }

    s.announce(ctx, roomID, callerID, "%s updated the settlement", EventSettlementUpdated, map[string]any{
        "payer_id": callerID,
        "amount":   req.Amount,
    })
    return nil
}

// Cancel aborts the open settlement: settlement fields return to null,
// all paid flags reset and the room goes back to ACTIVE.
func (s *SettlementService) Cancel(ctx context.Context, roomID, callerID uint64) error {
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status != model.RoomInSettlement {
            return ErrInvalidState
        }
        if r.PayerID == nil || *r.PayerID != callerID {
            return ErrForbidden
        }
        if err := tx.ClearRoomSettlement(ctx, roomID); err != nil {
            return err
        }
        if err := tx.SetRoomStatus(ctx, roomID, model.RoomActive); err != nil {
            return err
        }
        return tx.ResetPaid(ctx, roomID)
    })
    if err != nil {
        return err
    }

    s.announce(ctx, roomID, callerID, "%s cancelled the settlement", EventSettlementCancelled, map[string]any{
        "payer_id": callerID,
    })
    return nil
}

// Complete closes the settlement; the room becomes COMPLETED and no
// further settlement mutation is possible.  Payer or admin only.
func (s *SettlementService) Complete(ctx context.Context, roomID, callerID uint64, callerRole string) error {
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status == model.RoomCompleted || r.Status == model.RoomDeleted {
            return ErrInvalidState
        }
        if callerRole != "ADMIN" && (r.PayerID == nil || *r.PayerID != callerID) {
            return ErrForbidden
        }
        return tx.SetRoomStatus(ctx, roomID, model.RoomCompleted)
    })
    if err != nil {
        return err
    }

    if _, err := s.chat.AppendSystem(ctx, roomID, "The settlement was completed"); err != nil {
        log.Printf("settlement: append system message failed for room %d: %v", roomID, err)
    }
    s.publish(ctx, Event{
        RoomID:   roomID,
        Kind:     EventSettlementCompleted,
        Payload:  map[string]any{"room_id": roomID},
        PushBody: "The settlement was completed",
    })
    return nil
}

// Get builds the settlement view for a JOINED member of the room (or an
// admin).  The view carries the payer's decrypted account number, so
// non-members get ErrForbidden.  It is only meaningful while the room is
// IN_SETTLEMENT or COMPLETED; an absent or incomplete snapshot yields
// ErrSettlementNotFound, which callers must distinguish from
// ErrRoomNotFound.
func (s *SettlementService) Get(ctx context.Context, roomID, callerID uint64, callerRole string) (*SettlementView, error) {
    r, err := s.store.Room(ctx, roomID)
    if err != nil {
        return nil, err
    }
    if callerRole != "ADMIN" {
        m, err := s.store.Membership(ctx, roomID, callerID)
        if err == ErrMembershipNotFound {
            return nil, ErrForbidden
        }
        if err != nil {
            return nil, err
        }
        if m.Status != model.MemberJoined {
            return nil, ErrForbidden
        }
    }
    if r.Status != model.RoomInSettlement && r.Status != model.RoomCompleted {
        return nil, ErrSettlementNotFound
    }
    if r.PayerID == nil || r.PayAmount == nil ||
        r.PayerAccountEnc == nil || r.PayerAccountHolder == nil || r.PayerBankName == nil {
        return nil, ErrSettlementNotFound
    }
    number, err := s.cipher.Decrypt(*r.PayerAccountEnc)
    if err != nil {
        return nil, fmt.Errorf("decrypt account snapshot: %w", err)
    }
    return &SettlementView{
        RoomID:         r.ID,
        Status:         r.Status,
        PayerID:        *r.PayerID,
        Amount:         *r.PayAmount,
        PerPersonShare: perPersonShare(*r.PayAmount, r.CurrentParticipant),
        Participants:   r.CurrentParticipant,
        AccountNumber:  number,
        AccountHolder:  *r.PayerAccountHolder,
        BankName:       *r.PayerBankName,
    }, nil
}

// GetUserPayStatus reads a JOINED member's paid flag.
func (s *SettlementService) GetUserPayStatus(ctx context.Context, roomID, userID uint64) (bool, error) {
    m, err := s.store.Membership(ctx, roomID, userID)
    if err != nil {
        return false, err
    }
    if m.Status != model.MemberJoined {
        return false, ErrMembershipNotFound
    }
    return m.Paid, nil
}

// SetUserPayStatus writes a member's paid flag.  The payer and admins may
// mark anyone; a member may mark themself.  Requires an open settlement
// and a JOINED target.
func (s *SettlementService) SetUserPayStatus(ctx context.Context, roomID, actorID uint64, actorRole string, targetID uint64, paid bool) error {
    err := s.store.RunTx(ctx, func(tx Tx) error {
        r, err := tx.RoomForUpdate(ctx, roomID)
        if err != nil {
            return err
        }
        if r.Status != model.RoomInSettlement {
            return ErrInvalidState
        }
        isPayer := r.PayerID != nil && *r.PayerID == actorID
        if !isPayer && actorRole != "ADMIN" && actorID != targetID {
            return ErrForbidden
        }
        m, err := tx.Membership(ctx, roomID, targetID)
        if err != nil {
            return err
        }
        if m.Status != model.MemberJoined {
            return ErrInvalidState
        }
        return tx.SetPaid(ctx, roomID, targetID, paid)
    })
    if err != nil {
        return err
    }
    s.publish(ctx, Event{
        RoomID:  roomID,
        Kind:    EventPayStatusChanged,
        Payload: map[string]any{"user_id": targetID, "paid": paid},
    })
    return nil
}

// prepareSnapshot optionally replaces the payer's stored account and then
// builds the encrypted snapshot written onto the room row.
func (s *SettlementService) prepareSnapshot(ctx context.Context, payerID uint64, req SettlementRequest) (*SettlementFields, error) {
    if req.Amount <= 0 {
        return nil, ErrValidation
    }
    if req.UpdateAccount {
        number := strings.TrimSpace(req.AccountNumber)
        holder := strings.TrimSpace(req.AccountHolder)
        bank := strings.TrimSpace(req.BankName)
        if number == "" || holder == "" || bank == "" {
            return nil, ErrValidation
        }
        enc, err := s.cipher.Encrypt(number)
        if err != nil {
            return nil, err
        }
        if err := s.accounts.Upsert(ctx, &model.BankAccount{
            UserID:     payerID,
            NumberEnc:  enc,
            HolderName: holder,
            BankName:   bank,
        }); err != nil {
            return nil, err
        }
    }
    acct, err := s.accounts.Get(ctx, payerID)
    if err != nil {
        return nil, err
    }
    if acct == nil {
        return nil, ErrValidation // no payout account on file
    }
    return &SettlementFields{
        PayerID:       payerID,
        Amount:        req.Amount,
        AccountEnc:    acct.NumberEnc,
        AccountHolder: acct.HolderName,
        BankName:      acct.BankName,
    }, nil
}

func (s *SettlementService) announce(ctx context.Context, roomID, userID uint64, format string, kind EventKind, payload map[string]any) {
    nick, err := s.names.Nickname(ctx, userID)
    if err != nil {
        log.Printf("settlement: nickname lookup failed for user %d: %v", userID, err)
        nick = "A member"
    }
    text := fmt.Sprintf(format, nick)
    if _, err := s.chat.AppendSystem(ctx, roomID, text); err != nil {
        log.Printf("settlement: append system message failed for room %d: %v", roomID, err)
    }
    s.publish(ctx, Event{
        RoomID:   roomID,
        Kind:     kind,
        Payload:  payload,
        PushBody: text,
    })
}

func (s *SettlementService) publish(ctx context.Context, ev Event) {
    if s.notifier == nil {
        return
    }
    // Settlement events always ignore mute settings.
    ev.RespectMute = false
    if err := s.notifier.Publish(ctx, ev); err != nil {
        log.Printf("settlement: publish %s failed for room %d: %v", ev.Kind, ev.RoomID, err)
    }
}
