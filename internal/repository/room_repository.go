// Package repository implements the MySQL persistence layer.  Each
// aggregate (room, membership, message, user, account, token) has its own
// repository struct over *sql.DB with ...Tx method variants that operate
// inside a caller-owned transaction.  Absent rows surface as
// sql.ErrNoRows; the store adapter translates them into the service
// layer's sentinel errors.
package repository

import (
    "context"
    "database/sql"
    "strings"

    "github.com/seojunpark/carpool-backend/internal/model"
    "github.com/seojunpark/carpool-backend/internal/service"
)

// RoomRepo provides CRUD operations for rooms.  All timestamp columns are
// stored in UTC (the DSN uses parseTime=true&loc=UTC).
type RoomRepo struct {
    db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// DB exposes the underlying handle so callers can begin transactions.
func (r *RoomRepo) DB() *sql.DB { return r.db }

const roomColumns = `id, title, owner_id, departure, destination, departure_time,
       max_participant, current_participant, status,
       payer_id, pay_amount, payer_account_enc, payer_account_holder, payer_bank_name,
       created_at, updated_at`

// scanRoom reads one room row from any row scanner.
func scanRoom(row interface{ Scan(...any) error }) (*model.Room, error) {
    var (
        rm         model.Room
        payerID    sql.NullInt64
        payAmount  sql.NullInt64
        accEnc     sql.NullString
        accHolder  sql.NullString
        bankName   sql.NullString
    )
    err := row.Scan(
        &rm.ID, &rm.Title, &rm.OwnerID, &rm.Departure, &rm.Destination, &rm.DepartureTime,
        &rm.MaxParticipant, &rm.CurrentParticipant, &rm.Status,
        &payerID, &payAmount, &accEnc, &accHolder, &bankName,
        &rm.CreatedAt, &rm.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if payerID.Valid {
        v := uint64(payerID.Int64)
        rm.PayerID = &v
    }
    if payAmount.Valid {
        v := payAmount.Int64
        rm.PayAmount = &v
    }
    if accEnc.Valid {
        v := accEnc.String
        rm.PayerAccountEnc = &v
    }
    if accHolder.Valid {
        v := accHolder.String
        rm.PayerAccountHolder = &v
    }
    if bankName.Valid {
        v := bankName.String
        rm.PayerBankName = &v
    }
    return &rm, nil
}

// GetByID loads a room outside any transaction.  Returns sql.ErrNoRows
// when the room does not exist.
func (r *RoomRepo) GetByID(ctx context.Context, roomID uint64) (*model.Room, error) {
    const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
    return scanRoom(r.db.QueryRowContext(ctx, q, roomID))
}

// GetForUpdateTx loads a room with a write lock inside the transaction so
// concurrent membership mutations serialize on the room row.
func (r *RoomRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, roomID uint64) (*model.Room, error) {
    const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? FOR UPDATE`
    return scanRoom(tx.QueryRowContext(ctx, q, roomID))
}

// CreateTx inserts a new room within the transaction and populates the
// generated ID and timestamps on the provided record.
func (r *RoomRepo) CreateTx(ctx context.Context, tx *sql.Tx, rm *model.Room) error {
    const q = `INSERT INTO rooms
        (title, owner_id, departure, destination, departure_time, max_participant, current_participant, status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        rm.Title, rm.OwnerID, rm.Departure, rm.Destination, rm.DepartureTime.UTC(),
        rm.MaxParticipant, rm.CurrentParticipant, rm.Status)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    rm.ID = uint64(id)
    // Query back the row to populate created_at / updated_at defaults.
    const sel = `SELECT created_at, updated_at FROM rooms WHERE id = ?`
    return tx.QueryRowContext(ctx, sel, rm.ID).Scan(&rm.CreatedAt, &rm.UpdatedAt)
}

// UpdateFieldsTx applies a partial update; nil pointers leave the column
// untouched.  An empty patch is a no-op.
func (r *RoomRepo) UpdateFieldsTx(ctx context.Context, tx *sql.Tx, roomID uint64, patch service.RoomPatch) error {
    sets := make([]string, 0, 5)
    args := make([]any, 0, 6)
    if patch.Title != nil {
        sets = append(sets, "title = ?")
        args = append(args, *patch.Title)
    }
    if patch.Departure != nil {
        sets = append(sets, "departure = ?")
        args = append(args, *patch.Departure)
    }
    if patch.Destination != nil {
        sets = append(sets, "destination = ?")
        args = append(args, *patch.Destination)
    }
    if patch.DepartureTime != nil {
        sets = append(sets, "departure_time = ?")
        args = append(args, patch.DepartureTime.UTC())
    }
    if patch.MaxParticipant != nil {
        sets = append(sets, "max_participant = ?")
        args = append(args, *patch.MaxParticipant)
    }
    if len(sets) == 0 {
        return nil
    }
    args = append(args, roomID)
    q := `UPDATE rooms SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, args...)
    return err
}

// SetStatusTx updates the lifecycle status.
func (r *RoomRepo) SetStatusTx(ctx context.Context, tx *sql.Tx, roomID uint64, st model.RoomStatus) error {
    _, err := tx.ExecContext(ctx, `UPDATE rooms SET status = ? WHERE id = ?`, st, roomID)
    return err
}

// SetOwnerTx reassigns room ownership.
func (r *RoomRepo) SetOwnerTx(ctx context.Context, tx *sql.Tx, roomID, ownerID uint64) error {
    _, err := tx.ExecContext(ctx, `UPDATE rooms SET owner_id = ? WHERE id = ?`, ownerID, roomID)
    return err
}

// SetSettlementTx writes the settlement snapshot onto the room row.
func (r *RoomRepo) SetSettlementTx(ctx context.Context, tx *sql.Tx, roomID uint64, f service.SettlementFields) error {
    const q = `UPDATE rooms
        SET payer_id = ?, pay_amount = ?, payer_account_enc = ?, payer_account_holder = ?, payer_bank_name = ?
        WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, f.PayerID, f.Amount, f.AccountEnc, f.AccountHolder, f.BankName, roomID)
    return err
}

// ClearSettlementTx nulls every settlement column.
func (r *RoomRepo) ClearSettlementTx(ctx context.Context, tx *sql.Tx, roomID uint64) error {
    const q = `UPDATE rooms
        SET payer_id = NULL, pay_amount = NULL, payer_account_enc = NULL, payer_account_holder = NULL, payer_bank_name = NULL
        WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, roomID)
    return err
}

// SetParticipantCountTx persists the recomputed participant counter.
func (r *RoomRepo) SetParticipantCountTx(ctx context.Context, tx *sql.Tx, roomID uint64, n int) error {
    _, err := tx.ExecContext(ctx, `UPDATE rooms SET current_participant = ? WHERE id = ?`, n, roomID)
    return err
}

// List returns rooms matching the filter, soonest departure first.  Zero
// filter values mean no constraint; Limit falls back to 20 and is capped
// at 100.
func (r *RoomRepo) List(ctx context.Context, f service.RoomFilter) ([]model.Room, error) {
    where := make([]string, 0, 3)
    args := make([]any, 0, 5)
    if f.Status != "" {
        where = append(where, "status = ?")
        args = append(args, f.Status)
    }
    if f.Departure != "" {
        where = append(where, "departure LIKE ?")
        args = append(args, "%"+f.Departure+"%")
    }
    if f.Destination != "" {
        where = append(where, "destination LIKE ?")
        args = append(args, "%"+f.Destination+"%")
    }
    q := `SELECT ` + roomColumns + ` FROM rooms`
    if len(where) > 0 {
        q += ` WHERE ` + strings.Join(where, " AND ")
    }
    limit := f.Limit
    if limit <= 0 {
        limit = 20
    }
    if limit > 100 {
        limit = 100
    }
    offset := f.Offset
    if offset < 0 {
        offset = 0
    }
    q += ` ORDER BY departure_time ASC LIMIT ? OFFSET ?`
    args = append(args, limit, offset)

    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    out := make([]model.Room, 0)
    for rows.Next() {
        rm, err := scanRoom(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *rm)
    }
    return out, rows.Err()
}
