package repository

import (
    "context"
    "database/sql"

    "github.com/seojunpark/carpool-backend/internal/model"
)

// AccountRepo stores each user's payout bank account.  The account number
// column holds AES-GCM ciphertext produced by the utils cipher; this
// layer never sees plaintext numbers.
type AccountRepo struct {
    db *sql.DB
}

// NewAccountRepo returns a new AccountRepo bound to the given database.
func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

// Upsert inserts or replaces the user's account.
func (r *AccountRepo) Upsert(ctx context.Context, a *model.BankAccount) error {
    const q = `INSERT INTO bank_accounts (user_id, number_enc, holder_name, bank_name)
        VALUES (?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE number_enc = VALUES(number_enc),
            holder_name = VALUES(holder_name), bank_name = VALUES(bank_name)`
    _, err := r.db.ExecContext(ctx, q, a.UserID, a.NumberEnc, a.HolderName, a.BankName)
    return err
}

// Get returns the user's account, or (nil, nil) when none is stored.
func (r *AccountRepo) Get(ctx context.Context, userID uint64) (*model.BankAccount, error) {
    const q = `SELECT user_id, number_enc, holder_name, bank_name, created_at, updated_at
        FROM bank_accounts WHERE user_id = ?`
    var a model.BankAccount
    err := r.db.QueryRowContext(ctx, q, userID).Scan(
        &a.UserID, &a.NumberEnc, &a.HolderName, &a.BankName, &a.CreatedAt, &a.UpdatedAt)
    if err == sql.ErrNoRows {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &a, nil
}
