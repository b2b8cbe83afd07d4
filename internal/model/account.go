package model

import "time"

// BankAccount mirrors the `bank_accounts` table, one row per user.  The
// account number is stored AES-GCM encrypted (base64 of nonce||ciphertext)
// and is only decrypted when building a settlement view.
type BankAccount struct {
    UserID     uint64    // bank_accounts.user_id
    NumberEnc  string    // bank_accounts.number_enc
    HolderName string    // bank_accounts.holder_name
    BankName   string    // bank_accounts.bank_name
    CreatedAt  time.Time // bank_accounts.created_at
    UpdatedAt  time.Time // bank_accounts.updated_at
}
