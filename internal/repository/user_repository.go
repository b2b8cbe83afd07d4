package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/seojunpark/carpool-backend/internal/model"
    "github.com/seojunpark/carpool-backend/internal/utils"
)

// ErrEmailExists signals a duplicate registration attempt.
var ErrEmailExists = errors.New("email already exists")

// UserRepo persists application users.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `id, email, nickname, password_hash, role, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (model.User, error) {
    var u model.User
    err := row.Scan(&u.ID, &u.Email, &u.Nickname, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
    return u, err
}

// Create inserts a user and returns its ID.  The MySQL duplicate-key
// error (1062) on the unique email index maps to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, nickname, password, role string, cost int) (uint64, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return 0, err
    }
    res, err := r.DB.ExecContext(ctx,
        "INSERT INTO users (email, nickname, password_hash, role) VALUES (?,?,?,?)",
        email, nickname, hash, role)
    if err != nil {
        if strings.Contains(strings.ToLower(err.Error()), "1062") {
            return 0, ErrEmailExists
        }
        return 0, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return 0, err
    }
    return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
    email = strings.ToLower(strings.TrimSpace(email))
    return scanUser(r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
    return scanUser(r.DB.QueryRowContext(ctx,
        "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// Nickname resolves a user's display name.  Used for message sender
// snapshots and system-message text.
func (r *UserRepo) Nickname(ctx context.Context, userID uint64) (string, error) {
    var nick string
    err := r.DB.QueryRowContext(ctx,
        "SELECT nickname FROM users WHERE id=? LIMIT 1", userID).Scan(&nick)
    return nick, err
}
