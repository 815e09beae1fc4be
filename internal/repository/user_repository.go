package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/baticonnect/artisan-backend/internal/models"
	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// UserRepository persists accounts and refresh-token sessions.
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `
	id, phone, full_name, password_hash, role, zone, is_active,
	last_login_at, created_at, updated_at
`

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Phone, user.FullName, user.PasswordHash, user.Role,
		user.Zone, user.IsActive, user.LastLoginAt, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperror.New(apperror.ErrCodeConflict, "phone number is already registered")
		}
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: create")
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*models.User, error) {
	return r.getBy(ctx, "phone", phone)
}

func (r *UserRepository) getBy(ctx context.Context, field string, value interface{}) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + field + ` = $1`
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: get by "+field)
	}
	return &user, nil
}

// ListByRole feeds mediator assignment with active accounts carrying the
// requested capability tag.
func (r *UserRepository) ListByRole(ctx context.Context, role string, limit int) ([]models.User, error) {
	var users []models.User
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE role = $1 AND is_active = true
		ORDER BY created_at
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &users, query, role, limit); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: list by role")
	}
	return users, nil
}

func (r *UserRepository) UpdateLastLoginAt(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: update last login")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, refresh_token, user_agent, ip_address, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.RefreshToken,
		session.UserAgent, session.IPAddress, session.ExpiresAt, session.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: create session")
	}
	return nil
}

func (r *UserRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	query := `DELETE FROM sessions WHERE refresh_token = $1`
	res, err := r.db.ExecContext(ctx, query, refreshToken)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: delete session")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.New(apperror.ErrCodeNotFound, "session not found")
	}
	return nil
}

func (r *UserRepository) ListSessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	var sessions []models.Session
	query := `
		SELECT id, user_id, refresh_token, user_agent, ip_address, expires_at, created_at
		FROM sessions
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: list sessions")
	}
	return sessions, nil
}

func (r *UserRepository) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, userID uuid.UUID) error {
	query := `DELETE FROM sessions WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, sessionID, userID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: delete session by id")
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperror.New(apperror.ErrCodeNotFound, "session not found")
	}
	return nil
}

func (r *UserRepository) DeleteAllSessionsExcept(ctx context.Context, userID uuid.UUID, exceptRefreshToken string) error {
	query := `DELETE FROM sessions WHERE user_id = $1 AND refresh_token <> $2`
	if _, err := r.db.ExecContext(ctx, query, userID, exceptRefreshToken); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "user repository: delete other sessions")
	}
	return nil
}
