package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/mehfil/internal/models"
	"github.com/lalith-99/mehfil/internal/repository"
)

// DB is the subset of pgxpool.Pool the stores use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ DB = (*pgxpool.Pool)(nil)

type UserStore struct {
	db DB
}

var _ repository.UserRepository = (*UserStore)(nil)

func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

// Upsert inserts a user, or refreshes email/name/image when the external id
// is already known. The local id and created_at of an existing row survive.
func (s *UserStore) Upsert(ctx context.Context, u models.User) (*models.User, error) {
	query := `
		INSERT INTO users (id, external_id, email, name, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (external_id) DO UPDATE SET
			email      = EXCLUDED.email,
			name       = EXCLUDED.name,
			image_url  = EXCLUDED.image_url,
			updated_at = now()
		RETURNING id, external_id, email, name, image_url, created_at, updated_at`

	id := u.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	var out models.User
	err := s.db.QueryRow(ctx, query, id, u.ExternalID, u.Email, u.Name, u.ImageURL).Scan(
		&out.ID,
		&out.ExternalID,
		&out.Email,
		&out.Name,
		&out.ImageURL,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &out, nil
}

// DeleteByExternalID is naturally idempotent: a second delete matches
// zero rows and isn't an error.
func (s *UserStore) DeleteByExternalID(ctx context.Context, externalID string) (bool, error) {
	query := `DELETE FROM users WHERE external_id = $1`

	tag, err := s.db.Exec(ctx, query, externalID)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *UserStore) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `
		SELECT id, external_id, email, name, image_url, created_at, updated_at
		FROM users
		WHERE external_id = $1`

	var u models.User
	err := s.db.QueryRow(ctx, query, externalID).Scan(
		&u.ID,
		&u.ExternalID,
		&u.Email,
		&u.Name,
		&u.ImageURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
