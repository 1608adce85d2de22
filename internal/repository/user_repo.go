package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pnp-generator/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios internos.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByExternalID(ctx context.Context, externalID string) (domain.User, error)
}

func prepareUser(u domain.User) domain.User {
	if strings.TrimSpace(u.ID) == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	return u
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	user = prepareUser(user)
	const query = `
		INSERT INTO users (id, external_id, first_name, last_name, name, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.ExternalID,
		user.FirstName,
		user.LastName,
		user.Name,
		user.Email,
		user.Role,
		user.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.User{}, ErrConflict
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

const selectUser = `SELECT id, external_id, first_name, last_name, name, email, role, created_at FROM users`

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	return r.get(ctx, selectUser+` WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	return r.get(ctx, selectUser+` WHERE external_id = $1`, externalID)
}

func (r *PgUserRepository) get(ctx context.Context, query string, arg string) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.ExternalID,
		&u.FirstName,
		&u.LastName,
		&u.Name,
		&u.Email,
		&u.Role,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	return u, err
}

type MemoryUserRepository struct {
	mu    sync.RWMutex
	byID  map[string]domain.User
	byExt map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:  make(map[string]domain.User),
		byExt: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) (domain.User, error) {
	user = prepareUser(user)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byExt[user.ExternalID]; ok {
		return domain.User{}, ErrConflict
	}
	r.byID[user.ID] = user
	r.byExt[user.ExternalID] = user.ID
	return user, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryUserRepository) GetByExternalID(_ context.Context, externalID string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExt[externalID]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	return r.byID[id], nil
}
