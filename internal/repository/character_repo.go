package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pnp-generator/internal/domain"
)

// CharacterRepository persiste personajes. Save asigna ID y CreatedAt si faltan.
type CharacterRepository interface {
	Save(ctx context.Context, character domain.Character) (domain.Character, error)
	ListAll(ctx context.Context) ([]domain.Character, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Character, error)
	GetByID(ctx context.Context, id string) (domain.Character, error)
	Delete(ctx context.Context, id string) error
}

func prepareForSave(c domain.Character) domain.Character {
	if strings.TrimSpace(c.ID) == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(c.OwnerID) == "" {
		c.OwnerID = domain.UnknownOwner
	}
	return c
}

// PgCharacterRepository guarda la hoja completa en una columna jsonb.
type PgCharacterRepository struct {
	pool *pgxpool.Pool
}

func NewPgCharacterRepository(pool *pgxpool.Pool) *PgCharacterRepository {
	return &PgCharacterRepository{pool: pool}
}

func (r *PgCharacterRepository) Save(ctx context.Context, character domain.Character) (domain.Character, error) {
	character = prepareForSave(character)
	sheet, err := json.Marshal(character)
	if err != nil {
		return domain.Character{}, fmt.Errorf("encode character: %w", err)
	}
	const query = `
		INSERT INTO characters (id, owner_id, game_type, first_name, last_name, level, sheet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET owner_id = EXCLUDED.owner_id, game_type = EXCLUDED.game_type, first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name, level = EXCLUDED.level, sheet = EXCLUDED.sheet
	`
	_, err = r.pool.Exec(ctx, query,
		character.ID,
		character.OwnerID,
		int(character.GameType),
		character.FirstName,
		character.LastName,
		character.Level,
		sheet,
		character.CreatedAt,
	)
	if err != nil {
		return domain.Character{}, err
	}
	return character, nil
}

const selectCharacter = `SELECT id, owner_id, sheet, created_at FROM characters`

func (r *PgCharacterRepository) ListAll(ctx context.Context) ([]domain.Character, error) {
	return r.list(ctx, selectCharacter+` ORDER BY created_at ASC`)
}

func (r *PgCharacterRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Character, error) {
	return r.list(ctx, selectCharacter+` WHERE owner_id = $1 ORDER BY created_at ASC`, ownerID)
}

func (r *PgCharacterRepository) GetByID(ctx context.Context, id string) (domain.Character, error) {
	row := r.pool.QueryRow(ctx, selectCharacter+` WHERE id = $1`, id)
	c, err := scanCharacter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Character{}, ErrNotFound
	}
	return c, err
}

func (r *PgCharacterRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM characters WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgCharacterRepository) list(ctx context.Context, query string, args ...any) ([]domain.Character, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chars := []domain.Character{}
	for rows.Next() {
		c, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		chars = append(chars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return chars, nil
}

func scanCharacter(row pgx.Row) (domain.Character, error) {
	var (
		id, owner string
		sheet     []byte
		createdAt time.Time
	)
	if err := row.Scan(&id, &owner, &sheet, &createdAt); err != nil {
		return domain.Character{}, err
	}
	var c domain.Character
	if err := json.Unmarshal(sheet, &c); err != nil {
		return domain.Character{}, fmt.Errorf("decode character %s: %w", id, err)
	}
	c.ID = id
	c.OwnerID = owner
	c.CreatedAt = createdAt
	return c, nil
}

// MemoryCharacterRepository es la implementacion en memoria para desarrollo y tests.
type MemoryCharacterRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Character
}

func NewMemoryCharacterRepository() *MemoryCharacterRepository {
	return &MemoryCharacterRepository{items: make(map[string]domain.Character)}
}

func (r *MemoryCharacterRepository) Save(_ context.Context, character domain.Character) (domain.Character, error) {
	character = prepareForSave(character)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[character.ID] = character
	return character, nil
}

func (r *MemoryCharacterRepository) ListAll(_ context.Context) ([]domain.Character, error) {
	return r.filter(func(domain.Character) bool { return true }), nil
}

func (r *MemoryCharacterRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.Character, error) {
	return r.filter(func(c domain.Character) bool { return c.OwnerID == ownerID }), nil
}

func (r *MemoryCharacterRepository) GetByID(_ context.Context, id string) (domain.Character, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return domain.Character{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryCharacterRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryCharacterRepository) filter(keep func(domain.Character) bool) []domain.Character {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Character{}
	for _, c := range r.items {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
