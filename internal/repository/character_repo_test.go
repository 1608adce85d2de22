package repository

import (
	"context"
	"errors"
	"testing"

	"pnp-generator/internal/domain"
)

func TestMemoryCharacterRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryCharacterRepository()

	saved, err := repo.Save(ctx, domain.Character{FirstName: "Ava", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.ID == "" || saved.CreatedAt.IsZero() {
		t.Fatalf("save must assign id and timestamp: %+v", saved)
	}
	anon, _ := repo.Save(ctx, domain.Character{FirstName: "Bo"})
	if anon.OwnerID != domain.UnknownOwner {
		t.Fatalf("expected unknown owner, got %q", anon.OwnerID)
	}

	all, _ := repo.ListAll(ctx)
	mine, _ := repo.ListByOwner(ctx, "u1")
	if len(all) != 2 || len(mine) != 1 || mine[0].ID != saved.ID {
		t.Fatalf("unexpected lists all=%d mine=%+v", len(all), mine)
	}

	got, err := repo.GetByID(ctx, saved.ID)
	if err != nil || got.FirstName != "Ava" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if err := repo.Delete(ctx, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, saved.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()

	u, err := repo.Create(ctx, domain.User{ExternalID: "firebase|1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" || u.Role != domain.RoleUser {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := repo.Create(ctx, domain.User{ExternalID: "firebase|1"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, err := repo.GetByExternalID(ctx, "firebase|1")
	if err != nil || got.ID != u.ID {
		t.Fatalf("get by external: %+v %v", got, err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
