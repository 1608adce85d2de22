package service

import (
	"context"
	"errors"
	"testing"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/repository"
)

func seedCharacters(t *testing.T) (*repository.MemoryCharacterRepository, domain.Character, domain.Character) {
	t.Helper()
	repo := repository.NewMemoryCharacterRepository()
	ctx := context.Background()
	mine, err := repo.Save(ctx, domain.Character{FirstName: "Mine", OwnerID: "ext-1"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	theirs, err := repo.Save(ctx, domain.Character{FirstName: "Theirs", OwnerID: "ext-2"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return repo, mine, theirs
}

func TestCharacterServiceListVisibility(t *testing.T) {
	repo, mine, _ := seedCharacters(t)
	svc := NewCharacterService(nil, repo)
	ctx := context.Background()

	cases := []struct {
		name   string
		caller domain.CallerIdentity
		want   int
	}{
		{"admin sees all", domain.CallerIdentity{ID: "root", Role: domain.RoleAdmin}, 2},
		{"user sees own", domain.CallerIdentity{ID: "ext-1", Role: domain.RoleUser}, 1},
		{"unresolved sees nothing", domain.UnknownCaller(), 0},
		{"empty identity sees nothing", domain.CallerIdentity{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.List(ctx, tc.caller)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if got == nil || len(got) != tc.want {
				t.Fatalf("expected %d characters, got %v", tc.want, got)
			}
		})
	}

	own, _ := svc.List(ctx, domain.CallerIdentity{ID: "ext-1", Role: domain.RoleUser})
	if own[0].ID != mine.ID {
		t.Fatalf("user received a foreign character")
	}
}

func TestCharacterServiceDeleteRules(t *testing.T) {
	ctx := context.Background()
	user := domain.CallerIdentity{ID: "ext-1", Role: domain.RoleUser}
	admin := domain.CallerIdentity{ID: "root", Role: domain.RoleAdmin}

	t.Run("owner deletes own", func(t *testing.T) {
		repo, mine, _ := seedCharacters(t)
		if err := NewCharacterService(nil, repo).Delete(ctx, mine.ID, user); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := repo.GetByID(ctx, mine.ID); !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("character still stored")
		}
	})

	t.Run("user cannot delete foreign", func(t *testing.T) {
		repo, _, theirs := seedCharacters(t)
		if err := NewCharacterService(nil, repo).Delete(ctx, theirs.ID, user); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if _, err := repo.GetByID(ctx, theirs.ID); err != nil {
			t.Fatalf("foreign character removed")
		}
	})

	t.Run("unresolved caller cannot delete unknown-owned", func(t *testing.T) {
		repo := repository.NewMemoryCharacterRepository()
		orphan, _ := repo.Save(ctx, domain.Character{})
		err := NewCharacterService(nil, repo).Delete(ctx, orphan.ID, domain.UnknownCaller())
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("admin deletes any", func(t *testing.T) {
		repo, _, theirs := seedCharacters(t)
		if err := NewCharacterService(nil, repo).Delete(ctx, theirs.ID, admin); err != nil {
			t.Fatalf("delete: %v", err)
		}
	})

	t.Run("missing character", func(t *testing.T) {
		repo, _, _ := seedCharacters(t)
		svc := NewCharacterService(nil, repo)
		if err := svc.Delete(ctx, "nope", user); !errors.Is(err, ErrCharacterNotFound) {
			t.Fatalf("expected ErrCharacterNotFound, got %v", err)
		}
		if err := svc.Delete(ctx, "nope", admin); !errors.Is(err, ErrCharacterNotFound) {
			t.Fatalf("expected ErrCharacterNotFound for admin, got %v", err)
		}
	})
}
