package repository

import (
	"context"
	"strings"
	"testing"

	"pnp-generator/internal/domain"
)

func TestDefaultCatalogGenefunk(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	ctx := context.Background()

	origins, _ := cat.ListOrigins(ctx, domain.GameTypeGenefunk)
	if len(origins) != 3 {
		t.Fatalf("expected 3 genomes, got %d", len(origins))
	}
	var canary *domain.Origin
	for i := range origins {
		if origins[i].Name == "Canary" {
			canary = &origins[i]
		}
	}
	if canary == nil {
		t.Fatalf("canary genome missing")
	}
	if canary.AttributeDeltas[domain.Strength] != 4 || canary.AttributeMaxOverrides[domain.Strength] != 24 {
		t.Fatalf("unexpected canary attributes %+v", canary)
	}
	if canary.Type != domain.OriginEngineered || len(canary.Features) != 5 {
		t.Fatalf("unexpected canary %+v", canary)
	}

	classes, _ := cat.ListClasses(ctx, domain.GameTypeGenefunk)
	if len(classes) != 2 || classes[0].Skills.Choose != 2 {
		t.Fatalf("unexpected classes %+v", classes)
	}
	names, _ := cat.ListNames(ctx)
	if len(names) == 0 {
		t.Fatalf("expected names")
	}
}

func TestCatalogListOriginsReturnsCopies(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}
	ctx := context.Background()
	first, _ := cat.ListOrigins(ctx, domain.GameTypeGenefunk)
	first[0].AttributeDeltas[domain.Strength] = 99

	second, _ := cat.ListOrigins(ctx, domain.GameTypeGenefunk)
	if second[0].AttributeDeltas[domain.Strength] == 99 {
		t.Fatalf("catalog state leaked through returned origin")
	}
}

func TestParseCatalogAcceptsLongAttributeNames(t *testing.T) {
	doc := `
books:
  - gameType: genefunk
    origins:
      - name: Mutts
        attributes:
          strength: 1
          strength_max: 21
`
	cat, err := ParseCatalog([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	origins, _ := cat.ListOrigins(context.Background(), domain.GameTypeGenefunk)
	if len(origins) != 1 || origins[0].Type != domain.OriginMutts {
		t.Fatalf("unexpected origins %+v", origins)
	}
	if origins[0].AttributeDeltas[domain.Strength] != 1 || origins[0].AttributeMaxOverrides[domain.Strength] != 21 {
		t.Fatalf("unexpected attributes %+v", origins[0])
	}
	classes, _ := cat.ListClasses(context.Background(), domain.GameTypeGenefunk)
	if len(classes) != 0 {
		t.Fatalf("expected no classes")
	}
}

func TestParseCatalogErrors(t *testing.T) {
	cases := map[string]string{
		"unknown game":      "books:\n  - gameType: SHADOWRUN\n",
		"unknown attribute": "books:\n  - gameType: GENEFUNK\n    origins:\n      - name: X\n        attributes:\n          LUCK: 2\n",
		"malformed":         "books: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseCatalog([]byte(doc)); err == nil || !strings.Contains(err.Error(), "parse catalog") {
				t.Fatalf("expected parse catalog error, got %v", err)
			}
		})
	}
}
