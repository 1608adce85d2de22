package repository

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"pnp-generator/internal/domain"
)

//go:embed catalog/genefunk.yaml
var defaultCatalog []byte

// Catalog es la fuente de razas/genomas, clases y nombres por sistema de juego.
type Catalog interface {
	ListOrigins(ctx context.Context, gameType domain.GameType) ([]domain.Origin, error)
	ListClasses(ctx context.Context, gameType domain.GameType) ([]domain.ClassDefinition, error)
	ListNames(ctx context.Context) ([]string, error)
}

type catalogFile struct {
	Names []string      `yaml:"names"`
	Books []catalogBook `yaml:"books"`
}

type catalogBook struct {
	GameType string                   `yaml:"gameType"`
	Origins  []catalogOrigin          `yaml:"origins"`
	Classes  []domain.ClassDefinition `yaml:"classes"`
}

type catalogOrigin struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Attributes  map[string]int   `yaml:"attributes"`
	Features    []domain.Feature `yaml:"features"`
}

// YAMLCatalog es un catalogo inmutable cargado de un documento YAML.
type YAMLCatalog struct {
	names   []string
	origins map[domain.GameType][]domain.Origin
	classes map[domain.GameType][]domain.ClassDefinition
}

// DefaultCatalog carga el catalogo embebido en el binario.
func DefaultCatalog() (*YAMLCatalog, error) {
	return ParseCatalog(defaultCatalog)
}

// LoadCatalog lee el catalogo de path; path vacio usa el embebido.
func LoadCatalog(path string) (*YAMLCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*YAMLCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	cat := &YAMLCatalog{
		origins: make(map[domain.GameType][]domain.Origin),
		classes: make(map[domain.GameType][]domain.ClassDefinition),
	}
	for _, n := range file.Names {
		if n = strings.TrimSpace(n); n != "" {
			cat.names = append(cat.names, n)
		}
	}
	for _, book := range file.Books {
		gameType, ok := domain.ParseGameType(book.GameType)
		if !ok {
			return nil, fmt.Errorf("parse catalog: unknown game type %q", book.GameType)
		}
		for _, o := range book.Origins {
			deltas, maxes, unknown := domain.SplitOriginAttributes(o.Attributes)
			if len(unknown) > 0 {
				sort.Strings(unknown)
				return nil, fmt.Errorf("parse catalog: origin %s has unknown attributes %v", o.Name, unknown)
			}
			cat.origins[gameType] = append(cat.origins[gameType], domain.Origin{
				Name:                  o.Name,
				Description:           o.Description,
				Type:                  domain.OriginTypeFor(o.Name),
				AttributeDeltas:       deltas,
				AttributeMaxOverrides: maxes,
				Features:              o.Features,
			})
		}
		cat.classes[gameType] = append(cat.classes[gameType], book.Classes...)
	}
	return cat, nil
}

func (c *YAMLCatalog) ListOrigins(_ context.Context, gameType domain.GameType) ([]domain.Origin, error) {
	src := c.origins[gameType]
	out := make([]domain.Origin, len(src))
	for i, o := range src {
		out[i] = cloneOrigin(o)
	}
	return out, nil
}

func (c *YAMLCatalog) ListClasses(_ context.Context, gameType domain.GameType) ([]domain.ClassDefinition, error) {
	return append([]domain.ClassDefinition(nil), c.classes[gameType]...), nil
}

func (c *YAMLCatalog) ListNames(_ context.Context) ([]string, error) {
	return append([]string(nil), c.names...), nil
}

// cloneOrigin copia los mapas para que un personaje no comparta estado con el catalogo.
func cloneOrigin(o domain.Origin) domain.Origin {
	out := o
	out.AttributeDeltas = make(map[domain.AttributeKey]int, len(o.AttributeDeltas))
	for k, v := range o.AttributeDeltas {
		out.AttributeDeltas[k] = v
	}
	out.AttributeMaxOverrides = make(map[domain.AttributeKey]int, len(o.AttributeMaxOverrides))
	for k, v := range o.AttributeMaxOverrides {
		out.AttributeMaxOverrides[k] = v
	}
	out.Features = append([]domain.Feature(nil), o.Features...)
	return out
}
