package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pnp-generator/internal/dice"
	"pnp-generator/internal/domain"
	"pnp-generator/internal/repository"
)

// GenerationService completa y persiste personajes para un sistema de juego.
type GenerationService struct {
	logger     *zap.Logger
	catalog    repository.Catalog
	characters repository.CharacterRepository
	dice       *dice.Source
	gameType   domain.GameType
}

func NewGenerationService(
	logger *zap.Logger,
	catalog repository.Catalog,
	characters repository.CharacterRepository,
	source *dice.Source,
	gameType domain.GameType,
) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerationService{
		logger:     logger,
		catalog:    catalog,
		characters: characters,
		dice:       source,
		gameType:   gameType,
	}
}

func (s *GenerationService) GameType() domain.GameType {
	return s.gameType
}

// Generate rellena lo que falte de existing, en este orden: caracteristicas y nombre,
// genoma, clase, ajustes del genoma, tipo de juego y dueño; despues persiste.
// Catalogos vacios dejan el campo sin asignar; errores de catalogo o persistencia se devuelven.
func (s *GenerationService) Generate(ctx context.Context, existing *domain.Character, caller domain.CallerIdentity) (domain.Character, error) {
	roller := s.dice.Roller()
	c := cloneCharacter(existing)

	for _, key := range domain.AttributeKeys {
		if c.Attribute(key) == nil {
			c.SetAttribute(key, domain.NewAttribute(roller.AbilityScore()))
		}
	}
	if c.FirstName == "" || c.LastName == "" {
		names, err := s.catalog.ListNames(ctx)
		if err != nil {
			return domain.Character{}, fmt.Errorf("list names: %w", err)
		}
		if len(names) > 0 {
			if c.FirstName == "" {
				c.FirstName = pick(roller, names)
			}
			if c.LastName == "" {
				c.LastName = pick(roller, names)
			}
		}
	}
	if c.Level <= 0 {
		c.Level = 1
	}

	origins, err := s.catalog.ListOrigins(ctx, s.gameType)
	if err != nil {
		return domain.Character{}, fmt.Errorf("list origins: %w", err)
	}
	switch {
	case c.Origin == nil && len(origins) > 0:
		origin := pick(roller, origins)
		c.Origin = &origin
	case c.Origin != nil:
		c.Origin = resolveOrigin(*c.Origin, origins)
	}

	if len(c.Classes) == 0 {
		classes, err := s.catalog.ListClasses(ctx, s.gameType)
		if err != nil {
			return domain.Character{}, fmt.Errorf("list classes: %w", err)
		}
		if len(classes) > 0 {
			def := pick(roller, classes)
			c.ApplyClass(def, chooseSkills(roller, def.Skills))
		}
	}

	c.ApplyOrigin()

	c.GameType = s.gameType
	c.OwnerID = caller.ID
	if !caller.Resolved() {
		c.OwnerID = domain.UnknownOwner
	}

	saved, err := s.characters.Save(ctx, c)
	if err != nil {
		s.logger.Error("couldn't save character", zap.String("owner_id", c.OwnerID), zap.Error(err))
		return domain.Character{}, fmt.Errorf("save character: %w", err)
	}

	originName := ""
	if saved.Origin != nil {
		originName = saved.Origin.Name
	}
	s.logger.Info("character generated",
		zap.String("character_id", saved.ID),
		zap.String("name", strings.TrimSpace(saved.FirstName+" "+saved.LastName)),
		zap.String("owner_id", saved.OwnerID),
		zap.String("genome", originName),
		zap.String("game_type", saved.GameType.String()),
	)
	return saved, nil
}

// cloneCharacter copia el payload recibido; el id y el dueño nunca se toman de el.
func cloneCharacter(existing *domain.Character) domain.Character {
	if existing == nil {
		return domain.Character{}
	}
	c := *existing
	c.ID = ""
	c.OwnerID = ""
	for _, key := range domain.AttributeKeys {
		if attr := existing.Attribute(key); attr != nil {
			copied := *attr
			c.SetAttribute(key, &copied)
		}
	}
	c.Classes = append([]domain.ClassProgress(nil), existing.Classes...)
	c.ProficientSkills = append([]string(nil), existing.ProficientSkills...)
	c.SavingThrows = append([]string(nil), existing.SavingThrows...)
	c.Inventory = append([]domain.InventoryItem(nil), existing.Inventory...)
	return c
}

// resolveOrigin completa un genoma enviado solo por nombre con la entrada del catalogo.
func resolveOrigin(given domain.Origin, catalog []domain.Origin) *domain.Origin {
	if len(given.AttributeDeltas) == 0 && len(given.AttributeMaxOverrides) == 0 {
		for _, o := range catalog {
			if strings.EqualFold(o.Name, given.Name) {
				found := o
				return &found
			}
		}
	}
	if given.Type == "" {
		given.Type = domain.OriginTypeFor(given.Name)
	}
	return &given
}

// chooseSkills elige Choose habilidades distintas; si no hay de donde elegir devuelve todas.
func chooseSkills(roller *dice.Roller, skills domain.Skills) []string {
	pool := append([]string(nil), skills.From...)
	if skills.Choose <= 0 || len(pool) <= skills.Choose {
		return pool
	}
	chosen := make([]string, 0, skills.Choose)
	for i := 0; i < skills.Choose; i++ {
		idx := roller.Intn(len(pool))
		chosen = append(chosen, pool[idx])
		pool = append(pool[:idx], pool[idx+1:]...)
	}
	return chosen
}

func pick[T any](roller *dice.Roller, items []T) T {
	return items[roller.Intn(len(items))]
}
