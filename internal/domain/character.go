package domain

import (
	"strconv"
	"strings"
	"time"
)

// AttributeKey identifica una de las seis caracteristicas.
type AttributeKey string

const (
	Strength     AttributeKey = "STR"
	Dexterity    AttributeKey = "DEX"
	Constitution AttributeKey = "CON"
	Intelligence AttributeKey = "INT"
	Wisdom       AttributeKey = "WIS"
	Charisma     AttributeKey = "CHA"
)

// AttributeKeys en el orden en que se tiran durante la generacion.
var AttributeKeys = []AttributeKey{Strength, Dexterity, Constitution, Intelligence, Wisdom, Charisma}

var attributeLongNames = map[string]AttributeKey{
	"strength":     Strength,
	"dexterity":    Dexterity,
	"constitution": Constitution,
	"intelligence": Intelligence,
	"wisdom":       Wisdom,
	"charisma":     Charisma,
}

// ParseAttributeKey acepta "STR" o "strength" (sin distinguir mayusculas).
func ParseAttributeKey(raw string) (AttributeKey, bool) {
	normalized := strings.TrimSpace(raw)
	for _, key := range AttributeKeys {
		if strings.EqualFold(normalized, string(key)) {
			return key, true
		}
	}
	key, ok := attributeLongNames[strings.ToLower(normalized)]
	return key, ok
}

type Feature struct {
	Label            string `json:"label" yaml:"label"`
	Description      string `json:"description" yaml:"description"`
	AvailableAtLevel int    `json:"availableAtLevel" yaml:"availableAtLevel"`
}

type OriginType string

const (
	OriginUnknown    OriginType = "UNKNOWN"
	OriginEngineered OriginType = "ENGINEERED"
	OriginMutts      OriginType = "MUTTS"
	OriginOptimized  OriginType = "OPTIMIZED"
	OriginTranshuman OriginType = "TRANSHUMAN"
)

// OriginTypeFor deriva el tipo de genoma a partir de su nombre.
func OriginTypeFor(name string) OriginType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mutts":
		return OriginMutts
	case "optimized":
		return OriginOptimized
	case "transhuman":
		return OriginTranshuman
	case "":
		return OriginUnknown
	default:
		return OriginEngineered
	}
}

// Origin es una entrada del catalogo de genomas/razas.
type Origin struct {
	Name                  string               `json:"name"`
	Description           string               `json:"description"`
	Type                  OriginType           `json:"genomeType"`
	AttributeDeltas       map[AttributeKey]int `json:"attributeDeltas,omitempty"`
	AttributeMaxOverrides map[AttributeKey]int `json:"attributeMaxOverrides,omitempty"`
	Features              []Feature            `json:"features,omitempty"`
}

// SplitOriginAttributes separa un mapa plano del catalogo ("STR": 2, "STR_MAX": 22)
// en deltas y techos. Las claves desconocidas se devuelven aparte.
func SplitOriginAttributes(raw map[string]int) (deltas, maxes map[AttributeKey]int, unknown []string) {
	deltas = make(map[AttributeKey]int)
	maxes = make(map[AttributeKey]int)
	for name, value := range raw {
		upper := strings.ToUpper(strings.TrimSpace(name))
		if base, ok := strings.CutSuffix(upper, "_MAX"); ok {
			if key, ok := ParseAttributeKey(base); ok {
				maxes[key] = value
				continue
			}
		} else if key, ok := ParseAttributeKey(upper); ok {
			deltas[key] = value
			continue
		}
		unknown = append(unknown, name)
	}
	return deltas, maxes, unknown
}

// ClassProgress es el avance del personaje en una clase. La clave es Name.
type ClassProgress struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

type InventoryItem struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
}

// Character es el valor polimorfico para todos los sistemas de juego; GameType discrimina.
type Character struct {
	ID               string          `json:"id,omitempty"`
	GameType         GameType        `json:"gameType"`
	FirstName        string          `json:"firstName"`
	LastName         string          `json:"lastName"`
	Level            int             `json:"level"`
	OwnerID          string          `json:"-"`
	Strength         *Attribute      `json:"strength,omitempty"`
	Dexterity        *Attribute      `json:"dexterity,omitempty"`
	Constitution     *Attribute      `json:"constitution,omitempty"`
	Intelligence     *Attribute      `json:"intelligence,omitempty"`
	Wisdom           *Attribute      `json:"wisdom,omitempty"`
	Charisma         *Attribute      `json:"charisma,omitempty"`
	Origin           *Origin         `json:"genome,omitempty"`
	Classes          []ClassProgress `json:"characterClasses,omitempty"`
	ProficientSkills []string        `json:"proficientSkills,omitempty"`
	SavingThrows     []string        `json:"savingThrows,omitempty"`
	Inventory        []InventoryItem `json:"inventory,omitempty"`
	Money            int             `json:"money"`
	CreatedAt        time.Time       `json:"createdAt,omitempty"`
}

// Attribute devuelve el puntero a la caracteristica pedida (puede ser nil).
func (c *Character) Attribute(key AttributeKey) *Attribute {
	switch key {
	case Strength:
		return c.Strength
	case Dexterity:
		return c.Dexterity
	case Constitution:
		return c.Constitution
	case Intelligence:
		return c.Intelligence
	case Wisdom:
		return c.Wisdom
	case Charisma:
		return c.Charisma
	}
	return nil
}

func (c *Character) SetAttribute(key AttributeKey, attr *Attribute) {
	switch key {
	case Strength:
		c.Strength = attr
	case Dexterity:
		c.Dexterity = attr
	case Constitution:
		c.Constitution = attr
	case Intelligence:
		c.Intelligence = attr
	case Wisdom:
		c.Wisdom = attr
	case Charisma:
		c.Charisma = attr
	}
}

// AddClass agrega la clase o sube un nivel si ya existe.
func (c *Character) AddClass(name string) {
	for i := range c.Classes {
		if c.Classes[i].Name == name {
			c.Classes[i].Level++
			return
		}
	}
	c.Classes = append(c.Classes, ClassProgress{Name: name, Level: 1})
}

// ApplyClass agrega la clase y los beneficios de creacion (habilidades, equipo, dinero).
func (c *Character) ApplyClass(def ClassDefinition, skills []string) {
	c.AddClass(def.Name)
	c.ProficientSkills = appendUnique(c.ProficientSkills, skills...)
	c.SavingThrows = appendUnique(c.SavingThrows, def.SavingThrows...)
	for _, item := range def.StartingEquipment {
		if strings.Contains(item, "¥") {
			c.Money += ParseMoney(item)
			continue
		}
		c.addItem(item)
	}
}

func (c *Character) addItem(name string) {
	for i := range c.Inventory {
		if c.Inventory[i].Name == name {
			c.Inventory[i].Amount++
			return
		}
	}
	c.Inventory = append(c.Inventory, InventoryItem{Name: name, Amount: 1})
}

// ApplyOrigin aplica primero todos los techos y despues todos los deltas.
// Invertir el orden hace que el delta se limite con el techo equivocado.
func (c *Character) ApplyOrigin() {
	if c.Origin == nil {
		return
	}
	for _, key := range AttributeKeys {
		attr := c.Attribute(key)
		if attr == nil {
			continue
		}
		if max, ok := c.Origin.AttributeMaxOverrides[key]; ok {
			attr.SetMax(max)
		}
	}
	for _, key := range AttributeKeys {
		attr := c.Attribute(key)
		if attr == nil {
			continue
		}
		if delta, ok := c.Origin.AttributeDeltas[key]; ok {
			attr.Modify(delta)
		}
	}
}

// ParseMoney convierte "¥1,500" en 1500. Valores ilegibles cuentan como 0.
func ParseMoney(raw string) int {
	cleaned := strings.NewReplacer("¥", "", ",", "", ".", "", ":", "", " ", "").Replace(raw)
	amount, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return amount
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
