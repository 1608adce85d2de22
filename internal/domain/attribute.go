package domain

import "encoding/json"

// DefaultAttributeMax es el techo estandar de una caracteristica 5e.
const DefaultAttributeMax = 20

// Attribute representa una caracteristica (fuerza, destreza, ...) con su techo.
type Attribute struct {
	BaseValue int `json:"baseValue"`
	Value     int `json:"value"`
	Max       int `json:"max"`
}

func NewAttribute(baseValue int) *Attribute {
	return NewAttributeWithMax(baseValue, DefaultAttributeMax)
}

func NewAttributeWithMax(baseValue, max int) *Attribute {
	return &Attribute{
		BaseValue: baseValue,
		Value:     baseValue,
		Max:       max,
	}
}

// Modify recalcula el valor desde BaseValue, nunca desde Value, y lo limita a Max.
func (a *Attribute) Modify(delta int) {
	a.Value = min(a.Max, a.BaseValue+delta)
}

// SetMax cambia el techo sin volver a limitar Value; solo el siguiente Modify lo aplica.
func (a *Attribute) SetMax(max int) {
	a.Max = max
}

// Modifier devuelve floor((Value-10)/2), redondeando hacia menos infinito.
func (a *Attribute) Modifier() int {
	return Modifier(a.Value)
}

func Modifier(value int) int {
	return floorDiv(value-10, 2)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// MarshalJSON expone el modificador derivado junto al resto de campos.
func (a Attribute) MarshalJSON() ([]byte, error) {
	type plain Attribute
	return json.Marshal(struct {
		plain
		Modifier int `json:"modifier"`
	}{plain: plain(a), Modifier: a.Modifier()})
}
