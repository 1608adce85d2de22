package domain

type Skills struct {
	Choose int      `json:"choose" yaml:"choose"`
	From   []string `json:"from" yaml:"from"`
}

// ClassDefinition es una clase del catalogo con sus reglas de creacion.
type ClassDefinition struct {
	Name              string   `json:"name" yaml:"name"`
	Label             string   `json:"label" yaml:"label"`
	Description       string   `json:"description" yaml:"description"`
	SavingThrows      []string `json:"savingThrows" yaml:"savingThrows"`
	StartingEquipment []string `json:"startingEquipment" yaml:"startingEquipment"`
	Skills            Skills   `json:"skills" yaml:"skills"`
}
