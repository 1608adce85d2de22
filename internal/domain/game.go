package domain

import "strings"

// GameType discrimina el sistema de juego del personaje.
type GameType int

const (
	GameTypeGenefunk GameType = 0
)

var gameTypeNames = map[GameType]string{
	GameTypeGenefunk: "GENEFUNK",
}

func (g GameType) String() string {
	if name, ok := gameTypeNames[g]; ok {
		return name
	}
	return "UNKNOWN"
}

// GameTypeFromValue devuelve el tipo para el valor numerico o def si no existe.
func GameTypeFromValue(value int, def GameType) GameType {
	if _, ok := gameTypeNames[GameType(value)]; ok {
		return GameType(value)
	}
	return def
}

// ParseGameType acepta el nombre ("GENEFUNK") sin distinguir mayusculas.
func ParseGameType(name string) (GameType, bool) {
	for g, n := range gameTypeNames {
		if strings.EqualFold(strings.TrimSpace(name), n) {
			return g, true
		}
	}
	return 0, false
}
