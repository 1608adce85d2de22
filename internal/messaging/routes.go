package messaging

import (
	"encoding/json"
	"fmt"
	"strings"

	"pnp-generator/internal/domain"
)

// Routing keys de las operaciones fijas.
const (
	CreateCharacter    = "CREATE_CHARACTER"
	GetAllCharacters   = "GET_ALL_CHARACTERS"
	DeleteCharacter    = "DELETE_CHARACTER"
	GetAllLanguageKeys = "GET_ALL_LANGUAGE_KEYS"
	GetInternalUser    = "GET_INTERNAL_USER"
	SaveNewUser        = "SAVE_NEW_USER"

	// GenerateFinished es el topic donde el worker publica resultados desacoplados.
	GenerateFinished = "generate_finished"
)

// ClassesKey es la routing key del catalogo de clases, p.ej. "GET_GENEFUNK_CLASSES".
func ClassesKey(gameType domain.GameType) string {
	return "GET_" + gameType.String() + "_CLASSES"
}

// SpeciesKey es la routing key del catalogo de genomas, p.ej. "GET_GENEFUNK_SPECIES".
func SpeciesKey(gameType domain.GameType) string {
	return "GET_" + gameType.String() + "_SPECIES"
}

// WorkerGroup es el grupo de consumo de los workers de un tipo de juego.
func WorkerGroup(gameType domain.GameType) string {
	return strings.ToLower(gameType.String()) + "-workers"
}

// GenerateTopic es el topic fire-and-forget por tipo de juego, p.ej. "GENEFUNK_generate".
func GenerateTopic(gameType domain.GameType) string {
	return gameType.String() + "_generate"
}

// ReplyTopic es el destino de respuesta de una sola llamada bloqueante.
func ReplyTopic(correlationID string) string {
	return "reply." + correlationID
}

// Decoder convierte un payload crudo en su variante tipada.
type Decoder func(raw json.RawMessage) (any, error)

var requestDecoders = map[string]Decoder{
	CreateCharacter:  decodeAs[*domain.Character],
	GetAllCharacters: decodeNothing,
	DeleteCharacter:  decodeAs[string],
	GetInternalUser:  decodeAs[string],
	SaveNewUser:      decodeAs[domain.User],
}

var replyDecoders = map[string]Decoder{
	CreateCharacter:  decodeAs[domain.Character],
	GetAllCharacters: decodeAs[[]domain.Character],
	DeleteCharacter:  decodeNothing,
	GetInternalUser:  decodeAs[*domain.User],
	SaveNewUser:      decodeAs[domain.User],
	GenerateFinished: decodeAs[domain.Character],
}

func init() {
	for _, g := range []domain.GameType{domain.GameTypeGenefunk} {
		requestDecoders[GenerateTopic(g)] = decodeAs[*domain.Character]
		requestDecoders[ClassesKey(g)] = decodeNothing
		requestDecoders[SpeciesKey(g)] = decodeNothing
		replyDecoders[ClassesKey(g)] = decodeAs[[]domain.ClassDefinition]
		replyDecoders[SpeciesKey(g)] = decodeAs[[]domain.Origin]
	}
}

// DecodeRequest decodifica el payload de un request segun su routing key.
func DecodeRequest(key string, raw json.RawMessage) (any, error) {
	dec, ok := requestDecoders[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, key)
	}
	return dec(raw)
}

// DecodeReply decodifica el payload de una respuesta segun su routing key.
func DecodeReply(key string, raw json.RawMessage) (any, error) {
	dec, ok := replyDecoders[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRoute, key)
	}
	return dec(raw)
}

// RequestAs devuelve el payload tipado de un request.
func RequestAs[T any](key string, env Envelope) (T, error) {
	return typed[T](key, env.Payload, DecodeRequest)
}

// ReplyAs devuelve el payload tipado de una respuesta.
func ReplyAs[T any](key string, env Envelope) (T, error) {
	return typed[T](key, env.Payload, DecodeReply)
}

func typed[T any](key string, raw json.RawMessage, decode func(string, json.RawMessage) (any, error)) (T, error) {
	var zero T
	v, err := decode(key, raw)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s payload is %T", ErrEncoding, key, v)
	}
	return out, nil
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return v, nil
}

func decodeNothing(json.RawMessage) (any, error) {
	return nil, nil
}
