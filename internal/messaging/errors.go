package messaging

import "errors"

var (
	// ErrTimeout indica que no llego respuesta dentro del plazo.
	ErrTimeout = errors.New("rpc timeout")
	// ErrEncoding cubre envelopes o payloads que no se pudieron (de)serializar.
	ErrEncoding = errors.New("message encoding failed")
	// ErrTransport envuelve fallos del bus al publicar o suscribirse.
	ErrTransport = errors.New("message transport failed")
	// ErrRemote indica que el worker respondio con un fallo.
	ErrRemote = errors.New("remote handler failed")

	ErrUnknownRoute       = errors.New("unknown routing key")
	ErrUnknownCorrelation = errors.New("unknown correlation id")
	ErrLateReply          = errors.New("reply arrived after timeout")
	ErrCacheFull          = errors.New("reply cache full")

	// ErrIgnored lo devuelve un handler cuando el mensaje no le corresponde; no se responde.
	ErrIgnored = errors.New("message ignored")
)
