package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const (
	ActionFinished = "finished"
	ActionFailed   = "failed"
)

// Header transporta la identidad ya resuelta de quien llama.
type Header struct {
	ExternalID string   `json:"externalId"`
	Roles      []string `json:"roles"`
}

// Envelope es el contrato de cable entre dispatcher y worker.
type Envelope struct {
	Action        string          `json:"action"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	DetailMessage string          `json:"detailMessage"`
	CorrelationID string          `json:"uuid"`
	Header        Header          `json:"header"`
	ReplyTo       string          `json:"replyTo,omitempty"`
}

// NewEnvelope arma un request con un correlation id nuevo.
func NewEnvelope(action string, header Header, payload any) (Envelope, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Action:        action,
		Payload:       raw,
		CorrelationID: uuid.NewString(),
		Header:        header,
	}, nil
}

// Reply devuelve la respuesta "finished" que hace eco del id y el header.
func (e Envelope) Reply(payload any) (Envelope, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Action:        ActionFinished,
		Payload:       raw,
		CorrelationID: e.CorrelationID,
		Header:        e.Header,
	}, nil
}

func (e Envelope) Failure(cause error) Envelope {
	detail := "unknown error"
	if cause != nil {
		detail = cause.Error()
	}
	return Envelope{
		Action:        ActionFailed,
		DetailMessage: detail,
		CorrelationID: e.CorrelationID,
		Header:        e.Header,
	}
}

func (e Envelope) Failed() bool {
	return e.Action == ActionFailed
}

// HasPayload es falso para payloads ausentes o null.
func (e Envelope) HasPayload() bool {
	return len(e.Payload) > 0 && string(e.Payload) != "null"
}

func (e Envelope) Encode() ([]byte, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return body, nil
}

func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return env, nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return raw, nil
}
