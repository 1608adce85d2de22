package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/messaging"
)

// Errores que el worker devuelve como detailMessage y el productor reconstruye.
var remoteErrors = []error{ErrCharacterNotFound, ErrForbidden, ErrUserNotFound, ErrUserExists, ErrInvalidUser, ErrInvalidEmail}

func fromRemote(err error) error {
	if !errors.Is(err, messaging.ErrRemote) {
		return err
	}
	for _, known := range remoteErrors {
		if strings.HasSuffix(err.Error(), known.Error()) {
			return fmt.Errorf("%w: %w", known, err)
		}
	}
	return err
}

// GenerateResult lleva el personaje (modo directo) o solo el correlation id (modo desacoplado).
type GenerateResult struct {
	CorrelationID string
	Character     *domain.Character
}

func (r GenerateResult) Pending() bool {
	return r.Character == nil
}

// ResultView es el estado de una generacion desacoplada consultada por id.
type ResultView struct {
	CorrelationID string            `json:"uuid"`
	State         messaging.State   `json:"state"`
	Character     *domain.Character `json:"character,omitempty"`
	DetailMessage string            `json:"detailMessage,omitempty"`
}

// CharacterProducer es el lado REST del protocolo de personajes.
type CharacterProducer struct {
	logger     *zap.Logger
	dispatcher *messaging.Dispatcher
	decoupled  bool
}

func NewCharacterProducer(logger *zap.Logger, dispatcher *messaging.Dispatcher, decoupled bool) *CharacterProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CharacterProducer{logger: logger, dispatcher: dispatcher, decoupled: decoupled}
}

func (p *CharacterProducer) Decoupled() bool {
	return p.decoupled
}

// Generate pide un personaje; seed puede traer campos ya fijados.
func (p *CharacterProducer) Generate(ctx context.Context, header messaging.Header, gameType domain.GameType, seed *domain.Character) (GenerateResult, error) {
	var payload any
	if seed != nil {
		payload = seed
	}
	if p.decoupled {
		id, err := p.dispatcher.Send(ctx, messaging.GenerateTopic(gameType), gameType.String(), header, payload)
		if err != nil {
			return GenerateResult{}, err
		}
		return GenerateResult{CorrelationID: id}, nil
	}

	reply, err := p.dispatcher.Call(ctx, messaging.CreateCharacter, gameType.String(), header, payload)
	if err != nil {
		return GenerateResult{}, fromRemote(err)
	}
	character, err := messaging.ReplyAs[domain.Character](messaging.CreateCharacter, reply)
	if err != nil {
		p.logger.Error("couldn't decode generated character", zap.String("uuid", reply.CorrelationID), zap.Error(err))
		return GenerateResult{}, err
	}
	return GenerateResult{CorrelationID: reply.CorrelationID, Character: &character}, nil
}

func (p *CharacterProducer) List(ctx context.Context, header messaging.Header, gameType domain.GameType) ([]domain.Character, error) {
	reply, err := p.dispatcher.Call(ctx, messaging.GetAllCharacters, gameType.String(), header, nil)
	if err != nil {
		return nil, fromRemote(err)
	}
	chars, err := messaging.ReplyAs[[]domain.Character](messaging.GetAllCharacters, reply)
	if err != nil {
		return nil, err
	}
	if chars == nil {
		chars = []domain.Character{}
	}
	return chars, nil
}

func (p *CharacterProducer) Delete(ctx context.Context, header messaging.Header, gameType domain.GameType, id string) error {
	_, err := p.dispatcher.Call(ctx, messaging.DeleteCharacter, gameType.String(), header, id)
	return fromRemote(err)
}

// Result consulta la cache de respuestas sin consumir la entrada. Un id de otro usuario
// se trata como desconocido salvo para admins.
func (p *CharacterProducer) Result(ctx context.Context, header messaging.Header, correlationID string) (ResultView, error) {
	replies := p.dispatcher.Replies()
	if replies == nil {
		return ResultView{}, messaging.ErrUnknownCorrelation
	}
	res, err := replies.Get(ctx, correlationID)
	if err != nil {
		return ResultView{}, err
	}
	if !visibleTo(res, header) {
		p.logger.Warn("result requested by non-owner",
			zap.String("uuid", correlationID),
			zap.String("external_id", header.ExternalID),
		)
		return ResultView{}, messaging.ErrUnknownCorrelation
	}
	return resultView(res)
}

// Results lista las generaciones completadas visibles para quien llama.
func (p *CharacterProducer) Results(ctx context.Context, header messaging.Header) ([]ResultView, error) {
	out := []ResultView{}
	replies := p.dispatcher.Replies()
	if replies == nil {
		return out, nil
	}
	all, err := replies.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, res := range all {
		if !visibleTo(res, header) {
			continue
		}
		view, err := resultView(res)
		if err != nil {
			p.logger.Warn("skipping undecodable result", zap.String("uuid", res.CorrelationID), zap.Error(err))
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

func visibleTo(res messaging.Result, header messaging.Header) bool {
	if headerIsAdmin(header) {
		return true
	}
	return header.ExternalID != "" && res.Owner == header.ExternalID
}

func headerIsAdmin(header messaging.Header) bool {
	for _, role := range header.Roles {
		if normalizeRole(role) == domain.RoleAdmin {
			return true
		}
	}
	return false
}

func resultView(res messaging.Result) (ResultView, error) {
	view := ResultView{
		CorrelationID: res.CorrelationID,
		State:         res.State,
		DetailMessage: res.DetailMessage,
	}
	if res.State == messaging.StateCompleted {
		character, err := messaging.ReplyAs[domain.Character](messaging.GenerateFinished, messaging.Envelope{Payload: res.Payload})
		if err != nil {
			return ResultView{}, err
		}
		view.Character = &character
	}
	return view, nil
}

// CatalogProducer consulta el catalogo de clases y genomas de un tipo de juego.
type CatalogProducer struct {
	dispatcher *messaging.Dispatcher
}

func NewCatalogProducer(dispatcher *messaging.Dispatcher) *CatalogProducer {
	return &CatalogProducer{dispatcher: dispatcher}
}

func (p *CatalogProducer) Classes(ctx context.Context, header messaging.Header, gameType domain.GameType) ([]domain.ClassDefinition, error) {
	key := messaging.ClassesKey(gameType)
	reply, err := p.dispatcher.Call(ctx, key, gameType.String(), header, nil)
	if err != nil {
		return nil, fromRemote(err)
	}
	classes, err := messaging.ReplyAs[[]domain.ClassDefinition](key, reply)
	if err != nil {
		return nil, err
	}
	if classes == nil {
		classes = []domain.ClassDefinition{}
	}
	return classes, nil
}

func (p *CatalogProducer) Origins(ctx context.Context, header messaging.Header, gameType domain.GameType) ([]domain.Origin, error) {
	key := messaging.SpeciesKey(gameType)
	reply, err := p.dispatcher.Call(ctx, key, gameType.String(), header, nil)
	if err != nil {
		return nil, fromRemote(err)
	}
	origins, err := messaging.ReplyAs[[]domain.Origin](key, reply)
	if err != nil {
		return nil, err
	}
	if origins == nil {
		origins = []domain.Origin{}
	}
	return origins, nil
}

// UserInfoProducer consulta y registra usuarios a traves del bus.
type UserInfoProducer struct {
	dispatcher *messaging.Dispatcher
}

func NewUserInfoProducer(dispatcher *messaging.Dispatcher) *UserInfoProducer {
	return &UserInfoProducer{dispatcher: dispatcher}
}

func (p *UserInfoProducer) GetInternalUser(ctx context.Context, externalID string) (domain.User, error) {
	header := messaging.Header{ExternalID: externalID}
	reply, err := p.dispatcher.Call(ctx, messaging.GetInternalUser, messaging.GetInternalUser, header, externalID)
	if err != nil {
		return domain.User{}, fromRemote(err)
	}
	user, err := messaging.ReplyAs[*domain.User](messaging.GetInternalUser, reply)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, ErrUserNotFound
	}
	return *user, nil
}

func (p *UserInfoProducer) SaveNewUser(ctx context.Context, user domain.User) (domain.User, error) {
	header := messaging.Header{ExternalID: user.ExternalID}
	reply, err := p.dispatcher.Call(ctx, messaging.SaveNewUser, messaging.SaveNewUser, header, user)
	if err != nil {
		return domain.User{}, fromRemote(err)
	}
	return messaging.ReplyAs[domain.User](messaging.SaveNewUser, reply)
}
