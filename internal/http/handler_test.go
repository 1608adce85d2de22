package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pnp-generator/internal/dice"
	"pnp-generator/internal/domain"
	"pnp-generator/internal/messaging"
	"pnp-generator/internal/repository"
	"pnp-generator/internal/service"
	"pnp-generator/internal/worker"
)

type testAPI struct {
	router *gin.Engine
	jwt    *service.JWTService
}

// newTestAPI arma router, productores y, si withWorker, un worker en el mismo bus.
func newTestAPI(t *testing.T, decoupled, withWorker bool, timeout time.Duration) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	bus := messaging.NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if withWorker {
		catalog, err := repository.DefaultCatalog()
		if err != nil {
			t.Fatalf("catalog: %v", err)
		}
		source, _ := dice.NewSource(77)
		characters := repository.NewMemoryCharacterRepository()
		users := service.NewUserService(logger, repository.NewMemoryUserRepository())
		srv := messaging.NewServer(bus, messaging.WorkerGroup(domain.GameTypeGenefunk), logger, 4)
		worker.NewCharacterListener(logger,
			service.NewGenerationService(logger, catalog, characters, source, domain.GameTypeGenefunk),
			service.NewCharacterService(logger, characters),
			service.NewUserIdentityResolver(users, logger),
		).Register(srv)
		worker.NewUserListener(logger, users).Register(srv)
		worker.NewCatalogListener(logger, catalog, domain.GameTypeGenefunk).Register(srv)
		if err := srv.Start(ctx); err != nil {
			t.Fatalf("worker: %v", err)
		}
		t.Cleanup(srv.Shutdown)
	}

	cache := messaging.NewMemoryReplyCache(time.Minute, 100)
	sub, err := messaging.NewReplyListener(bus, cache, messaging.GenerateFinished, logger).Start(ctx)
	if err != nil {
		t.Fatalf("reply listener: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	dispatcher := messaging.NewDispatcher(bus, logger, timeout, cache)
	jwtSvc := service.NewJWTService("secret", time.Hour)
	router := NewRouter(logger, jwtSvc,
		NewUserHandler(logger, service.NewUserInfoProducer(dispatcher), jwtSvc),
		NewCharacterHandler(logger, service.NewCharacterProducer(logger, dispatcher, decoupled), domain.GameTypeGenefunk),
		NewCatalogHandler(logger, service.NewCatalogProducer(dispatcher), domain.GameTypeGenefunk),
	)
	return &testAPI{router: router, jwt: jwtSvc}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) signUp(t *testing.T, externalID string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/users", "", map[string]string{"externalIdentifer": externalID, "mail": externalID + "@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign up %s: expected 201, got %d: %s", externalID, rec.Code, rec.Body.String())
	}
	var resp struct {
		User        domain.User `json:"user"`
		AccessToken string      `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode sign up: %v", err)
	}
	if resp.User.ExternalID != externalID || resp.AccessToken == "" {
		t.Fatalf("unexpected sign up response %s", rec.Body.String())
	}
	return resp.AccessToken
}

func TestCreateUserRejectsInvalidBody(t *testing.T) {
	api := newTestAPI(t, false, true, time.Second)
	rec := api.do(t, http.MethodPost, "/users", "", map[string]string{"mail": "no-subject@example.com"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCreateUserRejectsKnownSubject(t *testing.T) {
	api := newTestAPI(t, false, true, 2*time.Second)
	alice := api.signUp(t, "alice")
	rec := api.do(t, http.MethodGet, "/resource/character/generate", alice, nil)
	var created domain.Character
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, "/users", "", map[string]string{"externalIdentifer": "alice"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a registered subject, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if _, ok := resp["access_token"]; ok {
		t.Fatalf("no token may be issued for an existing subject: %s", rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, "/resource/character", alice, nil)
	var list []domain.Character
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("alice's characters must be intact, got %s", rec.Body.String())
	}
}

func TestMeReturnsRegisteredUser(t *testing.T) {
	api := newTestAPI(t, false, true, time.Second)
	token := api.signUp(t, "ext-me")

	rec := api.do(t, http.MethodGet, "/users/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var user domain.User
	_ = json.Unmarshal(rec.Body.Bytes(), &user)
	if user.ExternalID != "ext-me" || user.Email != "ext-me@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestCharacterLifecycleDirect(t *testing.T) {
	api := newTestAPI(t, false, true, 2*time.Second)
	alice := api.signUp(t, "alice")
	bob := api.signUp(t, "bob")

	rec := api.do(t, http.MethodGet, "/resource/character/generate?gameType=0", alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var created domain.Character
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode character: %v", err)
	}
	if created.ID == "" || created.Strength == nil || len(created.Classes) != 1 {
		t.Fatalf("incomplete character %s", rec.Body.String())
	}

	rec = api.do(t, http.MethodPost, "/resource/character/generate", bob, map[string]any{"firstName": "Bobby", "level": 4})
	if rec.Code != http.StatusOK {
		t.Fatalf("seeded generate: expected 200, got %d", rec.Code)
	}
	var seeded domain.Character
	_ = json.Unmarshal(rec.Body.Bytes(), &seeded)
	if seeded.FirstName != "Bobby" || seeded.Level != 4 {
		t.Fatalf("seed ignored: %+v", seeded)
	}

	rec = api.do(t, http.MethodGet, "/resource/character", alice, nil)
	var list []domain.Character
	_ = json.Unmarshal(rec.Body.Bytes(), &list)
	if rec.Code != http.StatusOK || len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("alice list: %d %s", rec.Code, rec.Body.String())
	}

	if rec = api.do(t, http.MethodDelete, "/resource/character/"+created.ID, bob, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("bob delete: expected 403, got %d", rec.Code)
	}
	if rec = api.do(t, http.MethodDelete, "/resource/character/"+created.ID, alice, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("alice delete: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec = api.do(t, http.MethodDelete, "/resource/character/"+created.ID, alice, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestCharacterEndpointsRequireToken(t *testing.T) {
	api := newTestAPI(t, false, true, time.Second)
	if rec := api.do(t, http.MethodGet, "/resource/character", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestGenerateRejectsUnknownGameTypeName(t *testing.T) {
	api := newTestAPI(t, false, true, time.Second)
	token := api.signUp(t, "ext-1")
	if rec := api.do(t, http.MethodGet, "/resource/character/generate?gameType=chess", token, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGenerateTimesOutWithoutWorker(t *testing.T) {
	api := newTestAPI(t, false, false, 50*time.Millisecond)
	token, err := api.jwt.IssueAccessToken(domain.User{ID: "u1", ExternalID: "ext-1", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rec := api.do(t, http.MethodGet, "/resource/character/generate", token.AccessToken, nil)
	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", rec.Code)
	}
}

func TestGenerateDecoupledAndPoll(t *testing.T) {
	api := newTestAPI(t, true, true, 2*time.Second)
	token := api.signUp(t, "ext-async")

	rec := api.do(t, http.MethodGet, "/resource/character/generate", token, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted struct {
		UUID string `json:"uuid"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &accepted)
	if accepted.UUID == "" {
		t.Fatalf("missing uuid in %s", rec.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = api.do(t, http.MethodGet, "/resource/character/result/"+accepted.UUID, token, nil)
		if rec.Code == http.StatusOK {
			break
		}
		if rec.Code != http.StatusAccepted || time.Now().After(deadline) {
			t.Fatalf("unexpected poll status %d: %s", rec.Code, rec.Body.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	var view service.ResultView
	_ = json.Unmarshal(rec.Body.Bytes(), &view)
	if view.State != messaging.StateCompleted || view.Character == nil || view.Character.ID == "" {
		t.Fatalf("unexpected result %s", rec.Body.String())
	}

	if rec = api.do(t, http.MethodGet, "/resource/character/result/does-not-exist", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rec.Code)
	}

	other := api.signUp(t, "ext-other")
	if rec = api.do(t, http.MethodGet, "/resource/character/result/"+accepted.UUID, other, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("another user must not read the result, got %d", rec.Code)
	}

	rec = api.do(t, http.MethodGet, "/resource/character/results", token, nil)
	var views []service.ResultView
	_ = json.Unmarshal(rec.Body.Bytes(), &views)
	if rec.Code != http.StatusOK || len(views) != 1 || views[0].CorrelationID != accepted.UUID {
		t.Fatalf("unexpected results for owner: %d %s", rec.Code, rec.Body.String())
	}
	rec = api.do(t, http.MethodGet, "/resource/character/results", other, nil)
	views = nil
	_ = json.Unmarshal(rec.Body.Bytes(), &views)
	if rec.Code != http.StatusOK || len(views) != 0 {
		t.Fatalf("results of other users must be hidden: %s", rec.Body.String())
	}
}

func TestCatalogEndpoints(t *testing.T) {
	api := newTestAPI(t, false, true, 2*time.Second)
	token := api.signUp(t, "ext-catalog")

	rec := api.do(t, http.MethodGet, "/resource/genefunk/genome", token, nil)
	var origins []domain.Origin
	_ = json.Unmarshal(rec.Body.Bytes(), &origins)
	if rec.Code != http.StatusOK || len(origins) == 0 || origins[0].Name == "" {
		t.Fatalf("genome: %d %s", rec.Code, rec.Body.String())
	}

	rec = api.do(t, http.MethodGet, "/resource/genefunk/class", token, nil)
	var classes []domain.ClassDefinition
	_ = json.Unmarshal(rec.Body.Bytes(), &classes)
	if rec.Code != http.StatusOK || len(classes) == 0 || classes[0].Skills.Choose == 0 {
		t.Fatalf("class: %d %s", rec.Code, rec.Body.String())
	}

	if rec = api.do(t, http.MethodGet, "/resource/genefunk/class", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("catalog requires a token, got %d", rec.Code)
	}
}
