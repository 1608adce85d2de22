package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/messaging"
)

func startServer(t *testing.T, bus messaging.Bus, register func(*messaging.Server)) {
	t.Helper()
	srv := messaging.NewServer(bus, "test-workers", zap.NewNop(), 2)
	register(srv)
	ctx, cancel := context.WithCancel(context.Background())
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		srv.Shutdown()
		cancel()
	})
}

func TestFromRemoteRestoresKnownErrors(t *testing.T) {
	remote := fmt.Errorf("%w: %s", messaging.ErrRemote, ErrForbidden.Error())
	err := fromRemote(remote)
	if !errors.Is(err, ErrForbidden) || !errors.Is(err, messaging.ErrRemote) {
		t.Fatalf("expected forbidden and remote, got %v", err)
	}
	other := fmt.Errorf("%w: disk full", messaging.ErrRemote)
	if err := fromRemote(other); errors.Is(err, ErrForbidden) || !errors.Is(err, messaging.ErrRemote) {
		t.Fatalf("unexpected mapping %v", err)
	}
	if err := fromRemote(messaging.ErrTimeout); !errors.Is(err, messaging.ErrTimeout) {
		t.Fatalf("non remote errors pass through, got %v", err)
	}
}

func TestCharacterProducerDirect(t *testing.T) {
	bus := messaging.NewMemoryBus()
	startServer(t, bus, func(srv *messaging.Server) {
		srv.Handle(messaging.CreateCharacter, func(_ context.Context, req messaging.Envelope) (any, error) {
			seed, err := messaging.RequestAs[*domain.Character](messaging.CreateCharacter, req)
			if err != nil {
				return nil, err
			}
			name := "Rolled"
			if seed != nil {
				name = seed.FirstName
			}
			return domain.Character{ID: "c1", FirstName: name}, nil
		})
		srv.Handle(messaging.DeleteCharacter, func(context.Context, messaging.Envelope) (any, error) {
			return nil, ErrForbidden
		})
	})
	d := messaging.NewDispatcher(bus, zap.NewNop(), time.Second, nil)
	p := NewCharacterProducer(nil, d, false)
	ctx := context.Background()

	res, err := p.Generate(ctx, messaging.Header{ExternalID: "ext"}, domain.GameTypeGenefunk, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Pending() || res.Character.FirstName != "Rolled" || res.CorrelationID == "" {
		t.Fatalf("unexpected result %+v", res)
	}
	res, err = p.Generate(ctx, messaging.Header{}, domain.GameTypeGenefunk, &domain.Character{FirstName: "Seeded"})
	if err != nil || res.Character.FirstName != "Seeded" {
		t.Fatalf("seed not forwarded: %+v %v", res, err)
	}

	if err := p.Delete(ctx, messaging.Header{}, domain.GameTypeGenefunk, "c1"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCharacterProducerDecoupled(t *testing.T) {
	bus := messaging.NewMemoryBus()
	cache := messaging.NewMemoryReplyCache(time.Minute, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := messaging.NewReplyListener(bus, cache, messaging.GenerateFinished, nil).Start(ctx)
	if err != nil {
		t.Fatalf("listener: %v", err)
	}
	defer sub.Close()

	release := make(chan struct{})
	startServer(t, bus, func(srv *messaging.Server) {
		topic := messaging.GenerateTopic(domain.GameTypeGenefunk)
		srv.HandleWithResult(topic, messaging.GenerateFinished, func(context.Context, messaging.Envelope) (any, error) {
			<-release
			return domain.Character{ID: "c9", FirstName: "Async"}, nil
		})
	})

	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	p := NewCharacterProducer(nil, messaging.NewDispatcher(bus, zap.NewNop(), time.Minute, cache), true)
	alice := messaging.Header{ExternalID: "alice", Roles: []string{domain.RoleUser}}
	res, err := p.Generate(ctx, alice, domain.GameTypeGenefunk, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !res.Pending() || res.CorrelationID == "" {
		t.Fatalf("expected pending result, got %+v", res)
	}

	view, err := p.Result(ctx, alice, res.CorrelationID)
	if err != nil || view.State != messaging.StatePending {
		t.Fatalf("expected pending view, got %+v %v", view, err)
	}
	unblock()

	deadline := time.Now().Add(2 * time.Second)
	for {
		view, err = p.Result(ctx, alice, res.CorrelationID)
		if err == nil && view.State == messaging.StateCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("result never completed: %+v %v", view, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if view.Character == nil || view.Character.FirstName != "Async" {
		t.Fatalf("unexpected character %+v", view.Character)
	}

	if _, err := p.Result(ctx, alice, "unknown"); !errors.Is(err, messaging.ErrUnknownCorrelation) {
		t.Fatalf("expected unknown correlation, got %v", err)
	}

	mallory := messaging.Header{ExternalID: "mallory", Roles: []string{domain.RoleUser}}
	if _, err := p.Result(ctx, mallory, res.CorrelationID); !errors.Is(err, messaging.ErrUnknownCorrelation) {
		t.Fatalf("another user's result must look unknown, got %v", err)
	}
	admin := messaging.Header{ExternalID: "root", Roles: []string{"admin"}}
	if view, err := p.Result(ctx, admin, res.CorrelationID); err != nil || view.Character == nil {
		t.Fatalf("admin should read any result, got %+v %v", view, err)
	}

	mine, err := p.Results(ctx, alice)
	if err != nil || len(mine) != 1 || mine[0].CorrelationID != res.CorrelationID {
		t.Fatalf("unexpected results for owner %+v %v", mine, err)
	}
	if theirs, _ := p.Results(ctx, mallory); len(theirs) != 0 {
		t.Fatalf("results of other users must be hidden, got %+v", theirs)
	}
}

func TestCharacterProducerResultsWithoutCache(t *testing.T) {
	p := NewCharacterProducer(nil, messaging.NewDispatcher(messaging.NewMemoryBus(), zap.NewNop(), time.Second, nil), false)
	list, err := p.Results(context.Background(), messaging.Header{ExternalID: "alice"})
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected empty list, got %+v %v", list, err)
	}
}

func TestCatalogProducer(t *testing.T) {
	bus := messaging.NewMemoryBus()
	startServer(t, bus, func(srv *messaging.Server) {
		srv.Handle(messaging.ClassesKey(domain.GameTypeGenefunk), func(context.Context, messaging.Envelope) (any, error) {
			return []domain.ClassDefinition{{Name: "BIOHACKER"}}, nil
		})
		srv.Handle(messaging.SpeciesKey(domain.GameTypeGenefunk), func(context.Context, messaging.Envelope) (any, error) {
			return nil, nil
		})
	})
	p := NewCatalogProducer(messaging.NewDispatcher(bus, zap.NewNop(), time.Second, nil))
	ctx := context.Background()

	classes, err := p.Classes(ctx, messaging.Header{}, domain.GameTypeGenefunk)
	if err != nil || len(classes) != 1 || classes[0].Name != "BIOHACKER" {
		t.Fatalf("unexpected classes %+v %v", classes, err)
	}
	origins, err := p.Origins(ctx, messaging.Header{}, domain.GameTypeGenefunk)
	if err != nil || origins == nil || len(origins) != 0 {
		t.Fatalf("empty catalog must decode to an empty slice, got %+v %v", origins, err)
	}
}

func TestUserInfoProducerNotFound(t *testing.T) {
	bus := messaging.NewMemoryBus()
	startServer(t, bus, func(srv *messaging.Server) {
		srv.Handle(messaging.GetInternalUser, func(context.Context, messaging.Envelope) (any, error) {
			return nil, nil
		})
	})
	p := NewUserInfoProducer(messaging.NewDispatcher(bus, zap.NewNop(), time.Second, nil))
	if _, err := p.GetInternalUser(context.Background(), "ext"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
