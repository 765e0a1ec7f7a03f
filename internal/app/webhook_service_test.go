package app_test

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"testing"

	"triviacast-service/internal/app"
	"triviacast-service/internal/domain"
	"triviacast-service/internal/farcaster"
	"triviacast-service/internal/infra/memory"

	"go.uber.org/zap"
)

type stubChecker struct {
	active bool
	err    error
	keys   []string
}

func (c *stubChecker) IsActiveSigner(_ context.Context, _ int64, keyHex string) (bool, error) {
	c.keys = append(c.keys, keyHex)
	return c.active, c.err
}

func signedBody(t *testing.T, priv ed25519.PrivateKey, fid int64, event farcaster.Event) []byte {
	t.Helper()
	env, err := farcaster.SignEnvelope(priv, fid, event)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	body, _ := json.Marshal(env)
	return body
}

func TestWebhookLifecycle(t *testing.T) {
	ctx := context.Background()
	_, priv, _ := ed25519.GenerateKey(nil)
	store := memory.NewNotificationStore()
	checker := &stubChecker{active: true}
	svc := app.NewWebhookService(store, checker, zap.NewNop())

	target := &farcaster.NotificationTarget{URL: "https://api.warpcast.com/v1/frame-notifications", Token: "t1"}
	if _, err := svc.Handle(ctx, signedBody(t, priv, 7, farcaster.Event{Event: farcaster.EventAdded, NotificationDetails: target})); err != nil {
		t.Fatalf("added: %v", err)
	}
	got, ok, _ := store.Get(ctx, 7)
	if !ok || !got.Enabled || got.Token != "t1" {
		t.Fatalf("expected enabled target, got %+v %v", got, ok)
	}
	if len(checker.keys) != 1 || checker.keys[0][:2] != "0x" {
		t.Fatalf("expected app key lookup, got %v", checker.keys)
	}

	if _, err := svc.Handle(ctx, signedBody(t, priv, 7, farcaster.Event{Event: farcaster.EventNotificationsDisabled})); err != nil {
		t.Fatalf("disabled: %v", err)
	}
	if got, _, _ = store.Get(ctx, 7); got.Enabled {
		t.Fatalf("expected notifications disabled, got %+v", got)
	}

	// legacy event names still work
	event, err := svc.Handle(ctx, signedBody(t, priv, 7, farcaster.Event{Event: "frame_removed"}))
	if err != nil || event.Event != farcaster.EventRemoved {
		t.Fatalf("removed: %+v %v", event, err)
	}
	if _, ok, _ = store.Get(ctx, 7); ok {
		t.Fatalf("expected target deleted")
	}
}

func TestWebhookRejectsUnknownKeyAndEvent(t *testing.T) {
	ctx := context.Background()
	_, priv, _ := ed25519.GenerateKey(nil)

	svc := app.NewWebhookService(memory.NewNotificationStore(), &stubChecker{active: false}, zap.NewNop())
	if _, err := svc.Handle(ctx, signedBody(t, priv, 7, farcaster.Event{Event: farcaster.EventAdded})); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected inactive key rejection, got %v", err)
	}

	svc = app.NewWebhookService(memory.NewNotificationStore(), &stubChecker{err: errors.New("hub down")}, zap.NewNop())
	if _, err := svc.Handle(ctx, signedBody(t, priv, 7, farcaster.Event{Event: farcaster.EventAdded})); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	svc = app.NewWebhookService(memory.NewNotificationStore(), &stubChecker{active: true}, zap.NewNop())
	if _, err := svc.Handle(ctx, signedBody(t, priv, 7, farcaster.Event{Event: "cast_liked"})); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected unknown event rejection, got %v", err)
	}
	if _, err := svc.Handle(ctx, []byte(`{"header":"x"}`)); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected malformed envelope rejection, got %v", err)
	}
}

func TestWebhookRefusedWithoutKeyChecker(t *testing.T) {
	ctx := context.Background()
	_, priv, _ := ed25519.GenerateKey(nil)
	store := memory.NewNotificationStore()
	svc := app.NewWebhookService(store, nil, zap.NewNop())

	target := &farcaster.NotificationTarget{URL: "https://push.test", Token: "t"}
	_, err := svc.Handle(ctx, signedBody(t, priv, 7, farcaster.Event{Event: farcaster.EventAdded, NotificationDetails: target}))
	if !errors.Is(err, domain.ErrAppKeyUnchecked) {
		t.Fatalf("expected ErrAppKeyUnchecked, got %v", err)
	}
	if _, ok, _ := store.Get(ctx, 7); ok {
		t.Fatalf("a self-signed key must not register targets for fid 7")
	}
}

type failingFetcher struct{ err error }

func (f failingFetcher) FetchQuestions(context.Context, domain.QuestionQuery) ([]domain.Question, error) {
	return nil, f.err
}

func TestFallbackFetcher(t *testing.T) {
	ctx := context.Background()
	local := memory.NewQuestionRepository(memory.NewStaticQuestionLoaderFrom(sampleQuestions()), 0)

	f := app.NewFallbackFetcher(failingFetcher{err: domain.ErrUpstream}, local, zap.NewNop())
	got, err := f.FetchQuestions(ctx, domain.QuestionQuery{Amount: 2})
	if err != nil || len(got) != 2 {
		t.Fatalf("expected fallback questions, got %d %v", len(got), err)
	}

	if _, err := f.FetchQuestions(ctx, domain.QuestionQuery{Type: "essay"}); !errors.Is(err, domain.ErrInvalidQuery) {
		t.Fatalf("expected invalid query, got %v", err)
	}

	f = app.NewFallbackFetcher(failingFetcher{err: domain.ErrUpstream}, nil, zap.NewNop())
	if _, err := f.FetchQuestions(ctx, domain.QuestionQuery{}); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions, got %v", err)
	}
}

func TestNormalizeAddress(t *testing.T) {
	got, err := app.NormalizeAddress("0x52908400098527886e0f7030069857d2e4169ee7")
	if err != nil || got != wallet {
		t.Fatalf("expected checksummed address, got %q %v", got, err)
	}
	for _, bad := range []string{"", "0x", "0x1234", "0x0000000000000000000000000000000000000000", "hello"} {
		if _, err := app.NormalizeAddress(bad); !errors.Is(err, domain.ErrInvalidAddress) {
			t.Fatalf("%q: expected ErrInvalidAddress, got %v", bad, err)
		}
	}
}
