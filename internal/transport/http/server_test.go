package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"triviacast-service/internal/app"
	"triviacast-service/internal/domain"
	"triviacast-service/internal/farcaster"
	"triviacast-service/internal/infra/chain"
	"triviacast-service/internal/infra/file"
	"triviacast-service/internal/infra/memory"
	"triviacast-service/internal/jackpot"

	"go.uber.org/zap"
)

const (
	testSecret = "quick-auth-secret"
	testDomain = "triviacast.test"
	testIssuer = "https://auth.farcaster.xyz"
	testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"
	signerKey  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
)

type testEnv struct {
	server        *httptest.Server
	router        *Router
	results       *memory.ResultStore
	notifications *memory.NotificationStore
	quiz          *app.QuizService
	payouts       *payoutLedger
}

type envOptions struct {
	rateLimit  int
	trustProxy bool
	drawBytes  []byte
	profiles   app.ProfileLookup
}

// payoutLedger stands in for the chain: it knows which claim each tx hash paid.
type payoutLedger struct {
	mu   sync.Mutex
	paid map[string]domain.JackpotLogEntry
}

func (l *payoutLedger) record(txHash string, entry domain.JackpotLogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paid[txHash] = entry
}

func (l *payoutLedger) VerifyPayout(_ context.Context, txHash string, entry domain.JackpotLogEntry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	paid, ok := l.paid[txHash]
	return ok && paid.ClaimNonce == entry.ClaimNonce && strings.EqualFold(paid.Address, entry.Address), nil
}

type activeKeys struct{}

func (activeKeys) IsActiveSigner(context.Context, int64, string) (bool, error) { return true, nil }

type staticProfiles map[string]domain.FarcasterUser

func (p staticProfiles) UsersByAddress(_ context.Context, addresses []string) (map[string]domain.FarcasterUser, error) {
	out := map[string]domain.FarcasterUser{}
	for _, a := range addresses {
		if u, ok := p[strings.ToLower(a)]; ok {
			out[strings.ToLower(a)] = u
		}
	}
	return out, nil
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	log := zap.NewNop()

	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoaderFrom(sampleQuestions()), time.Minute)
	results := memory.NewResultStore()
	leaderboard := app.NewLeaderboardService(results, nil, time.Minute, 10, log)
	quiz := app.NewQuizService(questions, memory.NewSessionStore(time.Minute), results, log,
		app.WithPublisher(leaderboard),
		app.WithShuffle(func([]string) {}))

	signer, err := chain.NewSigner(signerKey)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	drawBytes := opts.drawBytes
	if drawBytes == nil {
		drawBytes = make([]byte, 64)
	}
	payouts := &payoutLedger{paid: map[string]domain.JackpotLogEntry{}}
	jackpotSvc := app.NewJackpotService(app.JackpotDeps{
		Log:      file.NewJackpotLog(filepath.Join(t.TempDir(), "jackpot.json")),
		Gate:     memory.NewSpinGate(),
		Signer:   signer,
		Verifier: payouts,
		Drawer:   jackpot.NewDrawerWithSource(bytes.NewReader(drawBytes)),
		Cooldown: time.Hour,
	}, log)

	notifications := memory.NewNotificationStore()
	verifier, err := farcaster.NewQuickAuthVerifier(testDomain, testIssuer, testSecret, "")
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	rateLimit := opts.rateLimit
	if rateLimit == 0 {
		rateLimit = 1000
	}
	router := NewRouter(Services{
		Quiz:        quiz,
		Questions:   questions,
		Leaderboard: leaderboard,
		Jackpot:     jackpotSvc,
		Webhook:     app.NewWebhookService(notifications, activeKeys{}, log),
		Profiles:    opts.profiles,
		Auth:        verifier,
	}, Options{
		AllowedOrigins: []string{"https://triviacast.test"},
		RateLimit:      rateLimit,
		RateWindow:     time.Minute,
		TrustProxy:     opts.trustProxy,
	}, log)

	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		router.Close()
	})
	return &testEnv{server: server, router: router, results: results, notifications: notifications, quiz: quiz, payouts: payouts}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func token(t *testing.T, fid int64) string {
	t.Helper()
	tok, err := farcaster.IssueHS256(testSecret, testDomain, testIssuer, fid, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return tok
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Category: "Science & Nature", Type: "multiple", Difficulty: "easy", Question: "Red planet?", CorrectAnswer: "Mars", IncorrectAnswers: []string{"Venus", "Jupiter", "Mercury"}},
		{Category: "Geography", Type: "multiple", Difficulty: "easy", Question: "Capital of France?", CorrectAnswer: "Paris", IncorrectAnswers: []string{"Rome", "Berlin", "Madrid"}},
		{Category: "Science: Mathematics", Type: "boolean", Difficulty: "easy", Question: "Is 7 prime?", CorrectAnswer: "True", IncorrectAnswers: []string{"False"}},
	}
}

var answers = map[string]string{
	"Red planet?":        "Mars",
	"Capital of France?": "Paris",
	"Is 7 prime?":        "True",
}
