package cli

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"triviacast-service/internal/app"
	"triviacast-service/internal/config"
	"triviacast-service/internal/farcaster"
	"triviacast-service/internal/infra/chain"
	"triviacast-service/internal/infra/file"
	"triviacast-service/internal/infra/memory"
	"triviacast-service/internal/infra/neynar"
	"triviacast-service/internal/infra/opentdb"
	pginfra "triviacast-service/internal/infra/postgres"
	redisinfra "triviacast-service/internal/infra/redis"
	"triviacast-service/internal/logger"
	"triviacast-service/internal/metrics"
	transport "triviacast-service/internal/transport/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func loadConfigAndLogger(configPath string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// backends holds the optional infrastructure clients; nil fields are not configured.
type backends struct {
	redis *redis.Client
	pool  *pgxpool.Pool
	eth   *ethclient.Client
}

func (b backends) close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.pool != nil {
		b.pool.Close()
	}
	if b.eth != nil {
		b.eth.Close()
	}
}

func connect(ctx context.Context, cfg config.Config, log *zap.Logger) (backends, error) {
	var b backends
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			b.close()
			return backends{}, err
		}
		log.Info("using redis", zap.String("addr", cfg.Redis.Addr))
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return backends{}, err
		}
		b.pool = pool
		log.Info("using postgres")
	}
	if cfg.Chain.RPCURL != "" {
		eth, err := ethclient.DialContext(ctx, cfg.Chain.RPCURL)
		if err != nil {
			b.close()
			return backends{}, err
		}
		b.eth = eth
		log.Info("using chain rpc", zap.Int64("chainId", cfg.Chain.ChainID))
	}
	return b, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfigAndLogger(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	metrics.Register(prometheus.DefaultRegisterer)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	services, err := buildServices(ctx, cfg, b, log)
	if err != nil {
		return err
	}

	router := transport.NewRouter(services, transport.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      config.IntOr(cfg.RateLimit.Requests, 60),
		RateWindow:     config.TTLDuration(cfg.RateLimit.Window, time.Minute),
		TrustProxy:     cfg.Server.TrustProxy,
	}, log)
	defer router.Close()

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting triviacast service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildServices(ctx context.Context, cfg config.Config, b backends, log *zap.Logger) (transport.Services, error) {
	questions, err := buildQuestionFetcher(cfg, b, log)
	if err != nil {
		return transport.Services{}, err
	}

	sessionTTL := config.TTLDuration(cfg.Quiz.SessionTTL, 30*time.Minute)
	var sessions app.SessionRepository = memory.NewSessionStore(sessionTTL)
	var gate app.SpinGate = memory.NewSpinGate()
	var notifications app.NotificationStore = memory.NewNotificationStore()
	if b.redis != nil {
		sessions = redisinfra.NewSessionStore(b.redis, sessionTTL)
		gate = redisinfra.NewSpinGate(b.redis)
		notifications = redisinfra.NewNotificationStore(b.redis)
	}

	var results app.ResultStore = memory.NewResultStore()
	var jackpotLog app.JackpotLog = file.NewJackpotLog(orDefault(cfg.Jackpot.LogPath, "data/jackpot_log.json"))
	if b.pool != nil {
		results = pginfra.NewResultStore(b.pool)
		jackpotLog = pginfra.NewJackpotLog(b.pool)
	}

	var source app.LeaderboardSource = results
	var submitter app.PointsSubmitter
	var verifier app.PayoutVerifier
	if b.eth != nil {
		points, err := buildPointsContract(ctx, cfg, b.eth)
		if err != nil {
			return transport.Services{}, err
		}
		if points != nil {
			source = points
			if cfg.Chain.RelayerKey != "" {
				submitter = points
			}
		}
		if common.IsHexAddress(cfg.Chain.JackpotContract) {
			verifier = chain.NewPayoutVerifier(b.eth, common.HexToAddress(cfg.Chain.JackpotContract))
		}
	}
	if verifier == nil {
		log.Warn("jackpot contract not configured: payouts cannot be confirmed")
	}

	var profiles app.ProfileLookup
	var keyChecker app.AppKeyChecker
	if cfg.Neynar.APIKey != "" {
		client := neynar.NewClient(cfg.Neynar.APIKey, cfg.Neynar.BaseURL, cfg.Neynar.HubURL,
			config.TTLDuration(cfg.Neynar.Timeout, 5*time.Second))
		profiles = client
		keyChecker = client
	} else {
		log.Warn("neynar api key not set: leaderboard is not enriched and mini-app webhooks are refused")
	}

	leaderboard := app.NewLeaderboardService(source, profiles,
		config.TTLDuration(cfg.Leaderboard.TTL, 30*time.Second),
		config.IntOr(cfg.Leaderboard.Limit, 100), log)

	quizOpts := []app.QuizOption{
		app.WithPublisher(leaderboard),
		app.WithQuestionCount(cfg.Quiz.Questions),
	}
	if submitter != nil {
		quizOpts = append(quizOpts, app.WithPointsSubmitter(submitter))
	}
	quiz := app.NewQuizService(questions, sessions, results, log, quizOpts...)

	deps := app.JackpotDeps{
		Log:      jackpotLog,
		Gate:     gate,
		Verifier: verifier,
		Cooldown: config.TTLDuration(cfg.Jackpot.Cooldown, 24*time.Hour),
	}
	if cfg.Jackpot.SignerKey != "" {
		signer, err := chain.NewSigner(cfg.Jackpot.SignerKey)
		if err != nil {
			return transport.Services{}, err
		}
		deps.Signer = signer
		log.Info("jackpot claims signed", zap.String("signer", signer.Address().Hex()))
	} else {
		log.Warn("jackpot signer key not set: wins cannot be claimed")
	}

	services := transport.Services{
		Quiz:        quiz,
		Questions:   questions,
		Leaderboard: leaderboard,
		Jackpot:     app.NewJackpotService(deps, log),
		Webhook:     app.NewWebhookService(notifications, keyChecker, log),
		Profiles:    profiles,
	}
	if cfg.Auth.Secret != "" || cfg.Auth.PublicKeyPEM != "" {
		auth, err := farcaster.NewQuickAuthVerifier(cfg.Auth.Domain, cfg.Auth.Issuer, cfg.Auth.Secret, cfg.Auth.PublicKeyPEM)
		if err != nil {
			return transport.Services{}, err
		}
		services.Auth = auth
	} else {
		log.Warn("quick auth not configured: jackpot endpoints are unauthenticated")
	}
	return services, nil
}

// buildQuestionFetcher puts OpenTDB in front of the cached local bank
// (Postgres when configured, bundled questions otherwise).
func buildQuestionFetcher(cfg config.Config, b backends, log *zap.Logger) (app.QuestionFetcher, error) {
	var loader memory.PoolLoader
	if b.pool != nil {
		loader = pginfra.NewQuestionLoader(b.pool)
	} else {
		bundled, err := memory.NewStaticQuestionLoader()
		if err != nil {
			return nil, err
		}
		loader = bundled
	}

	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var local app.QuestionFetcher = memory.NewQuestionRepository(loader, ttl)
	if b.redis != nil {
		local = redisinfra.NewQuestionRepository(b.redis, loader, ttl)
	}

	primary := opentdb.NewClient(cfg.OpenTDB.BaseURL, config.TTLDuration(cfg.OpenTDB.Timeout, 5*time.Second))
	return app.NewFallbackFetcher(primary, local, log), nil
}

func buildPointsContract(ctx context.Context, cfg config.Config, eth *ethclient.Client) (*chain.PointsContract, error) {
	if !common.IsHexAddress(cfg.Chain.PointsContract) {
		return nil, nil
	}
	chainID := big.NewInt(cfg.Chain.ChainID)
	if cfg.Chain.ChainID == 0 {
		id, err := eth.ChainID(ctx)
		if err != nil {
			return nil, err
		}
		chainID = id
	}
	key := cfg.Chain.RelayerKey
	if key == "" {
		return chain.NewPointsContract(common.HexToAddress(cfg.Chain.PointsContract), eth, nil, nil, chainID), nil
	}
	priv, err := chain.ParseKey(key)
	if err != nil {
		return nil, err
	}
	return chain.NewPointsContract(common.HexToAddress(cfg.Chain.PointsContract), eth, eth, priv, chainID), nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
