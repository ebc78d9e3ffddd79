package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deliveryman-auth/auth"
	"deliveryman-auth/auth/application"
	"deliveryman-auth/auth/domain"
	"deliveryman-auth/auth/infra"
	"deliveryman-auth/internal/bootstrap"
	"deliveryman-auth/internal/config"
	"deliveryman-auth/internal/stub"
	"deliveryman-auth/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, "deliveryman-auth", cfg.OTELEndpoint)
	if err != nil {
		log.Fatalf("otel setup error: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	var rdb *redis.Client
	if bootstrap.NeedsRedis(cfg) {
		rdb, err = bootstrap.OpenRedis(ctx, cfg)
		if err != nil {
			log.Fatalf("redis error: %v", err)
		}
		defer func() { _ = rdb.Close() }()
	}

	queue, err := bootstrap.OpenQueue(ctx, cfg, rdb, logger)
	if err != nil {
		log.Fatalf("queue error: %v", err)
	}

	if cfg.QueueBackend == config.BackendMemory {
		if err := startInProcessStub(ctx, cfg, queue, logger); err != nil {
			log.Fatalf("stub error: %v", err)
		}
	}

	hasher := infra.BcryptHasher{}
	tokens := infra.JWTIssuer{}
	engine := application.NewRequestReply(queue, infra.UUIDGenerator{}, application.RequestReplyOptions{
		RequestQueue:  cfg.RequestQueueURL,
		ResponseQueue: cfg.ResponseQueueURL,
		Timeout:       cfg.CallTimeout,
		PollWait:      cfg.PollWait,
		PollInterval:  cfg.PollInterval,
		MaxMessages:   cfg.MaxMessages,
	}, logger)
	emitter := application.NewEventEmitter(queue, cfg.EventQueueURL, logger)
	authenticator := application.NewAuthenticator(engine, hasher, tokens, emitter, application.AuthenticatorConfig{
		Secret:        []byte(cfg.JWTSecret),
		LookupTimeout: cfg.CallTimeout,
		TokenTTL:      cfg.JWTExpiresIn,
	}, logger)

	stats := bootstrap.OpenLoginStats(cfg, rdb)
	keyFn := auth.DefaultKeyFunc(cfg.KeyHeader, cfg.TrustXFF)

	var limiterStore domain.LimiterStore
	if cfg.RateEnabled {
		store := infra.NewLimiterStore(cfg.RateRPS, cfg.RateBurst)
		store.StartJanitor(ctx)
		limiterStore = store
	}

	h := &auth.Handler{
		Auth:   authenticator,
		Tokens: tokens,
		Secret: []byte(cfg.JWTSecret),
		Stats:  stats,
		KeyFn:  keyFn,
		Logger: logger,
	}
	routes := h.Routes(
		auth.RateLimit(auth.RateLimitOptions{
			Store:               limiterStore,
			Stats:               stats,
			KeyFn:               keyFn,
			RetryAfter:          cfg.RetryAfter,
			AddRateLimitHeaders: cfg.AddHeaders,
		}),
		auth.Concurrency(auth.ConcurrencyOptions{
			Max:            cfg.ConcurrencyMax,
			AcquireTimeout: cfg.ConcurrencyTimeout,
		}),
	)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// o login pode esperar até DELIVERYMAN_CALL_TIMEOUT pelo cadastro
		WriteTimeout: cfg.CallTimeout + 30*time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("auth service listening on %s (queue backend %s)", cfg.ListenAddr, cfg.QueueBackend)
	log.Printf("queues: request=%q response=%q events=%q", cfg.RequestQueueURL, cfg.ResponseQueueURL, cfg.EventQueueURL)
	log.Printf("lookup: timeout=%s pollWait=%s pollInterval=%s maxMessages=%d", cfg.CallTimeout, cfg.PollWait, cfg.PollInterval, cfg.MaxMessages)
	log.Printf("rate: enabled=%v rps=%.3f burst=%d keyHeader=%q trustXFF=%v", cfg.RateEnabled, cfg.RateRPS, cfg.RateBurst, cfg.KeyHeader, cfg.TrustXFF)
	log.Printf("concurrency: max=%d acquireTimeout=%s", cfg.ConcurrencyMax, cfg.ConcurrencyTimeout)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// startInProcessStub liga o stub do cadastro no mesmo processo quando a fila é
// em memória; sem ele nenhum login seria respondido.
func startInProcessStub(ctx context.Context, cfg config.Config, queue domain.Queue, logger *slog.Logger) error {
	dir := stub.NewDirectory()
	if cfg.StubSeedFile != "" {
		f, err := os.Open(cfg.StubSeedFile)
		if err != nil {
			return err
		}
		defer f.Close()
		if dir, err = stub.LoadSeed(f, infra.BcryptHasher{}); err != nil {
			return err
		}
	}

	r := &stub.Responder{
		Queue:         queue,
		RequestQueue:  cfg.RequestQueueURL,
		ResponseQueue: cfg.ResponseQueueURL,
		Directory:     dir,
		PollWait:      cfg.PollWait,
		Logger:        logger.With("component", "deliveryman-stub"),
	}
	go func() {
		if err := r.Run(ctx); err != nil {
			logger.Error("deliveryman stub stopped", "error", err)
		}
	}()
	return nil
}
