package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/ticket-assistant/backend/internal/analysis/intent"
	"github.com/zhouzirui/ticket-assistant/backend/internal/client/dataapi"
	"github.com/zhouzirui/ticket-assistant/backend/internal/clock"
	"github.com/zhouzirui/ticket-assistant/backend/internal/config"
	"github.com/zhouzirui/ticket-assistant/backend/internal/handler"
	"github.com/zhouzirui/ticket-assistant/backend/internal/ports"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/action"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/ai"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/assistant"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/knowledge"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/pending"
	"github.com/zhouzirui/ticket-assistant/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	clk := clock.System{}
	api := dataapi.New(dataapi.Config{
		BaseURL: cfg.DataAPI.BaseURL,
		Token:   cfg.DataAPI.Token,
		Timeout: cfg.DataAPI.Timeout,
	})

	pendingStore, closePending := newPendingStore(ctx, cfg.Pending, clk)
	defer closePending()

	var generator action.Generator = ai.Offline{}
	if cfg.AI.Enabled() {
		pool, err := ai.NewCredentialPool(cfg.AI.APIKeys)
		if err != nil {
			log.Fatalf("failed to build credential pool: %v", err)
		}
		generator = ai.NewDispatcher(pool, ai.NewArkFactory(cfg.AI))
		log.Printf("AI dispatcher initialized with %d credential(s)", pool.Size())
	} else {
		log.Println("Ark 凭证未配置，自由问答将使用固定回复")
	}

	classifier, err := intent.New()
	if err != nil {
		log.Fatalf("failed to load intent phrases: %v", err)
	}

	syncer := knowledge.NewSynchronizer(api, clk, cfg.Assistant.KnowledgeMaxAge)
	store := session.NewStore(clk, cfg.Assistant.CacheTTL)
	executor := action.NewExecutor(syncer, api, generator, clk, cfg.Assistant.CacheTTL)
	engine := assistant.New(store, classifier, executor, syncer, pendingStore, clk)

	go engine.Run(ctx, cfg.Assistant.SweepInterval)

	router := handler.NewRouter(engine, cfg.Assistant.GenerateTimeout)

	startServer(ctx, cfg.Server, router)
}

// newPendingStore 按配置选择内存或 Redis 存储
func newPendingStore(ctx context.Context, cfg config.PendingConfig, clk clock.Clock) (ports.PendingStore, func()) {
	if cfg.Backend != "redis" {
		return pending.NewMemoryStore(clk, cfg.TTL), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("warning: redis %s unreachable: %v", cfg.RedisAddr, err)
	}

	store := pending.NewRedisStore(client, pending.RedisStoreConfig{TTL: cfg.TTL})
	log.Printf("pending navigation store: redis %s", cfg.RedisAddr)
	return store, func() {
		if err := store.Close(); err != nil {
			log.Printf("warning: close redis: %v", err)
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("ticket assistant backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
