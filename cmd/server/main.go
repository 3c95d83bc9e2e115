package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Nagthis/Adweb-Proyect/internal/config"
	"github.com/Nagthis/Adweb-Proyect/internal/db"
	"github.com/Nagthis/Adweb-Proyect/internal/docstore"
	internalhttp "github.com/Nagthis/Adweb-Proyect/internal/http"
	"github.com/Nagthis/Adweb-Proyect/internal/identity"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var docs docstore.Store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
		docs = docstore.NewRedis(redisClient)
	} else {
		log.Printf("REDIS_ADDR not set, using in-memory document store")
		docs = docstore.NewMemory()
	}

	var providers internalhttp.ProviderFactory
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connection failed: %v", err)
		}
		defer pool.Close()
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("db migration failed: %v", err)
		}
		providers = func() identity.Provider { return identity.NewPostgres(pool) }
	} else {
		log.Printf("DATABASE_URL not set, using in-memory identity provider")
		base := identity.NewMemory()
		providers = func() identity.Provider { return base.Clone() }
	}

	server := internalhttp.NewServer(cfg, docs, providers)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("catalog http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	server.Close()
}
