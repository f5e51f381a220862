// cmd/client/main.go
// Main entry point for the Kiekky client core
// Bootstraps the backend client, local state and the UI gateway

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/imadgeboyega/kiekky-client/internal/api"
	"github.com/imadgeboyega/kiekky-client/internal/common/database"
	"github.com/imadgeboyega/kiekky-client/internal/common/utils"
	"github.com/imadgeboyega/kiekky-client/internal/config"
	"github.com/imadgeboyega/kiekky-client/internal/connections"
	"github.com/imadgeboyega/kiekky-client/internal/favorites"
	"github.com/imadgeboyega/kiekky-client/internal/gateway"
	"github.com/imadgeboyega/kiekky-client/internal/messaging"
	"github.com/imadgeboyega/kiekky-client/internal/sessions"
	"github.com/imadgeboyega/kiekky-client/internal/storage"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	log.Println("========================================")
	log.Println("🚀 Starting Kiekky client core")
	log.Println("========================================")

	// 1. Load environment variables
	log.Println("📁 Step 1: Loading .env file...")
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  Warning: No .env file found (%v), using environment variables", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// 2. Load and validate configuration
	log.Println("\n📋 Step 2: Loading configuration...")
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Configuration validation failed: ", err)
	}
	log.Println("✅ Configuration is valid")

	// 3. Identify the local user
	log.Println("\n🔐 Step 3: Reading access token...")
	claims, err := utils.ParseAccessToken(cfg.AccessToken)
	if err != nil {
		log.Fatal("❌ Invalid access token: ", err)
	}
	if claims.Expired(time.Now()) {
		log.Println("⚠️  Access token has expired, backend calls will fail until it is replaced")
	}
	log.Printf("✅ Signed in as user %d", claims.UserID)

	// 4. Open local state
	log.Printf("\n🗄️  Step 4: Opening %s favorites store...", cfg.FavoritesBackend)
	kv, err := openStore(cfg)
	if err != nil {
		log.Fatal("❌ Failed to open favorites store: ", err)
	}
	defer kv.Close()

	favs := favorites.NewStore(kv, cfg.FavoritesKey)
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	if err := favs.Load(loadCtx); err != nil {
		log.Printf("⚠️  Failed to load favorites: %v", err)
	}
	cancelLoad()
	log.Printf("✅ %d favorites loaded", len(favs.IDs()))

	// 5. Wire the core
	log.Println("\n💬 Step 5: Initializing core...")
	client := api.NewClient(cfg.BackendURL, cfg.AccessToken, cfg.RequestTimeout)

	loop := messaging.NewSyncLoop(client, cfg.SyncInterval)
	defer loop.Close()
	inbox := messaging.NewInbox(claims.UserID, loop, favs, client)
	conns := connections.NewService(claims.UserID, client)
	calls := sessions.NewCoordinator(claims.UserID, client, client)
	log.Printf("✅ Sync loop ready (every %s)", cfg.SyncInterval)

	// 6. Start the gateway
	log.Println("\n🛣️  Step 6: Setting up gateway...")
	hub := gateway.NewHub()
	go hub.Run()

	loop.Subscribe(func(messaging.Snapshot) {
		hub.Publish(gateway.EventConversations, inbox.Conversations())
	})

	handler := gateway.NewHandler(inbox, conns, calls, favs, hub, cfg.AllowedOrigins)
	router := gateway.NewRouter(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%s", cfg.GatewayPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("\n========================================")
		log.Printf("🚀 Gateway listening on http://%s", srv.Addr)
		log.Printf("🌍 Environment: %s, backend: %s", cfg.Environment, cfg.BackendURL)
		log.Println("========================================")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Failed to start gateway: ", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n⚠️  Shutdown signal received...")

	log.Println("   - Stopping sync loop...")
	loop.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Gateway forced to shutdown: %v", err)
	}

	log.Println("   - Shutting down websocket hub...")
	hub.Shutdown()

	log.Println("✅ Client exited gracefully")
}

// openStore connects the configured key-value backend for local state
func openStore(cfg *config.Config) (storage.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	switch cfg.FavoritesBackend {
	case config.BackendRedis:
		client, err := database.NewRedisClientFromURL(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return storage.NewRedisStore(client, "kiekky-client"), nil

	case config.BackendPostgres:
		db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL, database.DefaultPool)
		if err != nil {
			return nil, err
		}
		store := storage.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	case config.BackendMemory:
		log.Println("⚠️  Favorites are kept in memory and will be lost on exit")
		return storage.NewMemoryStore(), nil

	default:
		db, err := database.NewSQLiteDB(ctx, cfg.LocalDBPath)
		if err != nil {
			return nil, err
		}
		store := storage.NewSQLiteStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
}
