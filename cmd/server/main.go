/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the budget engine server: configuration,
  storage, registry load, router, graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse flags; env overrides defaults
  2. Open the SQLite store - on failure, WARN and continue with a
     memory-only session (storage trouble must never block the app)
  3. Load the registry mirror from the store
  4. Start the HTTP server with graceful shutdown

CONFIGURATION:
  -port / PORT            HTTP server port (default: 8080)
  -db / BUDGET_DB         SQLite database path (default: budget.db,
                          ":memory:" for in-memory)
  BUDGET_UNITS            Comma-separated business-unit defaults
  BUDGET_SOLICITORS       Comma-separated solicitor defaults
  BUDGET_RESPONSIBLES     Comma-separated responsible defaults

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, drain active requests
  (30s timeout), close the store, exit.

SEE ALSO:
  - api/server.go: router configuration
  - registry: mirror and persistence semantics
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lumen/budget-engine/api"
	"github.com/lumen/budget-engine/ledger"
	"github.com/lumen/budget-engine/registry"
	"github.com/lumen/budget-engine/store/sqlite"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// .env is optional; real env always wins.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("BUDGET_DB", "budget.db"), "SQLite database path")
	flag.Parse()

	// Storage is best-effort at startup: an unreachable store degrades
	// to a memory-only session instead of refusing to start.
	var st ledger.Store
	sqliteStore, err := sqlite.New(*dbPath)
	if err != nil {
		log.WithError(err).Warn("storage unavailable; running memory-only session")
	} else {
		st = sqliteStore
		defer sqliteStore.Close()
	}

	reg := registry.New(st, log)
	if err := reg.Load(context.Background()); err != nil {
		log.WithError(err).Warn("failed to load records; running memory-only session")
		reg = registry.New(nil, log)
		_ = reg.Load(context.Background())
	}

	handler := api.NewHandler(reg, api.CatalogFromEnv(), log)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("server starting on http://localhost:%d", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
