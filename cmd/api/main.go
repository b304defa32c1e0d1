package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sufragio.org/internal/httpapi"
	"sufragio.org/internal/ledger"
	"sufragio.org/internal/obs"
	"sufragio.org/internal/store/pg"
	"sufragio.org/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	// Observability primero: registro de métricas y logger JSON.
	obs.Init()
	obs.InitBuildInfo(version, commit)

	adminRaw := os.Getenv("SUFRAGIO_ADMIN_ADDRESS")
	if adminRaw == "" {
		log.Fatal("SUFRAGIO_ADMIN_ADDRESS is required")
	}
	admin, err := ledger.ParseAccountID(adminRaw)
	if err != nil {
		log.Fatalf("bad SUFRAGIO_ADMIN_ADDRESS: %v", err)
	}

	// Diario de decisiones en Postgres, opcional.
	var (
		journal httpapi.Journal
		probe   httpapi.ReadyProbe
	)
	if dsn := os.Getenv("SUFRAGIO_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open journal db: %v", err)
		}
		defer store.Close()
		journal = store
		probe = httpapi.ReadyProbe{DB: store.DB()}
	}

	lg := ledger.New(admin)
	st := stream.New()
	api := httpapi.New(probe, version, lg, st, journal)

	addr := os.Getenv("SUFRAGIO_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting sufragio-api %s on %s (administrator %s)", version, srv.Addr, admin.Hex())

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
