package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"staykey/internal/booking"
	bookingcache "staykey/internal/booking/cache"
	bookingmemory "staykey/internal/booking/memory"
	bookingpostgres "staykey/internal/booking/postgres"
	certhandler "staykey/internal/certificate/handler"
	"staykey/internal/certificate/issuer"
	certmetrics "staykey/internal/certificate/metrics"
	"staykey/internal/certificate/revocation"
	certservice "staykey/internal/certificate/service"
	certstore "staykey/internal/certificate/store"
	doorhandler "staykey/internal/dooraccess/handler"
	doormetrics "staykey/internal/dooraccess/metrics"
	doorservice "staykey/internal/dooraccess/service"
	doorstore "staykey/internal/dooraccess/store"
	"staykey/internal/dooraccess/verifier"
	httptransport "staykey/internal/http"
	"staykey/internal/platform/config"
	"staykey/internal/platform/database"
	"staykey/internal/platform/health"
	"staykey/internal/platform/httpserver"
	"staykey/internal/platform/logger"
	"staykey/internal/platform/redis"
	"staykey/migrations"
	"staykey/pkg/platform/audit"
	"staykey/pkg/platform/audit/publisher"
	auditpostgres "staykey/pkg/platform/audit/store/postgres"
)

// main wires dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing staykey",
		"addr", cfg.Addr,
		"issuer", cfg.Issuer.BaseURL,
		"verifier", cfg.Verifier.BaseURL,
	)

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		if err := migrations.Apply(context.Background(), pool.DB()); err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
	}

	redisClient, err := redis.New(cfg.RedisURL)
	if err != nil {
		log.Warn("redis unavailable, reservation cache disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		certs      certstore.Store
		bookings   booking.Store
		doors      doorstore.Store
		auditStore audit.Store
	)
	if pool != nil {
		db := pool.DB()
		certs = certstore.NewPostgres(db)
		bookings = bookingpostgres.NewStore(db)
		doors = doorstore.NewPostgres(db)
		auditStore = auditpostgres.New(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		certs = certstore.NewMemory()
		bookings = bookingmemory.NewStore()
		doors = doorstore.NewMemory()
		auditStore = audit.NewInMemoryStore()
	}
	if redisClient != nil {
		bookings = bookingcache.NewStore(bookings, redisClient.Client, bookingcache.WithLogger(log))
	}

	auditor := publisher.New(auditStore, publisher.WithLogger(log))
	defer auditor.Close()

	issuerClient := issuer.NewClient(cfg.Issuer.BaseURL, cfg.Issuer.AccessToken, cfg.GatewayTimeout)
	verifierClient := verifier.NewClient(cfg.Verifier.BaseURL, cfg.Verifier.AccessToken, cfg.VerifierRef, cfg.GatewayTimeout)

	lifecycle := certservice.NewService(certs, bookings, issuerClient, cfg.VCUID,
		certservice.WithAuditor(auditor),
		certservice.WithLogger(log),
		certservice.WithMetrics(certmetrics.New()),
	)
	authority := revocation.NewAuthority(certs, bookings, issuerClient,
		revocation.WithAuditor(auditor),
		revocation.WithLogger(log),
	)
	admission := doorservice.NewService(doors, bookings, certs, verifierClient,
		doorservice.WithAttemptTTL(cfg.DoorAttemptTTL),
		doorservice.WithAuditor(auditor),
		doorservice.WithLogger(log),
		doorservice.WithMetrics(doormetrics.New()),
	)

	healthHandler := health.New()
	if pool != nil {
		healthHandler.RegisterCheck("database", dependencyCheck(pool.Health))
	}
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", dependencyCheck(redisClient.Health))
	}

	router := httptransport.NewRouter(
		certhandler.New(lifecycle, authority, log),
		doorhandler.New(admission, log),
		healthHandler,
		log,
	)
	srv := httpserver.New(cfg.Addr, router)

	run(srv, log, cfg.Addr)
}

func run(srv *http.Server, log *slog.Logger, addr string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// dependencyCheck adapts a context-taking health probe to the health
// handler's check signature with a bounded timeout.
func dependencyCheck(probe func(context.Context) error) health.CheckFunc {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return probe(ctx)
	}
}
