// Command mp-server starts the meal planner gRPC backend.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	pb "github.com/and161185/meal-planner/gen/go/mealplanner/v1"
	"github.com/and161185/meal-planner/internal/config"
	"github.com/and161185/meal-planner/internal/limiter"
	"github.com/and161185/meal-planner/internal/migrate"
	"github.com/and161185/meal-planner/internal/repository/postgres"
	grpcserver "github.com/and161185/meal-planner/internal/server/grpc"
	"github.com/and161185/meal-planner/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and serves gRPC plus the admin endpoints.
func main() {
	cfgPath := flag.String("config", "", "path to config.toml (default $"+config.EnvPath+")")
	addr := flag.String("addr", "", "listen address, overrides server.addr")
	dsn := flag.String("dsn", "", "PostgreSQL DSN, overrides server.dsn")
	jwtKey := flag.String("jwt-key", "", "HS256 signing key, overrides server.jwt_key")
	dev := flag.Bool("dev", false, "plaintext transport and server reflection")
	debug := flag.Bool("debug", false, "development logging")
	flag.Parse()

	logger, _ := zap.NewProduction()
	if *debug {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	sc := cfg.Server
	if *addr != "" {
		sc.Addr = *addr
	}
	if *dsn != "" {
		sc.DSN = *dsn
	}
	if *jwtKey != "" {
		sc.JWTKey = *jwtKey
	}
	sc.Dev = sc.Dev || *dev
	if err := sc.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", sc.Addr),
		zap.Bool("dev", sc.Dev),
	)

	opts := []grpc.ServerOption{}
	if !sc.Dev {
		creds, err := credentials.NewServerTLSFromFile(sc.TLSCert, sc.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, sc.DSN, logger); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, sc.DSN)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	accounts := postgres.NewAccountRepo(db)
	documents := postgres.NewDocumentRepo(db)

	lim := limiter.NewPG(db.Pool, sc.Limiter.Window.Duration, sc.Limiter.MaxFails, sc.Limiter.BlockFor.Duration)

	// no mail relay yet: reset tokens go to the log on dev servers only
	var notifier service.ResetNotifier
	if sc.Dev {
		notifier = service.LogNotifier{Log: logger.Named("reset")}
	}
	authSvc := service.NewAuthService(accounts, lim, notifier, service.AuthConfig{
		SignKey:   []byte(sc.JWTKey),
		AccessTTL: sc.AccessTTL.Duration,
		ResetTTL:  sc.ResetTTL.Duration,
	}, logger.Named("auth"))
	docSvc := service.NewDocumentService(documents, service.NewHub(), logger.Named("documents"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := grpcserver.NewMetrics(reg)

	opts = append(opts,
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			metrics.Unary(),
			grpcserver.AuthUnary(authSvc),
		),
		grpc.ChainStreamInterceptor(
			grpcserver.RecoverStream(logger),
			grpcserver.LoggingStream(logger),
			metrics.Stream(),
			grpcserver.AuthStream(authSvc),
		),
	)
	s := grpc.NewServer(opts...)

	pb.RegisterPlannerServer(s, grpcserver.New(authSvc, docSvc, logger.Named("rpc")))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if sc.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", sc.Addr), zap.Bool("tls", !sc.Dev))
		errCh <- s.Serve(lis)
	}()

	var admin *http.Server
	if sc.AdminAddr != "" {
		admin = &http.Server{
			Addr:              sc.AdminAddr,
			Handler:           grpcserver.NewAdminRouter(reg, db.Ping),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("admin listening", zap.String("addr", sc.AdminAddr))
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		hs.Shutdown()
		if admin != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = admin.Shutdown(shutdownCtx)
			cancel()
		}
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
