// FindMyLease listing server
// Serves listing and saved-listing collections over gRPC with live updates
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/savan1304/FindMyLeaseApp/internal/config"
	"github.com/savan1304/FindMyLeaseApp/internal/logger"
	"github.com/savan1304/FindMyLeaseApp/internal/metrics"
	"github.com/savan1304/FindMyLeaseApp/internal/server"
	"github.com/savan1304/FindMyLeaseApp/pkg/redisstore"
	"github.com/savan1304/FindMyLeaseApp/pkg/remote"
	"github.com/savan1304/FindMyLeaseApp/pkg/store"
)

var (
	configPath  = flag.StringP("config", "c", "", "YAML config file")
	port        = flag.Int("port", 0, "gRPC port (overrides config)")
	httpPort    = flag.Int("http-port", 0, "Observability HTTP port (overrides config)")
	dbPath      = flag.String("db", "", "bbolt database path (overrides config)")
	backendName = flag.String("backend", "", "Store backend: bolt or redis (overrides config)")
	redisAddr   = flag.String("redis", "", "Redis address (overrides config)")
	logLevel    = flag.String("log-level", "", "Log level (overrides config)")
	pretty      = flag.Bool("pretty", false, "Human readable logs")
	seed        = flag.Bool("seed", false, "Insert demo listings on startup")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.InitGlobalLogger(logger.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
	})
	log := logger.GetGlobalLogger()

	if err := run(cfg, log); err != nil {
		log.Fatal("Server failed").Err(err).Send()
	}
}

func applyFlags(cfg *config.Config) {
	if *port != 0 {
		cfg.Server.GRPCPort = *port
	}
	if *httpPort != 0 {
		cfg.Server.HTTPPort = *httpPort
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *backendName != "" {
		cfg.Store.Backend = *backendName
	}
	if *redisAddr != "" {
		cfg.Store.Redis.Address = *redisAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *pretty {
		cfg.Log.Pretty = true
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewMetrics(nil)
	go m.RunUptime(ctx, 15*time.Second)

	backend, closeBackend, err := openBackend(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer closeBackend()

	if *seed {
		if err := seedListings(ctx, backend); err != nil {
			return fmt.Errorf("failed to seed listings: %w", err)
		}
		log.Info("Seeded demo listings").Int("count", len(demoListings)).Send()
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, log.GrpcLogger("unary"))),
		grpc.StreamInterceptor(server.GrpcStreamMetricsInterceptor(m, log.GrpcLogger("stream"))),
	)
	remote.RegisterCollectionsServer(grpcServer, server.NewServer(backend, log, m))

	// Register reflection service for grpcurl/grpcui
	reflection.Register(grpcServer)

	obs := server.NewObservabilityServer(cfg.Server.HTTPPort, log, nil)
	go func() {
		if err := obs.Start(); err != nil {
			log.Error("Observability server failed").Err(err).Send()
		}
	}()

	go func() {
		<-ctx.Done()
		log.LogServerShutdown()
		obs.SetReady(false)

		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = obs.Shutdown(shutdownCtx)

		// Watch streams only end when clients leave, so graceful stop is bounded
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
	}()

	log.LogServerReady(cfg.Server.GRPCPort)
	obs.SetReady(true)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (server.Backend, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendRedis:
		log.LogServerStart(cfg.Server.GRPCPort, cfg.Store.Redis.Address)
		rs, err := redisstore.Dial(ctx, cfg.Store.Redis.Address, redisstore.Options{
			Prefix:  cfg.Store.Redis.Prefix,
			Logger:  log,
			Metrics: m,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { rs.Close() }, nil

	default:
		log.LogServerStart(cfg.Server.GRPCPort, cfg.Store.Path)
		st, err := store.Open(cfg.Store.Path, store.Options{Logger: log, Metrics: m})
		if err != nil {
			return nil, nil, err
		}
		return server.BoltBackend(st), func() { st.Close() }, nil
	}
}
