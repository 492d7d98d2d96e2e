package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"inakat/lifecycle-service/internal/config"
	"inakat/lifecycle-service/internal/db"
	"inakat/lifecycle-service/internal/dispatch"
	"inakat/lifecycle-service/internal/grpcserver"
	"inakat/lifecycle-service/internal/lifecycle"
	"inakat/lifecycle-service/internal/scheduler"
	"inakat/lifecycle-service/internal/store/memory"
	"inakat/lifecycle-service/internal/store/postgres"
	"inakat/lifecycle-service/internal/tracker"
)

var serveInMemory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and gRPC servers",
	Long: `Starts the REST API, the gRPC API and the dispatch retry sweep.

With --in-memory the service keeps applications in process and logs side
effects instead of publishing them; DATABASE_URL and REDIS_URL are ignored.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveInMemory, "in-memory", false, "Use in-process storage and log side effects (local development)")
	rootCmd.AddCommand(serveCmd)
}

// backend is what the engine needs from storage.
type backend interface {
	lifecycle.Store
	lifecycle.AssignmentOracle
}

// dispatchParts are the pluggable halves of the dispatcher.
type dispatchParts struct {
	notifier dispatch.Notifier
	dedup    dispatch.Deduper
	queue    dispatch.RetryQueue
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(serveInMemory)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, parts, cleanup, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// ── Engine ───────────────────────────────────────────────────────────────
	table := lifecycle.DefaultTable(cfg.AssignmentPolicy)
	exec := lifecycle.NewExecutor(store, store, table, lifecycle.WithLogger(slog.Default()))
	dispatcher := dispatch.New(parts.notifier, parts.dedup, parts.queue, dispatch.Config{
		MaxAttempts: cfg.MaxAttempts,
	})
	// Runs before cleanup so in-flight deliveries still have their connections.
	defer dispatcher.Wait()
	svc := tracker.NewService(exec, store, dispatcher)

	sched := scheduler.New(dispatcher, cfg.RetrySpec, 100)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	defer sched.Stop()

	// ── HTTP server ──────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      tracker.NewHandler(svc, version).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// ── gRPC server ──────────────────────────────────────────────────────────
	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	gs := grpc.NewServer()
	grpcserver.Register(gs, grpcserver.NewServer(svc))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http listening", "version", version, "port", cfg.Port,
			"assignmentPolicy", cfg.AssignmentPolicy, "inMemory", cfg.InMemory)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("grpc listening", "port", cfg.GRPCPort)
		if err := gs.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})

	// ── Graceful shutdown ────────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		gs.GracefulStop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("stopped")
	return nil
}

// connect builds storage and dispatch backends. The returned cleanup closes
// whatever connections were opened.
func connect(ctx context.Context, cfg *config.Config) (backend, dispatchParts, func(), error) {
	if cfg.InMemory {
		slog.Warn("running with in-memory storage; data is lost on exit")
		return memory.New(), dispatchParts{
			notifier: dispatch.LogNotifier{Logger: slog.Default()},
			dedup:    dispatch.NewMemoryDeduper(),
			queue:    dispatch.NewMemoryQueue(),
		}, func() {}, nil
	}

	slog.Info("connecting to postgres")
	pool, err := db.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, dispatchParts{}, nil, fmt.Errorf("postgres: %w", err)
	}

	slog.Info("connecting to redis")
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		pool.Close()
		return nil, dispatchParts{}, nil, fmt.Errorf("redis: %w", err)
	}

	cleanup := func() {
		rdb.Close()
		pool.Close()
	}
	return postgres.New(pool), dispatchParts{
		notifier: dispatch.NewRedisNotifier(rdb),
		dedup:    dispatch.NewRedisDeduper(rdb, cfg.DedupTTL),
		queue:    dispatch.NewRedisQueue(rdb),
	}, cleanup, nil
}
