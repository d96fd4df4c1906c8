// Package app wires the debit service runtime: storage, messaging, the
// lifecycle engine, the command listener, the scheduler sweep, and the
// gRPC health endpoint.
package app

import (
	"context"
	"fmt"
	"log"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/debitflow/internal/services/debit/domain/command"
	"github.com/louisbranch/debitflow/internal/services/debit/domain/service"
	"github.com/louisbranch/debitflow/internal/services/debit/messaging"
	"github.com/louisbranch/debitflow/internal/services/debit/observability"
	"github.com/louisbranch/debitflow/internal/services/debit/storage/bbolt"
	"github.com/louisbranch/debitflow/internal/services/debit/storage/sqlite"
)

// Run starts the debit service and blocks until the context is cancelled
// or a component fails.
func Run(ctx context.Context, cfg Config) error {
	store, err := bbolt.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open transaction store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close transaction store: %v", err)
		}
	}()

	attempts, err := sqlite.Open(cfg.AttemptDBPath)
	if err != nil {
		return fmt.Errorf("open attempt store: %w", err)
	}
	defer func() {
		if err := attempts.Close(); err != nil {
			log.Printf("close attempt store: %v", err)
		}
	}()

	bus := messaging.NewBus()
	bus.SubscribeAll(messaging.EventLogger{}.HandleEvent)
	if cfg.AMQPURL != "" {
		publisher, err := messaging.DialAMQP(cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("connect event publisher: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Printf("close event publisher: %v", err)
			}
		}()
		bus.SubscribeAll(publisher.HandleEvent)
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	engine := service.New(store, bus, metrics)

	registry, err := command.NewRegistry(command.Handlers(engine)...)
	if err != nil {
		return fmt.Errorf("build command registry: %w", err)
	}
	queue := messaging.NewQueue(cfg.QueueSize)
	listener := messaging.NewListener(queue, command.NewDispatcher(registry), attempts, cfg.Workers)
	sweeper := NewSweeper(engine, queue, cfg.SweepInterval)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return listener.Run(ctx)
	})
	group.Go(func() error {
		return sweeper.Run(ctx)
	})
	group.Go(func() error {
		log.Printf("debit service listening port=%d workers=%d", cfg.Port, cfg.Workers)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("serve grpc: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		queue.Close()
		grpcServer.GracefulStop()
		return nil
	})

	return group.Wait()
}
