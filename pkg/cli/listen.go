package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/consumer"
	"github.com/callbackd/callbackd/pkg/ingress"
	"github.com/callbackd/callbackd/pkg/kv"
	"github.com/callbackd/callbackd/pkg/listener"
	"github.com/callbackd/callbackd/pkg/router"
)

// shutdownGrace bounds each phase of a graceful shutdown.
const shutdownGrace = 30 * time.Second

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Run the subscription bridge",
	Long: `Start the bridge: accept subscription registrations from the router,
consume the configured topics and dispatch callbacks until terminated.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runListen(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	kvFactory, err := buildKVFactory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	consumerFactory, err := buildConsumerFactory(cfg, logger)
	if err != nil {
		return err
	}
	routerClient, err := buildRouterClient(cfg)
	if err != nil {
		return err
	}

	service := listener.NewService(cfg, routerClient, kvFactory, consumerFactory, logger)
	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("start listener service: %w", err)
	}

	graphqlServer := ingress.NewGraphQLServer(cfg.RouterEndpoint, service, logger)
	go serveHTTP(graphqlServer, "router endpoint", logger)

	var healthServer *http.Server
	if cfg.HealthEndpoint.Port > 0 {
		healthServer = ingress.NewHealthServer(cfg.HealthEndpoint, service.Healthy, logger)
		go serveHTTP(healthServer, "health endpoint", logger)
	}

	logger.Info("callbackd started",
		"service_name", cfg.ServiceName,
		"endpoint", graphqlServer.Addr,
		"version", Version)

	// Block until SIGINT or SIGTERM.
	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-signalCtx.Done()

	logger.Info("shutting down")

	// Refuse new subscriptions first, then drain the fabric.
	shutdownHTTP(graphqlServer, logger)
	service.Shutdown(shutdownGrace)
	if healthServer != nil {
		shutdownHTTP(healthServer, logger)
	}

	logger.Info("callbackd stopped")
	return nil
}

func serveHTTP(server *http.Server, name string, logger *slog.Logger) {
	logger.Info("server starting", "name", name, "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server crashed", "name", name, "error", err)
	}
}

func shutdownHTTP(server *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown forced", "addr", server.Addr, "error", err)
	}
}

func buildKVFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kv.Factory, error) {
	switch cfg.KVStore.Adapter {
	case config.KVAdapterMemory:
		return kv.NewMemoryFactory(), nil
	case config.KVAdapterRedis:
		return kv.NewRedisFactory(ctx, cfg.KVStore.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown kv_store adapter %q", cfg.KVStore.Adapter)
	}
}

func buildConsumerFactory(cfg *config.Config, logger *slog.Logger) (consumer.Factory, error) {
	switch cfg.MessageConsumer.Adapter {
	case config.ConsumerAdapterKafka:
		return consumer.NewKafkaFactory(cfg.MessageConsumer.Kafka, cfg.ServiceName, logger)
	default:
		return nil, fmt.Errorf("unknown message_consumer adapter %q", cfg.MessageConsumer.Adapter)
	}
}

func buildRouterClient(cfg *config.Config) (router.Client, error) {
	switch cfg.RouterClient.Adapter {
	case config.RouterAdapterHTTP:
		return router.NewHTTPClient(cfg.RouterClient.HTTP), nil
	case config.RouterAdapterMemory:
		return router.NewMemoryClient(), nil
	default:
		return nil, fmt.Errorf("unknown router_client adapter %q", cfg.RouterClient.Adapter)
	}
}
