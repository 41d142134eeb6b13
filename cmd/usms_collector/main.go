// USMS collector polls USMS accounts, keeps the long-term consumption
// statistic of every meter and serves the meter sensors over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NotCoffee418/usms_meter/pkg/config"
	"github.com/NotCoffee418/usms_meter/pkg/coordinator"
	"github.com/NotCoffee418/usms_meter/pkg/entities"
	"github.com/NotCoffee418/usms_meter/pkg/livefeed"
	"github.com/NotCoffee418/usms_meter/pkg/logging"
	"github.com/NotCoffee418/usms_meter/pkg/metrics"
	"github.com/NotCoffee418/usms_meter/pkg/pathing"
	"github.com/NotCoffee418/usms_meter/pkg/statsdb"
	"github.com/NotCoffee418/usms_meter/pkg/usms"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := pathing.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}
	if err := config.LoadCollectorConfig(); err != nil {
		log.Fatalf("Failed to load collector config: %v", err)
	}
	cfg := config.ActiveCollectorConfig
	logging.Setup(cfg.LogLevel)
	metrics.Init()

	store, err := statsdb.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open statistics database: %v", err)
	}
	defer store.Close()
	store.InitializeDatabase()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := entities.NewRegistry()
	hub := livefeed.NewHub(registry.Sensors)
	registry.OnStateChange(func(entities.SensorState) {
		hub.Broadcast(registry.Sensors())
	})

	if len(cfg.Accounts) == 0 {
		log.Warn("No USMS accounts configured, add one to collector.toml or set USMS_USERNAME and USMS_PASSWORD")
	}

	var wg sync.WaitGroup
	for _, account := range cfg.Accounts {
		c, err := newAccountCoordinator(ctx, cfg, account, store)
		if err != nil {
			log.WithError(err).Errorf("USMS rejected the credentials of %s, skipping account", account.Username)
			continue
		}
		registry.AddCoordinator(ctx, c)

		wg.Add(1)
		go func() {
			defer wg.Done()
			runCoordinator(ctx, c)
		}()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort),
		Handler:           newRouter(registry, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		log.Info("Shutting down...")
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warnf("HTTP shutdown: %v", err)
		}
	}()

	log.Infof("Starting USMS collector on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("HTTP server failed: %v", err)
	}
	wg.Wait()
}

// newAccountCoordinator logs into the account and builds its coordinator.
// Only rejected credentials are an error. Any other login failure is left to
// the coordinator's refresh cycle, which retries it every interval.
func newAccountCoordinator(
	ctx context.Context,
	cfg *config.CollectorConfig,
	account config.AccountConfig,
	store coordinator.Store,
) (*coordinator.Coordinator, error) {
	client := usms.New(cfg.BridgeURL, account.Username, account.Password,
		usms.WithRefreshInterval(cfg.ScanInterval()),
	)
	if err := client.Login(ctx); err != nil {
		if errors.Is(err, usms.ErrLogin) {
			return nil, err
		}
		log.WithError(err).Warnf("Could not reach USMS for %s, retrying on the next refresh", account.Username)
	}

	return coordinator.New(client, store,
		coordinator.WithUpdateInterval(cfg.ScanInterval()),
		coordinator.WithBackfillOnColdStart(cfg.BackfillOnColdStart),
	), nil
}

func runCoordinator(ctx context.Context, c *coordinator.Coordinator) {
	username := c.Account().Username()
	err := c.Run(ctx)
	switch {
	case errors.Is(err, coordinator.ErrReauthRequired):
		log.Errorf("USMS rejected the credentials of %s, update collector.toml and restart", username)
	case err != nil && !errors.Is(err, context.Canceled):
		log.WithError(err).Errorf("Polling stopped for %s", username)
	}
}
