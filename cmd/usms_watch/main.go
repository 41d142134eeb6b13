// USMS watch prints the meter sensors of a running collector as they change.
// Depends on the collector being online.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/usms_meter/pkg/config"
	"github.com/NotCoffee418/usms_meter/pkg/entities"
	"github.com/NotCoffee418/usms_meter/pkg/livefeed"
	"github.com/NotCoffee418/usms_meter/pkg/logging"
	"github.com/NotCoffee418/usms_meter/pkg/pathing"
	log "github.com/sirupsen/logrus"
)

func main() {
	logging.Setup(os.Getenv("USMS_LOG_LEVEL"))

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}
	if err := config.LoadWatchConfig(); err != nil {
		log.Fatalf("Failed to load watch config: %v", err)
	}
	cfg := config.ActiveWatchConfig

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feedURL := livefeed.FeedURL(cfg.CollectorHost, cfg.TLSEnabled)
	if err := livefeed.StartListener(ctx, feedURL, handleSensorStates); err != nil {
		log.Fatalf("Live feed stopped: %v", err)
	}
}

func handleSensorStates(states []entities.SensorState) {
	for _, s := range states {
		entry := log.WithFields(log.Fields{
			"sensor":    s.UniqueID,
			"credit":    s.Attributes.Credit,
			"currency":  s.Attributes.Currency,
			"available": s.Available,
		})
		entry.Infof("%s: %.2f %s (this month %.2f %s, %.2f %s)",
			s.Name,
			s.State,
			s.Unit,
			s.Attributes.ThisMonthConsumption,
			s.Unit,
			s.Attributes.ThisMonthCost,
			s.Attributes.Currency,
		)
	}
}
