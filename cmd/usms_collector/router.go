package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NotCoffee418/usms_meter/pkg/coordinator"
	"github.com/NotCoffee418/usms_meter/pkg/entities"
	"github.com/NotCoffee418/usms_meter/pkg/livefeed"
	"github.com/NotCoffee418/usms_meter/pkg/metrics"
	log "github.com/sirupsen/logrus"
)

func newRouter(registry *entities.Registry, hub *livefeed.Hub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "USMS Meter Collector",
			"status":  "running",
			"sensors": len(registry.Sensors()),
		})
	})

	mux.HandleFunc("GET /sensors", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, registry.Sensors())
	})

	mux.HandleFunc("GET /sensors/{id}", func(w http.ResponseWriter, r *http.Request) {
		state, err := registry.Sensor(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	})

	mux.HandleFunc("GET /buttons", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, registry.Buttons())
	})

	// Runs to completion, downloading a full history can take a while
	mux.HandleFunc("POST /buttons/{id}/press", func(w http.ResponseWriter, r *http.Request) {
		result, err := registry.Press(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	mux.HandleFunc("GET /ws", hub.ServeWS)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, entities.ErrUnknownEntity), errors.Is(err, coordinator.ErrUnknownMeter):
		status = http.StatusNotFound
	case errors.Is(err, coordinator.ErrReauthRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, coordinator.ErrUpdateFailed):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
