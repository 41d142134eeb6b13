package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "usms_"

	ResultSuccess = "success"
	ResultError   = "error"
	ResultReauth  = "reauth"
)

var (
	registerOnce sync.Once

	refreshTotal   *prometheus.CounterVec
	refreshLatency *prometheus.HistogramVec
	importedRows   *prometheus.CounterVec
	gapDays        *prometheus.CounterVec
	buttonPresses  *prometheus.CounterVec
)

// Init registers the collector metrics on the default registry.
func Init() {
	registerOnce.Do(func() {
		refreshTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_total",
				Help: "Total account refresh cycles by result",
			},
			[]string{"result"},
		)
		refreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "refresh_latency_seconds",
				Help:    "Account refresh cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		importedRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statistics_imported_rows_total",
				Help: "Total statistic rows written to the store",
			},
			[]string{"statistic_id"},
		)
		gapDays = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statistics_gap_days_total",
				Help: "Total incomplete days found in recorded statistics",
			},
			[]string{"statistic_id"},
		)
		buttonPresses = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "button_presses_total",
				Help: "Total button presses by action and result",
			},
			[]string{"action", "result"},
		)

		prometheus.MustRegister(
			refreshTotal,
			refreshLatency,
			importedRows,
			gapDays,
			buttonPresses,
		)
	})
}

func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveRefresh records a refresh cycle's duration and result.
func ObserveRefresh(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if refreshTotal != nil {
		refreshTotal.WithLabelValues(result).Inc()
	}
	if refreshLatency != nil {
		refreshLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

func AddImportedRows(statisticID string, count int) {
	if count <= 0 || importedRows == nil {
		return
	}
	importedRows.WithLabelValues(statisticID).Add(float64(count))
}

func AddGapDays(statisticID string, count int) {
	if count <= 0 || gapDays == nil {
		return
	}
	gapDays.WithLabelValues(statisticID).Add(float64(count))
}

func IncButtonPress(action, result string) {
	if action == "" {
		action = "unknown"
	}
	if result == "" {
		result = ResultSuccess
	}
	if buttonPresses != nil {
		buttonPresses.WithLabelValues(action, result).Inc()
	}
}
