package monitoring

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"ticket-ledger/internal/status"
	"ticket-ledger/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_operations_total",
			Help: "Ledger write operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	applyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_apply_duration_seconds",
			Help:    "Duration of atomic store applies",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"operation"},
	)

	ticketsSold = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "event_tickets_sold",
			Help: "Tickets sold per event",
		},
		[]string{"event_id"},
	)

	storeUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledger_store_up",
			Help: "1 when the last store ping succeeded",
		},
	)

	goroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_goroutines_total",
			Help: "Current number of active goroutines",
		},
	)
)

// Pinger is the part of the store the collector pings.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Monitor struct {
	store    Pinger
	interval time.Duration
}

func NewMonitor(store Pinger) *Monitor {
	return &Monitor{store: store, interval: 30 * time.Second}
}

// Run collects gauges until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.collect(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Monitor) collect(ctx context.Context) {
	goroutineCount.Set(float64(runtime.NumGoroutine()))

	if m.store == nil {
		return
	}
	if err := m.store.Ping(ctx); err != nil {
		storeUp.Set(0)
		logger.Warnf(ctx, "monitoring: store ping: %v", err)
		return
	}
	storeUp.Set(1)
}

// TrackOperation counts a finished ledger operation under its error code.
func (m *Monitor) TrackOperation(op string, err error) {
	ledgerOperations.WithLabelValues(op, status.Code(err)).Inc()
}

func (m *Monitor) ObserveDuration(op string, d time.Duration) {
	applyDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Monitor) SetTicketsSold(eventID, sold uint64) {
	ticketsSold.WithLabelValues(strconv.FormatUint(eventID, 10)).Set(float64(sold))
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
