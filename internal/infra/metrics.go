// Prometheus metrics for the maker loop and order gateway:
//   - maker_orders_total{side}        - submissions issued
//   - maker_order_failures_total      - submissions that failed (non-cancellation)
//   - maker_fills_total{side}         - fills observed
//   - maker_cancels_total             - cancels confirmed
//   - maker_ticks_total               - decision ticks completed
//   - maker_active_orders             - resting orders currently tracked
//
// Registered in init() and served by the debug listener at /metrics.
package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mtxOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maker_orders_total",
			Help: "Order submissions issued",
		},
		[]string{"side"},
	)

	mtxOrderFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maker_order_failures_total",
			Help: "Order submissions that failed",
		},
	)

	mtxFills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maker_fills_total",
			Help: "Order fills observed",
		},
		[]string{"side"},
	)

	mtxCancels = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maker_cancels_total",
			Help: "Order cancels confirmed",
		},
	)

	mtxTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "maker_ticks_total",
			Help: "Decision ticks completed",
		},
	)

	mtxActiveOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maker_active_orders",
			Help: "Resting orders currently tracked",
		},
	)
)

func init() {
	prometheus.MustRegister(
		mtxOrders,
		mtxOrderFailures,
		mtxFills,
		mtxCancels,
		mtxTicks,
		mtxActiveOrders,
	)
}

// MetricOrderPlaced records an order submission.
func MetricOrderPlaced(side string) { mtxOrders.WithLabelValues(side).Inc() }

// MetricOrderFailed records a failed submission.
func MetricOrderFailed() { mtxOrderFailures.Inc() }

// MetricFill records a fill.
func MetricFill(side string) { mtxFills.WithLabelValues(side).Inc() }

// MetricCancel records a confirmed cancel.
func MetricCancel() { mtxCancels.Inc() }

// MetricTick records one completed decision tick.
func MetricTick() { mtxTicks.Inc() }

// MetricActiveOrders sets the resting-order gauge.
func MetricActiveOrders(n int) { mtxActiveOrders.Set(float64(n)) }

// MetricsHandler returns the Prometheus exposition handler.
func MetricsHandler() http.Handler { return promhttp.Handler() }
