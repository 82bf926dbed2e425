package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Signal metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepulse_signals_total",
			Help: "Raw detector signals emitted",
		},
		[]string{"instrument", "timeframe", "direction"},
	)

	fusedScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradepulse_fused_score",
			Help: "Latest fused consensus score per instrument",
		},
		[]string{"instrument"},
	)

	// Trading metrics
	intentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepulse_order_intents_total",
			Help: "Order intents emitted",
		},
		[]string{"instrument", "reason"},
	)

	tradePnL = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradepulse_trade_pnl",
			Help:    "Distribution of realized pnl per closed trade",
			Buckets: prometheus.LinearBuckets(-25000, 5000, 11),
		},
		[]string{"instrument"},
	)

	// Account metrics
	availableCapital = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradepulse_available_capital",
			Help: "Capital available for new entries",
		},
	)

	realizedPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradepulse_realized_pnl_today",
			Help: "Realized pnl for the current session",
		},
	)

	// Market data metrics
	lastPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradepulse_last_price",
			Help: "Latest observed price per instrument",
		},
		[]string{"instrument"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradepulse_errors_total",
			Help: "Errors by category",
		},
		[]string{"category"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(fusedScore)
	prometheus.MustRegister(intentsTotal)
	prometheus.MustRegister(tradePnL)
	prometheus.MustRegister(availableCapital)
	prometheus.MustRegister(realizedPnL)
	prometheus.MustRegister(lastPrice)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles the Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordSignal records a raw detector signal
func RecordSignal(instrument, timeframe, direction string) {
	signalsTotal.WithLabelValues(instrument, timeframe, direction).Inc()
}

// UpdateFusedScore updates the latest consensus score for an instrument
func UpdateFusedScore(instrument string, score float64) {
	fusedScore.WithLabelValues(instrument).Set(score)
}

// RecordIntent records an emitted order intent
func RecordIntent(instrument, reason string) {
	intentsTotal.WithLabelValues(instrument, reason).Inc()
}

// RecordTradePnL records the realized pnl of a closed trade
func RecordTradePnL(instrument string, pnl float64) {
	tradePnL.WithLabelValues(instrument).Observe(pnl)
}

// UpdateAccount updates the account-level gauges
func UpdateAccount(capital, pnlToday float64) {
	availableCapital.Set(capital)
	realizedPnL.Set(pnlToday)
}

// UpdatePrice updates the latest price metric
func UpdatePrice(instrument string, price float64) {
	lastPrice.WithLabelValues(instrument).Set(price)
}

// RecordError records an error metric by category
func RecordError(category string) {
	errorsTotal.WithLabelValues(category).Inc()
}
