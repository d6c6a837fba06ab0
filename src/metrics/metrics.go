package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"double-auction/src/engine"
)

// Metrics is a private registry for one replay run. Nothing is served over
// HTTP; WriteTextfile dumps it in the node_exporter textfile format.
type Metrics struct {
	Registry *prometheus.Registry

	EventsProcessed *prometheus.CounterVec
	EventsRejected  *prometheus.CounterVec
	TradesExecuted  prometheus.Counter
	TradedQuantity  prometheus.Counter
	OrdersInBook    prometheus.Gauge
	PriceLevels     *prometheus.GaugeVec
	Volatility      prometheus.Gauge
	MidPrice        prometheus.Gauge
	Flushes         prometheus.Counter
	ProcessLatency  prometheus.Summary
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_events_processed_total",
			Help: "Accepted order events by type",
		}, []string{"type"}),
		EventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auction_events_rejected_total",
			Help: "Rejected order events by reason",
		}, []string{"reason"}),
		TradesExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_trades_total",
			Help: "Trades executed",
		}),
		TradedQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_traded_quantity_total",
			Help: "Sum of traded quantity",
		}),
		OrdersInBook: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auction_resting_orders",
			Help: "Orders resting on either side",
		}),
		PriceLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "auction_price_levels",
			Help: "Active price levels by side",
		}, []string{"side"}),
		Volatility: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auction_mid_volatility",
			Help: "Sample standard deviation of the mid-price window",
		}),
		MidPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "auction_mid_price",
			Help: "Last sampled mid-price",
		}),
		Flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auction_sink_flushes_total",
			Help: "Sink flushes",
		}),
		ProcessLatency: prometheus.NewSummary(prometheus.SummaryOpts{
			Name:       "auction_process_latency_seconds",
			Help:       "ProcessOrder latency",
			Objectives: map[float64]float64{0.5: 0.05, 0.99: 0.001, 0.999: 0.0001},
		}),
	}

	m.Registry.MustRegister(
		m.EventsProcessed, m.EventsRejected, m.TradesExecuted, m.TradedQuantity,
		m.OrdersInBook, m.PriceLevels, m.Volatility, m.MidPrice, m.Flushes,
		m.ProcessLatency,
	)
	return m
}

// ObserveResult records an accepted event and its trades.
func (m *Metrics) ObserveResult(ev engine.OrderEvent, result *engine.MatchResult, latency time.Duration) {
	m.EventsProcessed.WithLabelValues(ev.Type.String()).Inc()
	m.ProcessLatency.Observe(latency.Seconds())
	m.TradesExecuted.Add(float64(len(result.Trades)))
	for _, t := range result.Trades {
		m.TradedQuantity.Add(float64(t.Quantity))
	}
}

func (m *Metrics) ObserveReject(reason string) {
	m.EventsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveBook(book *engine.OrderBook) {
	m.OrdersInBook.Set(float64(book.Orders.Len()))
	m.PriceLevels.WithLabelValues(engine.SideBuy.String()).Set(float64(book.Bids.Len()))
	m.PriceLevels.WithLabelValues(engine.SideSell.String()).Set(float64(book.Asks.Len()))
}

func (m *Metrics) ObserveTick(mid, volatility float64) {
	m.MidPrice.Set(mid)
	m.Volatility.Set(volatility)
}

func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
