package server

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a snapshot of server counters.
type Metrics struct {
	ActiveConnections int64 `json:"active_connections"`
	TotalConnections  int64 `json:"total_connections"`
	PeakConnections   int64 `json:"peak_connections"`
	Requests          int64 `json:"requests"`
	DecodeErrors      int64 `json:"decode_errors"`
	HandlerErrors     int64 `json:"handler_errors"`
	HandlerPanics     int64 `json:"handler_panics"`
	Upgrades          int64 `json:"upgrades"`
	AcceptThrottled   int64 `json:"accept_throttled"`

	CollectedAt time.Time `json:"collected_at"`
}

// metricsCollector holds the live counters.
type metricsCollector struct {
	active          atomic.Int64
	total           atomic.Int64
	peak            atomic.Int64
	requests        atomic.Int64
	decodeErrors    atomic.Int64
	handlerErrors   atomic.Int64
	handlerPanics   atomic.Int64
	upgrades        atomic.Int64
	acceptThrottled atomic.Int64
}

func (m *metricsCollector) opened() {
	m.total.Add(1)
	n := m.active.Add(1)
	for {
		peak := m.peak.Load()
		if n <= peak || m.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (m *metricsCollector) closed() {
	m.active.Add(-1)
}

// Metrics returns a snapshot of the server counters.
func (s *Server) Metrics() Metrics {
	m := &s.metrics
	return Metrics{
		ActiveConnections: m.active.Load(),
		TotalConnections:  m.total.Load(),
		PeakConnections:   m.peak.Load(),
		Requests:          m.requests.Load(),
		DecodeErrors:      m.decodeErrors.Load(),
		HandlerErrors:     m.handlerErrors.Load(),
		HandlerPanics:     m.handlerPanics.Load(),
		Upgrades:          m.upgrades.Load(),
		AcceptThrottled:   m.acceptThrottled.Load(),
		CollectedAt:       time.Now(),
	}
}

var (
	descActive = prometheus.NewDesc("corehttp_server_connections_active",
		"Number of open connections.", nil, nil)
	descPeak = prometheus.NewDesc("corehttp_server_connections_peak",
		"Highest number of simultaneously open connections.", nil, nil)
	descTotal = prometheus.NewDesc("corehttp_server_connections_total",
		"Connections accepted since start.", nil, nil)
	descRequests = prometheus.NewDesc("corehttp_server_requests_total",
		"Requests decoded since start.", nil, nil)
	descErrors = prometheus.NewDesc("corehttp_server_errors_total",
		"Errors by kind.", []string{"kind"}, nil)
	descUpgrades = prometheus.NewDesc("corehttp_server_upgrades_total",
		"Connections handed to an upgrade handler.", nil, nil)
	descThrottled = prometheus.NewDesc("corehttp_server_accept_throttled_total",
		"Accepts delayed by the rate limiter.", nil, nil)
)

type collector struct {
	srv *Server
}

// NewCollector returns a prometheus.Collector exporting s's counters.
func NewCollector(s *Server) prometheus.Collector {
	return collector{srv: s}
}

func (c collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descActive
	ch <- descPeak
	ch <- descTotal
	ch <- descRequests
	ch <- descErrors
	ch <- descUpgrades
	ch <- descThrottled
}

func (c collector) Collect(ch chan<- prometheus.Metric) {
	m := c.srv.Metrics()
	ch <- prometheus.MustNewConstMetric(descActive, prometheus.GaugeValue, float64(m.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(descPeak, prometheus.GaugeValue, float64(m.PeakConnections))
	ch <- prometheus.MustNewConstMetric(descTotal, prometheus.CounterValue, float64(m.TotalConnections))
	ch <- prometheus.MustNewConstMetric(descRequests, prometheus.CounterValue, float64(m.Requests))
	ch <- prometheus.MustNewConstMetric(descErrors, prometheus.CounterValue, float64(m.DecodeErrors), "decode")
	ch <- prometheus.MustNewConstMetric(descErrors, prometheus.CounterValue, float64(m.HandlerErrors), "handler")
	ch <- prometheus.MustNewConstMetric(descErrors, prometheus.CounterValue, float64(m.HandlerPanics), "panic")
	ch <- prometheus.MustNewConstMetric(descUpgrades, prometheus.CounterValue, float64(m.Upgrades))
	ch <- prometheus.MustNewConstMetric(descThrottled, prometheus.CounterValue, float64(m.AcceptThrottled))
}
