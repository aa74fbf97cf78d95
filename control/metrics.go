// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus export of session manager statistics.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-net/session"
)

// StatsSource yields a statistics snapshot. Stats must be safe to call from
// the scrape goroutine, as session.Manager.Stats is.
type StatsSource interface {
	Stats() session.Stats
}

type statMetric struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(session.Stats) float64
}

// StatsCollector is a prometheus.Collector reading a StatsSource on every
// scrape.
type StatsCollector struct {
	src     StatsSource
	metrics []statMetric
}

var _ prometheus.Collector = (*StatsCollector)(nil)

// NewStatsCollector builds a collector under the hioload namespace.
func NewStatsCollector(src StatsSource) *StatsCollector {
	counter := func(name, help string, fn func(session.Stats) uint64) statMetric {
		return statMetric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName("hioload", "session", name), help, nil, nil),
			kind:  prometheus.CounterValue,
			value: func(s session.Stats) float64 { return float64(fn(s)) },
		}
	}
	gauge := func(name, help string, fn func(session.Stats) float64) statMetric {
		return statMetric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName("hioload", "session", name), help, nil, nil),
			kind:  prometheus.GaugeValue,
			value: fn,
		}
	}

	return &StatsCollector{
		src: src,
		metrics: []statMetric{
			counter("connects_total", "Connector attempts that succeeded.", func(s session.Stats) uint64 { return s.TotalConnectCount }),
			counter("connect_failures_total", "Connector attempts that failed.", func(s session.Stats) uint64 { return s.TotalConnectFailCount }),
			counter("accepts_total", "Inbound connections admitted.", func(s session.Stats) uint64 { return s.TotalAcceptCount }),
			counter("accept_failures_total", "Inbound connections refused or failed.", func(s session.Stats) uint64 { return s.TotalAcceptFailCount }),
			counter("connector_closes_total", "Established connector sessions closed.", func(s session.Stats) uint64 { return s.TotalConnectClosedCount }),
			counter("accepted_closes_total", "Accepted sessions closed.", func(s session.Stats) uint64 { return s.TotalAcceptClosedCount }),
			counter("sends_total", "Send calls queued.", func(s session.Stats) uint64 { return s.TotalSendCount }),
			counter("sent_bytes_total", "Bytes queued for sending.", func(s session.Stats) uint64 { return s.TotalSendBytes }),
			counter("sent_messages_total", "Framed messages queued.", func(s session.Stats) uint64 { return s.TotalSendMessages }),
			counter("receives_total", "Read completions.", func(s session.Stats) uint64 { return s.TotalRecvCount }),
			counter("received_bytes_total", "Bytes read.", func(s session.Stats) uint64 { return s.TotalRecvBytes }),
			counter("received_messages_total", "Binary frames delivered.", func(s session.Stats) uint64 { return s.TotalRecvMessages }),
			counter("received_http_chunks_total", "HTTP mode chunks delivered.", func(s session.Stats) uint64 { return s.TotalRecvHTTPCount }),
			gauge("sessions", "Registered sessions, pending connectors included.", func(s session.Stats) float64 { return float64(s.Sessions) }),
			gauge("acceptors", "Registered listeners.", func(s session.Stats) float64 { return float64(s.Acceptors) }),
			gauge("start_time_seconds", "Unix time the manager started.", func(s session.Stats) float64 {
				if s.OpenTime.IsZero() {
					return 0
				}
				return float64(s.OpenTime.UnixNano()) / 1e9
			}),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.kind, m.value(st))
	}
}
