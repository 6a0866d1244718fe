package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dxsim"

// Collector exposes a Tracker to Prometheus. Values are read from a fresh
// Snapshot on every scrape so the hot path only touches atomics.
type Collector struct {
	tracker *Tracker

	spots          *prometheus.Desc
	spotsByMode    *prometheus.Desc
	commands       *prometheus.Desc
	sessionsActive *prometheus.Desc
	sessionsTotal  *prometheus.Desc
	sessionsDenied *prometheus.Desc
	writeFailures  *prometheus.Desc
	bytesSent      *prometheus.Desc
}

// NewCollector wraps tracker for registration with a prometheus.Registerer.
func NewCollector(tracker *Tracker) *Collector {
	return &Collector{
		tracker: tracker,
		spots: prometheus.NewDesc(namespace+"_spots_total",
			"Spots written to telnet sessions, by band.", []string{"band"}, nil),
		spotsByMode: prometheus.NewDesc(namespace+"_spots_by_mode_total",
			"Spots written to telnet sessions, by generation mode.", []string{"mode"}, nil),
		commands: prometheus.NewDesc(namespace+"_commands_total",
			"Commands processed, by verb.", []string{"verb"}, nil),
		sessionsActive: prometheus.NewDesc(namespace+"_sessions_active",
			"Telnet sessions currently open.", nil, nil),
		sessionsTotal: prometheus.NewDesc(namespace+"_sessions_opened_total",
			"Telnet sessions accepted since start.", nil, nil),
		sessionsDenied: prometheus.NewDesc(namespace+"_sessions_rejected_total",
			"Connections refused by the connection limit.", nil, nil),
		writeFailures: prometheus.NewDesc(namespace+"_write_failures_total",
			"Session write errors.", nil, nil),
		bytesSent: prometheus.NewDesc(namespace+"_bytes_sent_total",
			"Bytes written by closed sessions.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.spots
	ch <- c.spotsByMode
	ch <- c.commands
	ch <- c.sessionsActive
	ch <- c.sessionsTotal
	ch <- c.sessionsDenied
	ch <- c.writeFailures
	ch <- c.bytesSent
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.tracker.Snapshot()
	for band, n := range snap.Bands {
		ch <- prometheus.MustNewConstMetric(c.spots, prometheus.CounterValue, float64(n), band)
	}
	ch <- prometheus.MustNewConstMetric(c.spotsByMode, prometheus.CounterValue, float64(snap.OwnSpots), "own")
	ch <- prometheus.MustNewConstMetric(c.spotsByMode, prometheus.CounterValue, float64(snap.RandomSpots), "random")
	for verb, n := range snap.Commands {
		ch <- prometheus.MustNewConstMetric(c.commands, prometheus.CounterValue, float64(n), verb)
	}
	ch <- prometheus.MustNewConstMetric(c.sessionsActive, prometheus.GaugeValue, float64(snap.ActiveSessions()))
	ch <- prometheus.MustNewConstMetric(c.sessionsTotal, prometheus.CounterValue, float64(snap.SessionsOpened))
	ch <- prometheus.MustNewConstMetric(c.sessionsDenied, prometheus.CounterValue, float64(snap.SessionsDenied))
	ch <- prometheus.MustNewConstMetric(c.writeFailures, prometheus.CounterValue, float64(snap.WriteFailures))
	ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(snap.BytesSent))
}
