package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tickerwatch/ingester/internal/api"
	"github.com/tickerwatch/ingester/internal/cache"
	"github.com/tickerwatch/ingester/internal/connection"
	"github.com/tickerwatch/ingester/internal/poller"
	"github.com/tickerwatch/ingester/internal/router"
	"github.com/tickerwatch/ingester/internal/writer"
)

const namespace = "ingester"

// Sources supplies the stats read on each scrape. Nil entries are skipped.
type Sources struct {
	ConsumerState func() connection.State
	Consumer      func() connection.Stats
	Router        func() router.Stats
	Cache         func() cache.Stats
	REST          func() api.Stats
	Writers       map[string]func() writer.WriterMetrics // keyed by table
	Pollers       map[string]func() poller.Stats         // keyed by poller name
}

// Collector implements prometheus.Collector over Sources.
type Collector struct {
	src Sources

	streamState      *prometheus.Desc
	streamFrames     *prometheus.Desc
	streamDropped    *prometheus.Desc
	streamReconnects *prometheus.Desc
	streamDialErrors *prometheus.Desc

	routerFrames       *prometheus.Desc
	routerDecodeErrors *prometheus.Desc
	routerValid        *prometheus.Desc
	routerRejected     *prometheus.Desc

	cacheBatches *prometheus.Desc
	cacheRecords *prometheus.Desc

	restRequests *prometheus.Desc
	restFailures *prometheus.Desc
	restRetries  *prometheus.Desc
	restWeight   *prometheus.Desc

	historyRows   *prometheus.Desc
	historyErrors *prometheus.Desc

	pollerCycles      *prometheus.Desc
	pollerPolls       *prometheus.Desc
	pollerFetchErrors *prometheus.Desc
	pollerStored      *prometheus.Desc
}

// NewCollector creates a Collector.
func NewCollector(src Sources) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &Collector{
		src: src,

		streamState:      desc("stream", "state", "1 for the consumer's current connection state.", "state"),
		streamFrames:     desc("stream", "frames_total", "Frames received from the live feed."),
		streamDropped:    desc("stream", "frames_dropped_total", "Frames dropped on a full client buffer."),
		streamReconnects: desc("stream", "reconnects_total", "Reconnects after an established connection failed."),
		streamDialErrors: desc("stream", "dial_errors_total", "Failed connection attempts."),

		routerFrames:       desc("router", "frames_total", "Frames processed by the router."),
		routerDecodeErrors: desc("router", "decode_errors_total", "Frames dropped as undecodable."),
		routerValid:        desc("router", "records_valid_total", "Records that passed validation."),
		routerRejected:     desc("router", "records_rejected_total", "Records rejected by validation.", "kind"),

		cacheBatches: desc("cache", "batches_total", "Cache batch outcomes.", "result"),
		cacheRecords: desc("cache", "records_total", "Records written to the cache."),

		restRequests: desc("rest", "requests_total", "REST requests sent."),
		restFailures: desc("rest", "failures_total", "REST requests that failed."),
		restRetries:  desc("rest", "retries_total", "REST requests repeated after a failure."),
		restWeight:   desc("rest", "used_weight", "Request weight used in the current minute, as reported by the exchange."),

		historyRows:   desc("history", "rows_total", "History rows by outcome.", "table", "result"),
		historyErrors: desc("history", "errors_total", "History database errors.", "table"),

		pollerCycles:      desc("poller", "cycles_total", "Rollover detection cycles started.", "poller"),
		pollerPolls:       desc("poller", "polls_total", "Snapshot fetch attempts.", "poller"),
		pollerFetchErrors: desc("poller", "fetch_errors_total", "Failed snapshot fetches.", "poller"),
		pollerStored:      desc("poller", "snapshots_stored_total", "Snapshots persisted.", "poller"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.streamState, c.streamFrames, c.streamDropped, c.streamReconnects, c.streamDialErrors,
		c.routerFrames, c.routerDecodeErrors, c.routerValid, c.routerRejected,
		c.cacheBatches, c.cacheRecords,
		c.restRequests, c.restFailures, c.restRetries, c.restWeight,
		c.historyRows, c.historyErrors,
		c.pollerCycles, c.pollerPolls, c.pollerFetchErrors, c.pollerStored,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	if c.src.ConsumerState != nil {
		current := c.src.ConsumerState()
		for _, s := range []connection.State{connection.StateDisconnected, connection.StateConnecting, connection.StateStreaming} {
			v := 0.0
			if s == current {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.streamState, prometheus.GaugeValue, v, s.String())
		}
	}

	if c.src.Consumer != nil {
		s := c.src.Consumer()
		counter(c.streamFrames, s.Frames)
		counter(c.streamDropped, s.Dropped)
		counter(c.streamReconnects, s.Reconnects)
		counter(c.streamDialErrors, s.DialErrors)
	}

	if c.src.Router != nil {
		s := c.src.Router()
		counter(c.routerFrames, s.FramesReceived)
		counter(c.routerDecodeErrors, s.DecodeErrors)
		counter(c.routerValid, s.RecordsValid)
		for kind, n := range s.Rejected {
			counter(c.routerRejected, n, kind)
		}
	}

	if c.src.Cache != nil {
		s := c.src.Cache()
		counter(c.cacheBatches, s.Batches, "applied")
		counter(c.cacheBatches, s.Errors, "error")
		counter(c.cacheBatches, s.Skipped, "skipped")
		counter(c.cacheRecords, s.Records)
	}

	if c.src.REST != nil {
		s := c.src.REST()
		counter(c.restRequests, s.Requests)
		counter(c.restFailures, s.Failures)
		counter(c.restRetries, s.Retries)
		ch <- prometheus.MustNewConstMetric(c.restWeight, prometheus.GaugeValue, float64(s.UsedWeight))
	}

	for table, stats := range c.src.Writers {
		s := stats()
		counter(c.historyRows, s.Inserts, table, "inserted")
		counter(c.historyRows, s.Conflicts, table, "skipped")
		counter(c.historyErrors, s.Errors, table)
	}

	for name, stats := range c.src.Pollers {
		s := stats()
		counter(c.pollerCycles, s.Cycles, name)
		counter(c.pollerPolls, s.Polls, name)
		counter(c.pollerFetchErrors, s.FetchErrors, name)
		counter(c.pollerStored, s.Stored, name)
	}
}
