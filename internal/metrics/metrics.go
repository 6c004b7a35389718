package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/david/signal-desk/internal/models"
	"github.com/david/signal-desk/internal/qa"
)

const namespace = "signal_desk"

var (
	ledgerRequestsDesc = prometheus.NewDesc(
		namespace+"_spend_requests_today",
		"Requests made today per provider, read from the spend ledger",
		[]string{"provider"},
		nil,
	)
	ledgerRecordsDesc = prometheus.NewDesc(
		namespace+"_spend_records_today",
		"New records ingested today per provider, read from the spend ledger",
		[]string{"provider"},
		nil,
	)
	ledgerCapDesc = prometheus.NewDesc(
		namespace+"_spend_request_cap",
		"Daily request cap per provider",
		[]string{"provider"},
		nil,
	)
)

// LedgerReader is the slice of the store the spend collector needs.
type LedgerReader interface {
	ListLedger(ctx context.Context, provider, fromDate string) ([]models.SpendLedgerEntry, error)
}

// SpendCollector reads today's ledger rows on each scrape.
type SpendCollector struct {
	store  LedgerReader
	logger *zap.Logger
	now    func() time.Time
}

func NewSpendCollector(store LedgerReader, logger *zap.Logger) *SpendCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpendCollector{store: store, logger: logger, now: time.Now}
}

// Describe sends the metric descriptors to the channel.
func (c *SpendCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- ledgerRequestsDesc
	ch <- ledgerRecordsDesc
	ch <- ledgerCapDesc
}

// Collect emits one gauge triple per provider with a row for today.
func (c *SpendCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	today := c.now().UTC().Format("2006-01-02")
	rows, err := c.store.ListLedger(ctx, "", today)
	if err != nil {
		c.logger.Error("failed to collect spend metrics", zap.Error(err))
		return
	}
	for _, r := range rows {
		if r.Date != today {
			continue
		}
		ch <- prometheus.MustNewConstMetric(ledgerRequestsDesc, prometheus.GaugeValue, float64(r.RequestsMade), r.Provider)
		ch <- prometheus.MustNewConstMetric(ledgerRecordsDesc, prometheus.GaugeValue, float64(r.NewRecordsIngested), r.Provider)
		ch <- prometheus.MustNewConstMetric(ledgerCapDesc, prometheus.GaugeValue, float64(r.RequestCap), r.Provider)
	}
}

// Recorder turns pipeline, spend and QA events into Prometheus series.
// A nil *Recorder ignores every call.
type Recorder struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRun       prometheus.Gauge
	records       *prometheus.CounterVec
	providerSkips *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	spendAlerts   *prometheus.CounterVec
	qaVerdicts    *prometheus.CounterVec
}

// New builds a Recorder and registers its series on reg.
func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_runs_total",
			Help:      "Ingest runs by final status",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_run_duration_seconds",
			Help:      "Wall time of finished ingest runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ingest_last_completed_timestamp_seconds",
			Help:      "Unix time the last ingest run finished",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_records_total",
			Help:      "Records handled per provider and outcome",
		}, []string{"provider", "outcome"}),
		providerSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_provider_skips_total",
			Help:      "Provider batches skipped by budget or configuration",
		}, []string{"provider"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Signals moved by the lifecycle sweep",
		}, []string{"to"}),
		spendAlerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spend_alerts_total",
			Help:      "Spend threshold alerts fired",
		}, []string{"provider"}),
		qaVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "qa_verdicts_total",
			Help:      "QA sample verdicts",
		}, []string{"verdict"}),
	}
	if reg != nil {
		reg.MustRegister(r.runs, r.runDuration, r.lastRun, r.records, r.providerSkips, r.transitions, r.spendAlerts, r.qaVerdicts)
	}
	return r
}

// ObserveRun records a finished ingest run.
func (r *Recorder) ObserveRun(run *models.IngestRun) {
	if r == nil || run == nil {
		return
	}
	r.runs.WithLabelValues(run.Status).Inc()
	if run.CompletedAt != nil {
		r.runDuration.Observe(run.CompletedAt.Sub(run.StartedAt).Seconds())
		r.lastRun.Set(float64(run.CompletedAt.Unix()))
	}
	for _, p := range run.Providers {
		if p.Skipped {
			r.providerSkips.WithLabelValues(p.Provider).Inc()
			continue
		}
		for outcome, n := range map[string]int{
			"fetched":  p.Fetched,
			"inserted": p.Inserted,
			"updated":  p.Updated,
			"rejected": p.Rejected,
			"failed":   p.Failed,
			"deduped":  p.Deduped,
		} {
			if n > 0 {
				r.records.WithLabelValues(p.Provider, outcome).Add(float64(n))
			}
		}
	}
	if run.Stale > 0 {
		r.transitions.WithLabelValues(string(models.StatusStale)).Add(float64(run.Stale))
	}
	if run.Expired > 0 {
		r.transitions.WithLabelValues(string(models.StatusExpired)).Add(float64(run.Expired))
	}
}

// SpendAlert counts a threshold crossing.
func (r *Recorder) SpendAlert(_ context.Context, entry models.SpendLedgerEntry) {
	if r == nil {
		return
	}
	r.spendAlerts.WithLabelValues(entry.Provider).Inc()
}

// ObserveQA records the verdict mix of one sampling pass.
func (r *Recorder) ObserveQA(res *qa.RunResult) {
	if r == nil || res == nil {
		return
	}
	for verdict, n := range res.Verdicts {
		r.qaVerdicts.WithLabelValues(string(verdict)).Add(float64(n))
	}
}
