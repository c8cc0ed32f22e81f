package metrics

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refdash_api_requests_total",
		Help: "Admin API requests by endpoint and HTTP status",
	}, []string{"endpoint", "status"})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refdash_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	APIDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refdash_api_request_duration_seconds",
		Help:    "Admin API request duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
	PageLoads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refdash_directory_page_loads_total",
		Help: "Primary directory page loads by outcome",
	}, []string{"outcome"})
	ReferralFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refdash_referral_fetches_total",
		Help: "Referral page fetches by outcome",
	}, []string{"outcome"})
	ScanPages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "refdash_scan_pages_fetched_total",
		Help: "Directory pages fetched by search scans",
	})
	Scans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refdash_scans_total",
		Help: "Search scans by outcome",
	}, []string{"outcome"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refdash_command_runs_total",
		Help: "CLI command runs",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "refdash_command_errors_total",
		Help: "CLI command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(APIRequests, APIRetries, APIDuration, PageLoads, ReferralFetches, ScanPages, Scans, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveAPIRequest records one finished request.
func ObserveAPIRequest(endpoint string, status int, start time.Time) {
	APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	APIDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

// IncPageLoad counts a primary page load outcome: ok, error or stale.
func IncPageLoad(outcome string) { PageLoads.WithLabelValues(outcome).Inc() }

// IncReferralFetch counts a referral fetch outcome: ok, error or stale.
func IncReferralFetch(outcome string) { ReferralFetches.WithLabelValues(outcome).Inc() }

// IncScanPage counts one page fetched by a scan.
func IncScanPage() { ScanPages.Inc() }

// IncScan counts a finished scan: match, empty, cancelled or error.
func IncScan(outcome string) { Scans.WithLabelValues(outcome).Inc() }

// IncCommandRun counts a CLI command run.
func IncCommandRun(cmd string) { CommandRuns.WithLabelValues(cmd).Inc() }

// IncCommandError counts a failed CLI command.
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
