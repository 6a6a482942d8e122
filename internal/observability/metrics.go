package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	types "github.com/yungbote/rentline-backend/internal/domain/contract"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter
	apiReqGood  *Counter

	aggregateOps       *HistogramVec
	aggregateConflicts *CounterVec
	aggregateRetries   *CounterVec

	sessionsOpened *CounterVec
	codeDispatch   *CounterVec
	verifyOutcome  *CounterVec
	verifyTotal    *Counter
	verifyError    *Counter

	renderDuration *HistogramVec
	renderTotal    *Counter
	renderError    *Counter

	artifactOps   *CounterVec
	artifactBytes *Counter

	complianceFailures *CounterVec

	sessionDepth *GaugeVec
	pgStats      *GaugeVec
	redisUp      *Gauge
	redisPing    *Gauge

	sloCompliance *GaugeVec
	sloBudget     *GaugeVec
	sloBurn       *GaugeVec

	sloLatencyThreshold float64
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		latencyThreshold := 0.5
		if v := strings.TrimSpace(os.Getenv("SLO_API_LATENCY_THRESHOLD_SECONDS")); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
				latencyThreshold = f
			}
		}
		instance = &Metrics{
			apiRequests: NewCounterVec("rl_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec(
				"rl_api_request_duration_seconds",
				"API request latency in seconds by method/route/status.",
				[]string{"method", "route", "status"},
				[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			),
			apiInflight: NewGauge("rl_api_inflight_requests", "In-flight API requests."),
			apiReqTotal: NewCounter("rl_api_requests_total_all", "Total API requests (all)."),
			apiReqError: NewCounter("rl_api_requests_error_total", "Total API requests with 5xx status."),
			apiReqGood:  NewCounter("rl_api_requests_good_latency_total", "Total API requests under SLO latency threshold."),
			aggregateOps: NewHistogramVec(
				"rl_aggregate_operation_duration_seconds",
				"Aggregate write-operation duration in seconds by operation/status.",
				[]string{"operation", "status"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			),
			aggregateConflicts: NewCounterVec("rl_aggregate_conflict_total", "Aggregate write conflicts by operation.", []string{"operation"}),
			aggregateRetries:   NewCounterVec("rl_aggregate_retry_total", "Retryable aggregate write failures by operation.", []string{"operation"}),
			sessionsOpened:     NewCounterVec("rl_signing_sessions_opened_total", "Signing sessions opened by channel.", []string{"channel"}),
			codeDispatch:       NewCounterVec("rl_signing_code_dispatch_total", "Code dispatch attempts by channel/status.", []string{"channel", "status"}),
			verifyOutcome:      NewCounterVec("rl_signing_verify_total", "Code verification attempts by outcome.", []string{"outcome"}),
			verifyTotal:        NewCounter("rl_signing_verify_total_all", "Total code verification attempts."),
			verifyError:        NewCounter("rl_signing_verify_error_total", "Code verification attempts ending in an internal error."),
			renderDuration: NewHistogramVec(
				"rl_render_duration_seconds",
				"Document render duration in seconds by status.",
				[]string{"status"},
				[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
			),
			renderTotal:        NewCounter("rl_render_total", "Total document renders."),
			renderError:        NewCounter("rl_render_error_total", "Document renders ending in failure or timeout."),
			artifactOps:        NewCounterVec("rl_artifact_operations_total", "Artifact store operations by op/status.", []string{"op", "status"}),
			artifactBytes:      NewCounter("rl_artifact_stored_bytes_total", "Total artifact bytes written to storage."),
			complianceFailures: NewCounterVec("rl_compliance_failures_total", "Compliance validation failures by rule code.", []string{"code"}),
			sessionDepth:       NewGaugeVec("rl_signing_session_depth", "Signing sessions by state.", []string{"state"}),
			pgStats:            NewGaugeVec("rl_postgres_stats", "Postgres connection stats.", []string{"metric"}),
			redisUp:            NewGauge("rl_redis_up", "Redis connectivity (1=up, 0=down)."),
			redisPing:          NewGauge("rl_redis_ping_seconds", "Redis ping latency in seconds."),
			sloCompliance:      NewGaugeVec("rl_slo_compliance", "SLO compliance (SLI) over window.", []string{"slo", "window"}),
			sloBudget:          NewGaugeVec("rl_slo_error_budget_remaining", "Error budget remaining (0-1).", []string{"slo", "window"}),
			sloBurn:            NewGaugeVec("rl_slo_burn_rate", "Error budget burn rate.", []string{"slo", "window"}),

			sloLatencyThreshold: latencyThreshold,
		}
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError, m.apiReqGood,
		m.aggregateOps, m.aggregateConflicts, m.aggregateRetries,
		m.sessionsOpened, m.codeDispatch, m.verifyOutcome, m.verifyTotal, m.verifyError,
		m.renderDuration, m.renderTotal, m.renderError,
		m.artifactOps, m.artifactBytes,
		m.complianceFailures,
		m.sessionDepth, m.pgStats, m.redisUp, m.redisPing,
		m.sloCompliance, m.sloBudget, m.sloBurn,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// ---- API ----

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
	if dur.Seconds() <= m.sloLatencyThreshold {
		m.apiReqGood.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ---- aggregates ----

func (m *Metrics) ObserveAggregateOperation(operation, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.aggregateOps.Observe(dur.Seconds(), operation, status)
}

func (m *Metrics) IncAggregateConflict(operation string) {
	if m == nil {
		return
	}
	m.aggregateConflicts.Inc(operation)
}

func (m *Metrics) IncAggregateRetry(operation string) {
	if m == nil {
		return
	}
	m.aggregateRetries.Inc(operation)
}

// ---- signing ----

func (m *Metrics) IncSessionOpened(channel string) {
	if m == nil {
		return
	}
	m.sessionsOpened.Inc(channel)
}

func (m *Metrics) IncCodeDispatch(channel, status string) {
	if m == nil {
		return
	}
	m.codeDispatch.Inc(channel, status)
}

// IncVerifyOutcome records one verification attempt. Outcomes: signed,
// invalid_code, expired, consumed, max_attempts, error.
func (m *Metrics) IncVerifyOutcome(outcome string) {
	if m == nil {
		return
	}
	m.verifyOutcome.Inc(outcome)
	m.verifyTotal.Inc()
	if outcome == "error" {
		m.verifyError.Inc()
	}
}

// ---- rendering ----

func (m *Metrics) ObserveRender(status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.renderDuration.Observe(dur.Seconds(), status)
	m.renderTotal.Inc()
	if isFailureStatus(status) {
		m.renderError.Inc()
	}
}

// ---- artifacts ----

func (m *Metrics) IncArtifactOp(op, status string) {
	if m == nil {
		return
	}
	m.artifactOps.Inc(op, status)
}

func (m *Metrics) AddArtifactBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.artifactBytes.Add(float64(n))
}

// ---- compliance ----

func (m *Metrics) IncComplianceFailure(code string) {
	if m == nil {
		return
	}
	m.complianceFailures.Inc(code)
}

// StartRuntimeCollectors samples DB pool stats, redis health, and signing
// session depth on the scrape interval.
func (m *Metrics) StartRuntimeCollectors(ctx context.Context, log *logger.Logger, db *gorm.DB, rdb *redis.Client) {
	if m == nil {
		return
	}
	interval := scrapeInterval()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if db != nil {
					if sqlDB, err := db.DB(); err == nil {
						stats := sqlDB.Stats()
						m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
						m.pgStats.Set(float64(stats.InUse), "in_use")
						m.pgStats.Set(float64(stats.Idle), "idle")
						m.pgStats.Set(float64(stats.WaitCount), "wait_count")
						m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_seconds")
					}
					m.collectSessionDepth(ctx, log, db)
				}
				if rdb != nil {
					start := time.Now()
					if err := rdb.Ping(ctx).Err(); err != nil {
						m.redisUp.Set(0)
					} else {
						m.redisUp.Set(1)
						m.redisPing.Set(time.Since(start).Seconds())
					}
				}
			}
		}
	}()
}

func (m *Metrics) collectSessionDepth(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	var rows []struct {
		State string
		Count int64
	}
	if err := db.WithContext(ctx).
		Model(&types.SigningSession{}).
		Select("state, count(*) as count").
		Group("state").
		Scan(&rows).Error; err != nil {
		if log != nil {
			log.Warn("metrics: session depth query failed", "error", err)
		}
		return
	}
	for _, row := range rows {
		state := strings.TrimSpace(row.State)
		if state == "" {
			state = "unknown"
		}
		m.sessionDepth.Set(float64(row.Count), state)
	}
}
