package observability

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"vacalyser/internal/config"
)

func newTestManager(t *testing.T, fullConfig *config.Config) (*ObservabilityManager, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName:    "vacalyser-test",
		ServiceVersion: "test",
		Enabled:        true,
		SampleRate:     1.0,
	}, fullConfig, WithReader(reader))
	require.NoError(t, err)
	t.Cleanup(func() { _ = om.Shutdown(context.Background()) })
	return om, reader
}

// sums collects the value of every int64 sum by metric name
func sums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestTrackAIOperationWithTokens(t *testing.T) {
	om, reader := newTestManager(t, nil)
	metrics := om.GetMetrics()

	err := metrics.TrackAIOperationWithTokens(context.Background(), "job_ad", func(ctx context.Context) *AIOperationResult {
		return &AIOperationResult{
			TokenUsage:     &TokenUsage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
			MalformedLines: 2,
		}
	})
	require.NoError(t, err)

	failure := stderrors.New("boom")
	err = metrics.TrackAIOperationWithTokens(context.Background(), "job_ad", func(ctx context.Context) *AIOperationResult {
		return &AIOperationResult{Error: failure, Empty: true}
	})
	assert.ErrorIs(t, err, failure)

	got := sums(t, reader)
	assert.Equal(t, int64(2), got["vacalyser_ai_requests_total"])
	assert.Equal(t, int64(1), got["vacalyser_ai_errors_total"])
	assert.Equal(t, int64(2), got["vacalyser_ai_malformed_lines_total"])
	assert.Equal(t, int64(1), got["vacalyser_ai_empty_results_total"])
}

func TestRecordBusinessMetric(t *testing.T) {
	om, reader := newTestManager(t, nil)
	metrics := om.GetMetrics()
	ctx := context.Background()

	metrics.RecordBusinessMetric(ctx, MetricWizardAdvanced, true)
	metrics.RecordBusinessMetric(ctx, MetricWizardRetreated, true)
	metrics.RecordBusinessMetric(ctx, MetricArtifactGenerated, true)
	metrics.RecordBusinessMetric(ctx, MetricSessionCreated, true)
	metrics.RecordBusinessMetric(ctx, MetricSessionCreated, true)
	metrics.RecordBusinessMetric(ctx, MetricSessionDeleted, true)
	metrics.RecordBusinessMetric(ctx, MetricRateLimitHit, false)
	metrics.RecordBusinessMetric(ctx, MetricAuthFailure, false)
	metrics.RecordBusinessMetric(ctx, "unknown", true)

	got := sums(t, reader)
	assert.Equal(t, int64(2), got["vacalyser_wizard_transitions_total"])
	assert.Equal(t, int64(1), got["vacalyser_artifacts_generated_total"])
	assert.Equal(t, int64(1), got["vacalyser_active_sessions"])
	assert.Equal(t, int64(1), got["vacalyser_rate_limit_hits_total"])
	assert.Equal(t, int64(1), got["vacalyser_auth_failures_total"])
}

func TestCustomMetricsSwitches(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Observability.CustomMetrics.BusinessMetrics.TrackTransitions = false
	cfg.Observability.CustomMetrics.AIOperations.Enabled = false
	cfg.Observability.CustomMetrics.Infrastructure.TrackSessions = false

	om, reader := newTestManager(t, cfg)
	metrics := om.GetMetrics()
	ctx := context.Background()

	metrics.RecordBusinessMetric(ctx, MetricWizardAdvanced, true)
	metrics.RecordBusinessMetric(ctx, MetricArtifactGenerated, true)
	metrics.RecordBusinessMetric(ctx, MetricSessionCreated, true)
	metrics.RecordSessionsPurged(ctx, 3)
	_ = metrics.TrackAIOperationWithTokens(ctx, "suggest", func(context.Context) *AIOperationResult { return nil })

	got := sums(t, reader)
	assert.Zero(t, got["vacalyser_wizard_transitions_total"])
	assert.Zero(t, got["vacalyser_ai_requests_total"])
	assert.Zero(t, got["vacalyser_sessions_purged_total"])
	assert.Equal(t, int64(1), got["vacalyser_artifacts_generated_total"])
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{Enabled: false}, nil)
	require.NoError(t, err)

	metrics := om.GetMetrics()
	called := false
	err = metrics.TrackAIOperationWithTokens(context.Background(), "job_ad", func(context.Context) *AIOperationResult {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	metrics.RecordBusinessMetric(context.Background(), MetricRateLimitHit, true)
	metrics.RecordSessionsPurged(context.Background(), 2)
	assert.Nil(t, om.PrometheusHandler())
	assert.False(t, om.Enabled())

	h := om.HTTPMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NoError(t, om.Shutdown(context.Background()))

	var nilManager *ObservabilityManager
	assert.NotNil(t, nilManager.GetMetrics())
}

func TestPrometheusHandlerWithoutPort(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName: "vacalyser-test",
		Enabled:     true,
		SampleRate:  1.0,
		Prometheus:  PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
	}, nil)
	require.NoError(t, err)
	defer func() { _ = om.Shutdown(context.Background()) }()

	om.GetMetrics().RecordBusinessMetric(context.Background(), MetricArtifactGenerated, true)

	handler := om.PrometheusHandler()
	require.NotNil(t, handler)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vacalyser_artifacts_generated_total")
}

func TestGetObservabilityConfig(t *testing.T) {
	fallback := GetObservabilityConfig(nil, "1.2.3")
	assert.Equal(t, "vacalyser", fallback.ServiceName)
	assert.Equal(t, "1.2.3", fallback.ServiceVersion)

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Observability.ServiceVersion = ""
	got := GetObservabilityConfig(cfg, "dev")
	assert.Equal(t, "dev", got.ServiceVersion)
	assert.Equal(t, cfg.Observability.Prometheus.Endpoint, got.Prometheus.Endpoint)
}
