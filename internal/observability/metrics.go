package observability

import (
	"context"
	"fmt"
	"time"

	"vacalyser/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Business metric types accepted by RecordBusinessMetric
const (
	MetricWizardAdvanced     = "wizard_advanced"
	MetricWizardRetreated    = "wizard_retreated"
	MetricWizardReset        = "wizard_reset"
	MetricArtifactGenerated  = "artifact_generated"
	MetricSuggestionsCreated = "suggestions_created"
	MetricSessionCreated     = "session_created"
	MetricSessionDeleted     = "session_deleted"
	MetricSessionsPurged     = "sessions_purged"
	MetricRateLimitHit       = "rate_limit_hit"
	MetricAuthFailure        = "auth_failure"
	MetricCertReload         = "cert_reload"
)

// Metrics holds all custom metrics for Vacalyser.
// The zero value is usable and records nothing.
type Metrics struct {
	// AI operation metrics
	AIProcessingTime metric.Float64Histogram
	AIRequestCount   metric.Int64Counter
	AIErrorCount     metric.Int64Counter
	AITokenUsage     metric.Int64Histogram
	MalformedLines   metric.Int64Counter
	EmptyResults     metric.Int64Counter

	// Business metrics
	WizardTransitions  metric.Int64Counter
	ArtifactsGenerated metric.Int64Counter
	SuggestionsCreated metric.Int64Counter

	// Infrastructure metrics
	ActiveSessions  metric.Int64UpDownCounter
	SessionsPurged  metric.Int64Counter
	RateLimitHits   metric.Int64Counter
	AuthFailures    metric.Int64Counter
	CertReloadCount metric.Int64Counter

	settings *config.CustomMetricsConfig
}

// AIOperationResult holds the result of an AI operation including token usage
type AIOperationResult struct {
	Error          error
	TokenUsage     *TokenUsage
	MalformedLines int
	Empty          bool
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

func newMetrics(meter metric.Meter, fullConfig *config.Config) (*Metrics, error) {
	m := &Metrics{}
	if fullConfig != nil {
		m.settings = &fullConfig.Observability.CustomMetrics
	}

	if err := m.createAIMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createBusinessMetrics(meter); err != nil {
		return nil, err
	}
	if err := m.createInfrastructureMetrics(meter); err != nil {
		return nil, err
	}
	return m, nil
}

// createAIMetrics creates AI-related metrics
func (m *Metrics) createAIMetrics(meter metric.Meter) error {
	var err error

	m.AIProcessingTime, err = meter.Float64Histogram(
		"vacalyser_ai_processing_duration_seconds",
		metric.WithDescription("Time spent processing AI requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI processing time metric: %w", err)
	}

	m.AIRequestCount, err = meter.Int64Counter(
		"vacalyser_ai_requests_total",
		metric.WithDescription("Total number of AI requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	m.AIErrorCount, err = meter.Int64Counter(
		"vacalyser_ai_errors_total",
		metric.WithDescription("Total number of AI request errors"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	m.AITokenUsage, err = meter.Int64Histogram(
		"vacalyser_ai_token_usage_total",
		metric.WithDescription("Token usage for AI requests (input, output, total)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	m.MalformedLines, err = meter.Int64Counter(
		"vacalyser_ai_malformed_lines_total",
		metric.WithDescription("Stream lines skipped because they were not valid JSON"),
	)
	if err != nil {
		return fmt.Errorf("failed to create malformed lines metric: %w", err)
	}

	m.EmptyResults, err = meter.Int64Counter(
		"vacalyser_ai_empty_results_total",
		metric.WithDescription("Generations that returned no content"),
	)
	if err != nil {
		return fmt.Errorf("failed to create empty results metric: %w", err)
	}

	return nil
}

// createBusinessMetrics creates wizard and artifact metrics
func (m *Metrics) createBusinessMetrics(meter metric.Meter) error {
	var err error

	m.WizardTransitions, err = meter.Int64Counter(
		"vacalyser_wizard_transitions_total",
		metric.WithDescription("Wizard transitions by direction"),
	)
	if err != nil {
		return fmt.Errorf("failed to create wizard transitions metric: %w", err)
	}

	m.ArtifactsGenerated, err = meter.Int64Counter(
		"vacalyser_artifacts_generated_total",
		metric.WithDescription("Total number of artifacts generated"),
	)
	if err != nil {
		return fmt.Errorf("failed to create artifacts generated metric: %w", err)
	}

	m.SuggestionsCreated, err = meter.Int64Counter(
		"vacalyser_suggestions_total",
		metric.WithDescription("Total number of suggestion lists produced"),
	)
	if err != nil {
		return fmt.Errorf("failed to create suggestions metric: %w", err)
	}

	return nil
}

// createInfrastructureMetrics creates session, rate limit, auth and certificate metrics
func (m *Metrics) createInfrastructureMetrics(meter metric.Meter) error {
	var err error

	m.ActiveSessions, err = meter.Int64UpDownCounter(
		"vacalyser_active_sessions",
		metric.WithDescription("Wizard sessions currently stored"),
	)
	if err != nil {
		return fmt.Errorf("failed to create active sessions metric: %w", err)
	}

	m.SessionsPurged, err = meter.Int64Counter(
		"vacalyser_sessions_purged_total",
		metric.WithDescription("Sessions removed by the expiry sweeper"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions purged metric: %w", err)
	}

	m.RateLimitHits, err = meter.Int64Counter(
		"vacalyser_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	m.AuthFailures, err = meter.Int64Counter(
		"vacalyser_auth_failures_total",
		metric.WithDescription("Requests rejected by authentication"),
	)
	if err != nil {
		return fmt.Errorf("failed to create auth failures metric: %w", err)
	}

	m.CertReloadCount, err = meter.Int64Counter(
		"vacalyser_cert_reloads_total",
		metric.WithDescription("Total number of certificate reloads"),
	)
	if err != nil {
		return fmt.Errorf("failed to create certificate reload count metric: %w", err)
	}

	return nil
}

// TrackAIOperationWithTokens instruments an AI operation with tracing, metrics, and token usage
func (m *Metrics) TrackAIOperationWithTokens(ctx context.Context, operation string, fn func(context.Context) *AIOperationResult) error {
	tracer := otel.Tracer("vacalyser.ai")
	ctx, span := tracer.Start(ctx, "ai."+operation)
	defer span.End()

	start := time.Now()
	result := fn(ctx)
	duration := time.Since(start).Seconds()

	var err error
	if result != nil {
		err = result.Error
	}

	if m.AIProcessingTime != nil && m.aiMetricsEnabled() {
		m.recordAIMetrics(ctx, operation, duration, result, span)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (m *Metrics) aiMetricsEnabled() bool {
	return m.settings == nil || m.settings.AIOperations.Enabled
}

// recordAIMetrics records all AI-related metrics
func (m *Metrics) recordAIMetrics(ctx context.Context, operation string, duration float64, result *AIOperationResult, span oteltrace.Span) {
	var err error
	if result != nil {
		err = result.Error
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", err == nil),
	}
	opts := metric.WithAttributes(attrs...)

	if m.settings == nil || m.settings.AIOperations.TrackDuration {
		m.AIProcessingTime.Record(ctx, duration, opts)
	}
	m.AIRequestCount.Add(ctx, 1, opts)
	if err != nil {
		m.AIErrorCount.Add(ctx, 1, opts)
	}

	if result != nil {
		if result.MalformedLines > 0 {
			m.MalformedLines.Add(ctx, int64(result.MalformedLines), metric.WithAttributes(attrs[0]))
		}
		if result.Empty {
			m.EmptyResults.Add(ctx, 1, metric.WithAttributes(attrs[0]))
		}
		m.recordTokenUsage(ctx, result.TokenUsage, attrs[0], span)
	}

	span.SetAttributes(attrs...)
}

// recordTokenUsage records token usage metrics and span attributes
func (m *Metrics) recordTokenUsage(ctx context.Context, usage *TokenUsage, op attribute.KeyValue, span oteltrace.Span) {
	if usage == nil {
		return
	}

	if m.settings == nil || m.settings.AIOperations.TrackTokenUsage {
		for _, tt := range []struct {
			tokenType string
			value     int64
		}{
			{"input", usage.InputTokens},
			{"output", usage.OutputTokens},
			{"total", usage.TotalTokens},
		} {
			m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(op, attribute.String("token_type", tt.tokenType)))
		}
	}

	// Always on the span for debugging
	span.SetAttributes(
		attribute.Int64("ai.tokens.input", usage.InputTokens),
		attribute.Int64("ai.tokens.output", usage.OutputTokens),
		attribute.Int64("ai.tokens.total", usage.TotalTokens),
	)
}

// RecordBusinessMetric records wizard, artifact and infrastructure events
func (m *Metrics) RecordBusinessMetric(ctx context.Context, metricType string, success bool, attributes ...attribute.KeyValue) {
	attrs := append([]attribute.KeyValue{
		attribute.Bool("success", success),
	}, attributes...)
	opts := metric.WithAttributes(attrs...)

	switch metricType {
	case MetricWizardAdvanced, MetricWizardRetreated, MetricWizardReset:
		if m.trackBusiness(func(b config.BusinessMetricsConfig) bool { return b.TrackTransitions }) {
			direction := attribute.String("direction", metricType[len("wizard_"):])
			add(ctx, m.WizardTransitions, 1, metric.WithAttributes(append(attrs, direction)...))
		}
	case MetricArtifactGenerated:
		if m.trackBusiness(func(b config.BusinessMetricsConfig) bool { return b.TrackArtifacts }) {
			add(ctx, m.ArtifactsGenerated, 1, opts)
		}
	case MetricSuggestionsCreated:
		if m.trackBusiness(func(b config.BusinessMetricsConfig) bool { return b.TrackArtifacts }) {
			add(ctx, m.SuggestionsCreated, 1, opts)
		}
	case MetricSessionCreated, MetricSessionDeleted:
		if m.trackInfra(func(i config.InfrastructureMetricsConfig) bool { return i.TrackSessions }) && m.ActiveSessions != nil {
			delta := int64(1)
			if metricType == MetricSessionDeleted {
				delta = -1
			}
			m.ActiveSessions.Add(ctx, delta)
		}
	case MetricRateLimitHit:
		if m.trackInfra(func(i config.InfrastructureMetricsConfig) bool { return i.TrackRateLimits }) {
			add(ctx, m.RateLimitHits, 1, opts)
		}
	case MetricAuthFailure:
		if m.trackInfra(func(config.InfrastructureMetricsConfig) bool { return true }) {
			add(ctx, m.AuthFailures, 1, opts)
		}
	case MetricCertReload:
		if m.trackInfra(func(config.InfrastructureMetricsConfig) bool { return true }) {
			add(ctx, m.CertReloadCount, 1, opts)
		}
	}
}

// RecordSessionsPurged lowers the active session gauge by n and counts the purge
func (m *Metrics) RecordSessionsPurged(ctx context.Context, n int) {
	if n <= 0 || !m.trackInfra(func(i config.InfrastructureMetricsConfig) bool { return i.TrackSessions }) {
		return
	}
	if m.ActiveSessions != nil {
		m.ActiveSessions.Add(ctx, -int64(n))
	}
	add(ctx, m.SessionsPurged, int64(n))
}

func (m *Metrics) trackBusiness(flag func(config.BusinessMetricsConfig) bool) bool {
	return m.settings == nil || (m.settings.BusinessMetrics.Enabled && flag(m.settings.BusinessMetrics))
}

func (m *Metrics) trackInfra(flag func(config.InfrastructureMetricsConfig) bool) bool {
	return m.settings == nil || (m.settings.Infrastructure.Enabled && flag(m.settings.Infrastructure))
}

func add(ctx context.Context, c metric.Int64Counter, n int64, opts ...metric.AddOption) {
	if c != nil {
		c.Add(ctx, n, opts...)
	}
}
