package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	CampaignRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_campaign_runs_total",
			Help: "Total number of campaign runs executed by dispatch service (count)",
		},
		[]string{"status"},
	)

	SendChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sendlog_checks_total",
			Help: "Total number of duplicate-send checks (count)",
		},
		[]string{"status"},
	)

	DripMessagesQueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_messages_queued_total",
			Help: "Total number of drip messages queued for delivery (count)",
		},
		[]string{"campaign_id"},
	)

	CampaignRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_campaign_run_duration_ms",
			Help:    "Duration of a single campaign run in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	SendCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sendlog_check_duration_ms",
			Help:    "Duration of duplicate-send checks in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"status"},
	)

	ActiveCampaigns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_active_campaigns",
			Help: "Number of enabled campaigns loaded by dispatch service (count)",
		},
	)

	SendLogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sendlog_cache_size",
			Help: "Approximate number of sent markers in the send-log cache (count)",
		},
	)

	RuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_rule_evaluations_total",
			Help: "Total number of campaign rule evaluations (count)",
		},
		[]string{"campaign_id", "result"},
	)

	ValidationRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "management_validation_runs_total",
			Help: "Total number of campaign dry-run validations (count)",
		},
		[]string{"result"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

func RegisterDispatchMetrics() {
	prometheus.MustRegister(CampaignRunsTotal)
	prometheus.MustRegister(CampaignRunDuration)
	prometheus.MustRegister(ActiveCampaigns)
	prometheus.MustRegister(RuleEvaluationsTotal)
	prometheus.MustRegister(DripMessagesQueuedTotal)
	registerFallbackUsageTotalOnce()
}

func RegisterSendLogMetrics() {
	prometheus.MustRegister(SendChecksTotal)
	prometheus.MustRegister(SendCheckDuration)
	prometheus.MustRegister(SendLogSize)
	registerFallbackUsageTotalOnce()
}

func registerFallbackUsageTotalOnce() {
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterManagementMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(ValidationRunsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
	prometheus.MustRegister(DatabaseQueryDuration)
}

func ObserveCampaignRunDuration(duration time.Duration, status string) {
	CampaignRunDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveSendCheckDuration(duration time.Duration, status string) {
	SendCheckDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func SetActiveCampaigns(count int) {
	ActiveCampaigns.Set(float64(count))
}

func SetSendLogSize(size int) {
	SendLogSize.Set(float64(size))
}

func IncRuleEvaluation(campaignID, result string) {
	RuleEvaluationsTotal.WithLabelValues(campaignID, result).Inc()
}

func IncDripMessageQueued(campaignID string) {
	DripMessagesQueuedTotal.WithLabelValues(campaignID).Inc()
}

func IncValidationRun(result string) {
	ValidationRunsTotal.WithLabelValues(result).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
