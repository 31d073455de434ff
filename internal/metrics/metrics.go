package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balises_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balises_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WebSocket метрики
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "balises_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balises_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	WebSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "balises_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	// MQTT метрики
	MQTTMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balises_mqtt_messages_published_total",
			Help: "Total number of MQTT messages published",
		},
		[]string{"provider"},
	)

	MQTTPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "balises_mqtt_publish_errors_total",
			Help: "Total number of MQTT publish errors",
		},
	)

	MQTTConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "balises_mqtt_connection_status",
			Help: "MQTT connection status (1 = connected, 0 = disconnected)",
		},
	)

	// Redis метрики
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balises_redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balises_redis_operation_errors_total",
			Help: "Total number of Redis operation errors",
		},
		[]string{"operation"},
	)

	// MySQL метрики
	MySQLOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balises_mysql_operation_duration_seconds",
			Help:    "Duration of MySQL operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	MySQLWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balises_mysql_write_errors_total",
			Help: "Total number of MySQL write errors",
		},
		[]string{"table"},
	)

	// Метрики кэша
	CacheOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balises_cache_operation_duration_seconds",
			Help:    "Duration of cache store/restore operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "kind"}, // operation: store/restore, kind: stations/readings
	)

	CacheMigrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balises_cache_legacy_migrations_total",
			Help: "Total number of cache entries restored from the legacy format",
		},
		[]string{"kind"},
	)

	CacheCorruptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balises_cache_corrupt_total",
			Help: "Total number of cache entries unreadable in any format",
		},
		[]string{"kind"},
	)

	// Метрики обновления провайдеров
	RefreshDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balises_refresh_duration_seconds",
			Help:    "Duration of provider refreshes in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "kind"},
	)

	RefreshErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "balises_refresh_errors_total",
			Help: "Total number of failed provider refreshes",
		},
		[]string{"provider", "kind"},
	)

	ReadingsChanged = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "balises_readings_changed",
			Help:    "Number of readings changed by a refresh",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		},
		[]string{"provider"},
	)

	WorkingSetSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "balises_working_set_size",
			Help: "Number of held entities per provider",
		},
		[]string{"provider", "kind"},
	)

	ProviderCircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "balises_provider_circuit_state",
			Help: "Provider fetch circuit breaker state (0 = closed, 1 = half-open, 2 = open)",
		},
		[]string{"provider"},
	)

	// Общие метрики приложения
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "balises_app_info",
			Help: "Application information",
		},
		[]string{"version"},
	)
)

// SetAppInfo устанавливает информацию о версии приложения
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version).Set(1)
}
