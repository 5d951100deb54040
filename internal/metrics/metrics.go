package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 记录创建数
	recordsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "records_created_total",
			Help: "Total number of approvable records created",
		},
		[]string{"record_type"},
	)

	// 工作流转换数
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of workflow transition attempts",
		},
		[]string{"record_type", "action", "result"},
	)

	// 批量操作数
	batchOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_operations_total",
			Help: "Total number of batch transition items",
		},
		[]string{"action", "result"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// 记录状态分布
	recordsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "records_by_status",
			Help: "Number of approvable records by status",
		},
		[]string{"status"},
	)
)

var once sync.Once

func init() {
	Register()
}

// Register 注册所有指标,重复调用安全
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			apiRequestsTotal,
			apiRequestDuration,
			recordsCreatedTotal,
			transitionsTotal,
			batchOperationsTotal,
			databaseConnectionsActive,
			databaseConnectionsIdle,
			recordsByStatus,
		)
	})
}

// RecordAPIRequest 记录一次 API 请求
func RecordAPIRequest(method, path string, status int, durationSeconds float64) {
	apiRequestsTotal.WithLabelValues(method, path, fmt.Sprintf("%d", status)).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}

// RecordCreated 记录一次记录创建
func RecordCreated(recordType string) {
	recordsCreatedTotal.WithLabelValues(recordType).Inc()
}

// RecordTransition 记录一次转换尝试
func RecordTransition(recordType, action, result string) {
	if recordType == "" {
		recordType = "unknown"
	}
	transitionsTotal.WithLabelValues(recordType, action, result).Inc()
}

// RecordBatch 记录一次批量操作的成功与失败条数
func RecordBatch(action string, succeeded, failed int) {
	batchOperationsTotal.WithLabelValues(action, "success").Add(float64(succeeded))
	batchOperationsTotal.WithLabelValues(action, "failure").Add(float64(failed))
}

// UpdateDatabaseStats 更新数据库连接池指标
func UpdateDatabaseStats(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.InUse))
	databaseConnectionsIdle.Set(float64(stats.Idle))
}

// SetRecordsByStatus 更新状态分布指标
func SetRecordsByStatus(status string, count float64) {
	recordsByStatus.WithLabelValues(status).Set(count)
}

// Handler 返回 /metrics 的 HTTP 处理器
func Handler() http.Handler {
	return promhttp.Handler()
}
