package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationTotalRecords общее количество записей фида для валидации
	ValidationTotalRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "balises_validation_total_records",
		Help: "Total number of feed records processed for validation",
	}, []string{"provider", "kind"})

	// ValidationRejectedRecords количество отклоненных записей
	ValidationRejectedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "balises_validation_rejected_records",
		Help: "Number of feed records rejected due to failed validation",
	}, []string{"provider", "kind"})
)

// RecordValidation учитывает результат валидации одной записи
func RecordValidation(provider, kind string, valid bool) {
	ValidationTotalRecords.WithLabelValues(provider, kind).Inc()
	if !valid {
		ValidationRejectedRecords.WithLabelValues(provider, kind).Inc()
	}
}
