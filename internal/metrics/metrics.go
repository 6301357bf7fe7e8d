package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "susu"

// Metrics содержит все метрики приложения. Методы безопасны для nil.
type Metrics struct {
	logger   *zap.Logger
	gatherer prometheus.Gatherer

	// Счетчики
	commands       *prometheus.CounterVec
	plansAdvanced  *prometheus.CounterVec
	plansCompleted prometheus.Counter
	pointsAwarded  *prometheus.CounterVec
	sweepsSkipped  prometheus.Counter
	notifications  *prometheus.CounterVec

	// Гистограммы
	sweepDuration prometheus.Histogram

	// Gauge метрики
	activePlans prometheus.Gauge
}

// New создает метрики в глобальном реестре Prometheus
func New(logger *zap.Logger) *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer, logger)
}

// NewWithRegistry создает метрики в указанном реестре
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer, logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger:   logger,
		gatherer: gatherer,

		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Количество обработанных команд",
			},
			[]string{"command", "status"}, // status: ok, forbidden, malformed, not_found, invalid, failed
		),

		plansAdvanced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_advanced_total",
				Help:      "Количество продвижений планов на неделю",
			},
			[]string{"scope"}, // automatic, manual, forced
		),

		plansCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_completed_total",
				Help:      "Количество завершенных планов",
			},
		),

		pointsAwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "points_awarded_total",
				Help:      "Количество начисленных баллов",
			},
			[]string{"kind"}, // payment, referral
		),

		sweepsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_skipped_total",
				Help:      "Пропущенные проходы счетчика из-за занятой блокировки",
			},
		),

		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Исходящие уведомления",
			},
			[]string{"kind", "status"},
		),

		sweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Длительность прохода еженедельного счетчика",
				Buckets:   prometheus.DefBuckets,
			},
		),

		activePlans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_plans",
				Help:      "Количество активных планов",
			},
		),
	}

	reg.MustRegister(
		m.commands,
		m.plansAdvanced,
		m.plansCompleted,
		m.pointsAwarded,
		m.sweepsSkipped,
		m.notifications,
		m.sweepDuration,
		m.activePlans,
	)

	return m
}

// RecordCommand записывает обработку команды
func (m *Metrics) RecordCommand(command, status string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, status).Inc()
}

// RecordProgress записывает результат продвижения планов
func (m *Metrics) RecordProgress(scope string, advanced, completed int) {
	if m == nil {
		return
	}
	m.plansAdvanced.WithLabelValues(scope).Add(float64(advanced))
	m.plansCompleted.Add(float64(completed))
	m.logger.Debug("метрика продвижения обновлена",
		zap.String("scope", scope),
		zap.Int("advanced", advanced),
		zap.Int("completed", completed))
}

// RecordAward записывает начисление баллов
func (m *Metrics) RecordAward(kind string, points int) {
	if m == nil {
		return
	}
	m.pointsAwarded.WithLabelValues(kind).Add(float64(points))
}

// RecordSweepSkipped записывает пропуск прохода
func (m *Metrics) RecordSweepSkipped() {
	if m == nil {
		return
	}
	m.sweepsSkipped.Inc()
}

// ObserveSweep записывает длительность прохода
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(d.Seconds())
}

// SetActivePlans устанавливает количество активных планов
func (m *Metrics) SetActivePlans(n int) {
	if m == nil {
		return
	}
	m.activePlans.Set(float64(n))
}

// RecordNotification записывает отправку уведомления
func (m *Metrics) RecordNotification(kind string, ok bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.notifications.WithLabelValues(kind, status).Inc()
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
