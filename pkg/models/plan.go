package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PlanStatus статус плана рассрочки
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusDeleted   PlanStatus = "deleted"
)

// Quantities количество единиц по ID товара
type Quantities map[int64]int

// Clone возвращает копию карты
func (q Quantities) Clone() Quantities {
	out := make(Quantities, len(q))
	for id, n := range q {
		out[id] = n
	}
	return out
}

// Positive возвращает копию только с положительными количествами
func (q Quantities) Positive() Quantities {
	out := make(Quantities, len(q))
	for id, n := range q {
		if n > 0 {
			out[id] = n
		}
	}
	return out
}

// ProductIDs возвращает отсортированный список ID товаров
func (q Quantities) ProductIDs() []int64 {
	ids := make([]int64, 0, len(q))
	for id := range q {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Units возвращает общее количество единиц
func (q Quantities) Units() int {
	total := 0
	for _, n := range q {
		total += n
	}
	return total
}

// PaymentPlan план еженедельных платежей клиента
type PaymentPlan struct {
	ID                 int64           `json:"id" db:"id"`
	UserID             int64           `json:"user_id" db:"user_id"`
	Quantities         Quantities      `json:"quantities" db:"quantities"`
	Total              decimal.Decimal `json:"total" db:"total"`
	WeeksTotal         int             `json:"weeks_total" db:"weeks_total"`
	WeeklyPayment      decimal.Decimal `json:"weekly_payment" db:"weekly_payment"`
	WeeksCompleted     int             `json:"weeks_completed" db:"weeks_completed"`
	Status             PlanStatus      `json:"status" db:"status"`
	PausedIndividually bool            `json:"paused_individually" db:"paused_individually"`
	StartedAt          time.Time       `json:"started_at" db:"started_at"`
	LastProgressAt     *time.Time      `json:"last_progress_at,omitempty" db:"last_progress_at"`
}

// RemainingWeeks возвращает количество оставшихся недель
func (p *PaymentPlan) RemainingWeeks() int {
	if p.WeeksCompleted >= p.WeeksTotal {
		return 0
	}
	return p.WeeksTotal - p.WeeksCompleted
}

// PlanStats агрегированная статистика планов для панели счетчика
type PlanStats struct {
	Active    int `json:"active"`
	Paused    int `json:"paused"`
	Completed int `json:"completed"`
}
