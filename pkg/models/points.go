package models

import "time"

// PointsKind источник начисления баллов
type PointsKind string

const (
	PointsKindPayment  PointsKind = "payment"
	PointsKindReferral PointsKind = "referral"
)

// PointsAccount баланс баллов пользователя.
// TotalPoints и AvailablePoints равны сумме Delta по записям журнала.
type PointsAccount struct {
	UserID          int64     `json:"user_id" db:"user_id"`
	TotalPoints     int       `json:"total_points" db:"total_points"`
	AvailablePoints int       `json:"available_points" db:"available_points"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// LedgerEntry неизменяемая запись журнала баллов
type LedgerEntry struct {
	ID        int64      `json:"id" db:"id"`
	UserID    int64      `json:"user_id" db:"user_id"`
	Kind      PointsKind `json:"kind" db:"kind"`
	Delta     int        `json:"delta" db:"delta"`
	Reason    string     `json:"reason" db:"reason"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// RankingEntry строка рейтинга по баллам
type RankingEntry struct {
	UserID          int64  `json:"user_id"`
	Name            string `json:"name"`
	TotalPoints     int    `json:"total_points"`
	AvailablePoints int    `json:"available_points"`
}
