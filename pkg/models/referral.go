package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReferralStatus представляет статус реферала
type ReferralStatus string

const (
	ReferralStatusPending  ReferralStatus = "pending"
	ReferralStatusApproved ReferralStatus = "approved"
	ReferralStatusRejected ReferralStatus = "rejected"
)

// IsValid проверяет валидность статуса реферала
func (rs ReferralStatus) IsValid() bool {
	switch rs {
	case ReferralStatusPending, ReferralStatusApproved, ReferralStatusRejected:
		return true
	default:
		return false
	}
}

// Referral представляет приглашение нового клиента существующим
type Referral struct {
	ID            int64          `json:"id" db:"id"`
	ReferrerID    int64          `json:"referrer_id" db:"referrer_id"`
	ReferredID    *int64         `json:"referred_id,omitempty" db:"referred_id"`
	ReferredName  string         `json:"referred_name" db:"referred_name"`
	ReferredPhone string         `json:"referred_phone" db:"referred_phone"`
	Status        ReferralStatus `json:"status" db:"status"`
	PointsGranted bool           `json:"points_granted" db:"points_granted"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// ReferralStats представляет статистику рефералов пользователя
type ReferralStats struct {
	Total    int `json:"total"`
	Approved int `json:"approved"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

const referralCodePrefix = "REF"

// ReferralCode возвращает реферальный код пользователя
func ReferralCode(userID int64) string {
	return referralCodePrefix + strconv.FormatInt(userID, 10)
}

// ParseReferralCode извлекает ID пригласившего из кода вида REF<id>
func ParseReferralCode(code string) (int64, error) {
	code = strings.TrimSpace(code)
	if !strings.HasPrefix(code, referralCodePrefix) {
		return 0, fmt.Errorf("%w: код %q без префикса %s", ErrInvalidInput, code, referralCodePrefix)
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(code, referralCodePrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: некорректный код %q", ErrInvalidInput, code)
	}
	return id, nil
}
