// Package auth определяет, кто может выполнять административные команды.
package auth

import (
	"fmt"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"
)

// Policy политика доступа с единственным администратором
type Policy struct {
	adminID int64
}

// NewPolicy создает политику доступа
func NewPolicy(adminID int64) *Policy {
	return &Policy{adminID: adminID}
}

// AdminID возвращает Telegram ID администратора
func (p *Policy) AdminID() int64 {
	return p.adminID
}

// IsAdmin проверяет, является ли пользователь администратором
func (p *Policy) IsAdmin(userID int64) bool {
	return userID == p.adminID
}

// Require возвращает ErrForbidden, если пользователь не администратор
func (p *Policy) Require(userID int64) error {
	if !p.IsAdmin(userID) {
		return fmt.Errorf("пользователь %d: %w", userID, models.ErrForbidden)
	}
	return nil
}
