package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User представляет зарегистрированного клиента. ID совпадает с Telegram ID.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Phone        string    `json:"phone" db:"phone"`
	RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
}

// DisplayName возвращает имя для сообщений и списков
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" && u.Username != "" {
		name = "@" + u.Username
	}
	return name
}

// Profile содержит данные профиля из Telegram до регистрации
type Profile struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// Product представляет товар каталога
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	Active      bool            `json:"active" db:"active"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// ProductField поле товара, которое администратор может редактировать
type ProductField string

const (
	ProductFieldName        ProductField = "nombre"
	ProductFieldPrice       ProductField = "precio"
	ProductFieldDescription ProductField = "descripcion"
	ProductFieldCategory    ProductField = "categoria"
)

// IsValid проверяет, что поле поддерживается
func (f ProductField) IsValid() bool {
	switch f {
	case ProductFieldName, ProductFieldPrice, ProductFieldDescription, ProductFieldCategory:
		return true
	default:
		return false
	}
}

// DefaultCategory категория товара по умолчанию
const DefaultCategory = "General"

// PaymentStatus статус платежа
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Payment представляет платеж, отправленный клиентом на проверку
type Payment struct {
	ID            int64           `json:"id" db:"id"`
	UserID        int64           `json:"user_id" db:"user_id"`
	PayerName     string          `json:"payer_name" db:"payer_name"`
	Reference     string          `json:"reference" db:"reference"`
	ReceiptFileID string          `json:"receipt_file_id" db:"receipt_file_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        PaymentStatus   `json:"status" db:"status"`
	SubmittedAt   time.Time       `json:"submitted_at" db:"submitted_at"`
}

// GlobalConfig единственная запись глобальных настроек счетчика недель
type GlobalConfig struct {
	WeeksDefault  int       `json:"weeks_default" db:"weeks_default"`
	CounterActive bool      `json:"counter_active" db:"counter_active"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultWeeks количество недель в новой конфигурации
const DefaultWeeks = 10
