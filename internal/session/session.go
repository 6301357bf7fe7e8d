// Package session хранит состояние многошаговых диалогов пользователей и черновики назначений.
//
// Состояние живет только в памяти процесса и теряется при перезапуске.
// У пользователя одновременно может быть только одно состояние.
package session

import (
	"sync"

	"github.com/angel0101P/Bot-SusuSemanal/internal/payment"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"
)

// Tag тип текущего диалога
type Tag string

const (
	TagNone                    Tag = "none"
	TagAwaitingPhone           Tag = "awaiting_phone"
	TagAwaitingPaymentDetails  Tag = "awaiting_payment_details"
	TagAwaitingReceiptImage    Tag = "awaiting_receipt_image"
	TagAwaitingRejectionReason Tag = "awaiting_rejection_reason"
	TagEditingProductField     Tag = "editing_product_field"
	TagConfiguringWeeks        Tag = "configuring_weeks"
	TagAddingProduct           Tag = "adding_product"
)

// State состояние диалога с данными, специфичными для тега
type State interface {
	Tag() Tag
}

// AwaitingPhone ожидание номера телефона после /start
type AwaitingPhone struct {
	Profile      models.Profile
	ReferralCode string
}

// AwaitingPaymentDetails ожидание текста с данными платежа
type AwaitingPaymentDetails struct{}

// AwaitingReceiptImage ожидание фото чека
type AwaitingReceiptImage struct {
	Details payment.Details
}

// AwaitingRejectionReason ожидание причины отклонения платежа от администратора
type AwaitingRejectionReason struct {
	PaymentID int64
}

// EditingProductField ожидание нового значения поля товара
type EditingProductField struct {
	ProductID int64
	Field     models.ProductField
}

// ConfiguringWeeks ожидание произвольного количества недель
type ConfiguringWeeks struct{}

// AddingProduct ожидание формы нового товара
type AddingProduct struct{}

func (AwaitingPhone) Tag() Tag           { return TagAwaitingPhone }
func (AwaitingPaymentDetails) Tag() Tag  { return TagAwaitingPaymentDetails }
func (AwaitingReceiptImage) Tag() Tag    { return TagAwaitingReceiptImage }
func (AwaitingRejectionReason) Tag() Tag { return TagAwaitingRejectionReason }
func (EditingProductField) Tag() Tag     { return TagEditingProductField }
func (ConfiguringWeeks) Tag() Tag        { return TagConfiguringWeeks }
func (AddingProduct) Tag() Tag           { return TagAddingProduct }

// DraftKey ключ черновика: администратор и клиент
type DraftKey struct {
	AdminID  int64
	TargetID int64
}

// Tracker хранилище состояний и черновиков
type Tracker struct {
	mu     sync.Mutex
	states map[int64]State

	draftsMu sync.Mutex
	drafts   map[DraftKey]models.Quantities
}

// NewTracker создает пустое хранилище
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[int64]State),
		drafts: make(map[DraftKey]models.Quantities),
	}
}

// Set заменяет текущее состояние пользователя
func (t *Tracker) Set(userID int64, state State) {
	if state == nil {
		t.Clear(userID)
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[userID] = state
}

// Get возвращает текущее состояние пользователя
func (t *Tracker) Get(userID int64) (State, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[userID]
	return state, ok
}

// Current возвращает тег текущего состояния или TagNone
func (t *Tracker) Current(userID int64) Tag {
	if state, ok := t.Get(userID); ok {
		return state.Tag()
	}
	return TagNone
}

// Clear сбрасывает состояние пользователя. Безопасен при отсутствии состояния.
func (t *Tracker) Clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.states, userID)
}

// Draft возвращает копию черновика. Пустой черновик отличается от отсутствующего.
func (t *Tracker) Draft(key DraftKey) (models.Quantities, bool) {
	t.draftsMu.Lock()
	defer t.draftsMu.Unlock()
	q, ok := t.drafts[key]
	if !ok {
		return nil, false
	}
	return q.Clone(), true
}

// PutDraft сохраняет черновик
func (t *Tracker) PutDraft(key DraftKey, q models.Quantities) {
	if q == nil {
		q = models.Quantities{}
	}
	t.draftsMu.Lock()
	defer t.draftsMu.Unlock()
	t.drafts[key] = q.Clone()
}

// UpdateDraft атомарно изменяет существующий черновик
func (t *Tracker) UpdateDraft(key DraftKey, fn func(q models.Quantities)) (models.Quantities, bool) {
	t.draftsMu.Lock()
	defer t.draftsMu.Unlock()
	q, ok := t.drafts[key]
	if !ok {
		return nil, false
	}
	fn(q)
	return q.Clone(), true
}

// DropDraft удаляет черновик
func (t *Tracker) DropDraft(key DraftKey) {
	t.draftsMu.Lock()
	defer t.draftsMu.Unlock()
	delete(t.drafts, key)
}

// DropDrafts удаляет все черновики администратора
func (t *Tracker) DropDrafts(adminID int64) int {
	t.draftsMu.Lock()
	defer t.draftsMu.Unlock()
	n := 0
	for key := range t.drafts {
		if key.AdminID == adminID {
			delete(t.drafts, key)
			n++
		}
	}
	return n
}
