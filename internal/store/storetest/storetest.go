// Package storetest предоставляет in-memory реализацию store.Store.
// Транзакции сериализуются и откатываются снимком данных при ошибке.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/angel0101P/Bot-SusuSemanal/internal/store"
	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/shopspring/decimal"
)

type data struct {
	users     map[int64]*models.User
	products  map[int64]*models.Product
	payments  map[int64]*models.Payment
	plans     map[int64]*models.PaymentPlan
	accounts  map[int64]*models.PointsAccount
	referrals map[int64]*models.Referral
	ledger    []*models.LedgerEntry
	config    models.GlobalConfig
	seq       int64
}

func newData() *data {
	return &data{
		users:     make(map[int64]*models.User),
		products:  make(map[int64]*models.Product),
		payments:  make(map[int64]*models.Payment),
		plans:     make(map[int64]*models.PaymentPlan),
		accounts:  make(map[int64]*models.PointsAccount),
		referrals: make(map[int64]*models.Referral),
		config:    models.GlobalConfig{WeeksDefault: models.DefaultWeeks, CounterActive: true},
	}
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range d.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range d.payments {
		p := *v
		c.payments[k] = &p
	}
	for k, v := range d.plans {
		c.plans[k] = copyPlan(v)
	}
	for k, v := range d.accounts {
		a := *v
		c.accounts[k] = &a
	}
	for k, v := range d.referrals {
		c.referrals[k] = copyReferral(v)
	}
	c.ledger = append(c.ledger, d.ledger...)
	c.config = d.config
	c.seq = d.seq
	return c
}

func copyPlan(p *models.PaymentPlan) *models.PaymentPlan {
	c := *p
	c.Quantities = p.Quantities.Clone()
	if p.LastProgressAt != nil {
		t := *p.LastProgressAt
		c.LastProgressAt = &t
	}
	return &c
}

func copyReferral(r *models.Referral) *models.Referral {
	c := *r
	if r.ReferredID != nil {
		id := *r.ReferredID
		c.ReferredID = &id
	}
	return &c
}

// Store in-memory хранилище с семантикой store.Store
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *data
	err  error

	users     *users
	products  *products
	payments  *payments
	plans     *plans
	config    *config
	points    *points
	referrals *referrals
}

var _ store.Store = (*Store)(nil)

// New создает пустое хранилище с конфигурацией по умолчанию
func New() *Store {
	s := &Store{data: newData()}
	s.users = &users{s}
	s.products = &products{s}
	s.payments = &payments{s}
	s.plans = &plans{s}
	s.config = &config{s}
	s.points = &points{s}
	s.referrals = &referrals{s}
	return s
}

// FailWith заставляет все операции возвращать ошибку хранилища. nil снимает сбой.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) lock() error {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return fmt.Errorf("storetest: %w: %w", models.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) User() store.UserRepository         { return s.users }
func (s *Store) Product() store.ProductRepository   { return s.products }
func (s *Store) Payment() store.PaymentRepository   { return s.payments }
func (s *Store) Plan() store.PlanRepository         { return s.plans }
func (s *Store) Config() store.ConfigRepository     { return s.config }
func (s *Store) Points() store.PointsRepository     { return s.points }
func (s *Store) Referral() store.ReferralRepository { return s.referrals }

// InTx выполняет fn эксклюзивно; при ошибке данные восстанавливаются
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := s.lock(); err != nil {
		return err
	}
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// Ping проверяет доступность
func (s *Store) Ping(ctx context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	s.mu.Unlock()
	return nil
}

// Close ничего не делает
func (s *Store) Close() error { return nil }

// Ledger возвращает копию всего журнала баллов
func (s *Store) Ledger() []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.LedgerEntry, 0, len(s.data.ledger))
	for _, e := range s.data.ledger {
		out = append(out, *e)
	}
	return out
}

// SeedUser создает пользователя для теста
func SeedUser(t testing.TB, s *Store, id int64, firstName string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           id,
		FirstName:    firstName,
		Phone:        fmt.Sprintf("+58%010d", id),
		RegisteredAt: time.Now(),
	}
	if err := s.User().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// SeedProduct добавляет активный товар с ценой вида "30.00"
func SeedProduct(t testing.TB, s *Store, name, price string) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:      name,
		Price:     decimal.RequireFromString(price),
		Category:  models.DefaultCategory,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := s.Product().Create(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

type users struct{ s *Store }

func (r *users) Create(ctx context.Context, user *models.User) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[user.ID]; ok {
		return fmt.Errorf("пользователь %d: %w", user.ID, models.ErrAlreadyExists)
	}
	u := *user
	r.s.data.users[user.ID] = &u
	return nil
}

func (r *users) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, fmt.Errorf("пользователь %d: %w", id, models.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (r *users) List(ctx context.Context) ([]*models.User, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	out := make([]*models.User, 0, len(r.s.data.users))
	for _, u := range r.s.data.users {
		c := *u
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *users) Delete(ctx context.Context, id int64) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.users[id]; !ok {
		return fmt.Errorf("пользователь %d: %w", id, models.ErrNotFound)
	}
	delete(r.s.data.users, id)
	return nil
}

type products struct{ s *Store }

func (r *products) Create(ctx context.Context, product *models.Product) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	product.ID = r.s.data.nextID()
	p := *product
	r.s.data.products[p.ID] = &p
	return nil
}

func (r *products) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.data.products[id]
	if !ok {
		return nil, fmt.Errorf("товар %d: %w", id, models.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (r *products) ListActive(ctx context.Context) ([]*models.Product, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	var out []*models.Product
	for _, p := range r.s.data.products {
		if p.Active {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *products) Update(ctx context.Context, product *models.Product) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.data.products[product.ID]
	if !ok {
		return fmt.Errorf("товар %d: %w", product.ID, models.ErrNotFound)
	}
	p.Name = product.Name
	p.Description = product.Description
	p.Price = product.Price
	p.Category = product.Category
	return nil
}

func (r *products) Deactivate(ctx context.Context, id int64) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.data.products[id]
	if !ok || !p.Active {
		return fmt.Errorf("активный товар %d: %w", id, models.ErrNotFound)
	}
	p.Active = false
	return nil
}

func (r *products) Prices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	return r.prices(ids, false)
}

func (r *products) ActivePrices(ctx context.Context, ids []int64) (map[int64]decimal.Decimal, error) {
	return r.prices(ids, true)
}

func (r *products) prices(ids []int64, onlyActive bool) (map[int64]decimal.Decimal, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	out := make(map[int64]decimal.Decimal, len(ids))
	for _, id := range ids {
		p, ok := r.s.data.products[id]
		if !ok || (onlyActive && !p.Active) {
			continue
		}
		out[id] = p.Price
	}
	return out, nil
}

type payments struct{ s *Store }

func (r *payments) Create(ctx context.Context, payment *models.Payment) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	payment.ID = r.s.data.nextID()
	p := *payment
	r.s.data.payments[p.ID] = &p
	return nil
}

func (r *payments) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.data.payments[id]
	if !ok {
		return nil, fmt.Errorf("платеж %d: %w", id, models.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (r *payments) GetForUpdate(ctx context.Context, id int64) (*models.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r *payments) UpdateStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	p, ok := r.s.data.payments[id]
	if !ok {
		return fmt.Errorf("платеж %d: %w", id, models.ErrNotFound)
	}
	p.Status = status
	return nil
}

func (r *payments) ListByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	return r.filter(0, func(p *models.Payment) bool { return p.Status == status })
}

func (r *payments) ListAll(ctx context.Context, limit int) ([]*models.Payment, error) {
	return r.filter(limit, func(*models.Payment) bool { return true })
}

func (r *payments) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Payment, error) {
	return r.filter(limit, func(p *models.Payment) bool { return p.UserID == userID })
}

func (r *payments) Delete(ctx context.Context, id int64) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.payments[id]; !ok {
		return fmt.Errorf("платеж %d: %w", id, models.ErrNotFound)
	}
	delete(r.s.data.payments, id)
	return nil
}

func (r *payments) filter(limit int, keep func(*models.Payment) bool) ([]*models.Payment, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	var out []*models.Payment
	for _, p := range r.s.data.payments {
		if keep(p) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type plans struct{ s *Store }

func (r *plans) GetActiveByUser(ctx context.Context, userID int64) (*models.PaymentPlan, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	for _, p := range r.s.data.plans {
		if p.UserID == userID && p.Status == models.PlanStatusActive {
			return copyPlan(p), nil
		}
	}
	return nil, fmt.Errorf("план пользователя %d: %w", userID, models.ErrNotFound)
}

func (r *plans) ListActive(ctx context.Context) ([]*models.PaymentPlan, error) {
	return r.filter(func(p *models.PaymentPlan) bool { return p.Status == models.PlanStatusActive })
}

func (r *plans) ListByUser(ctx context.Context, userID int64) ([]*models.PaymentPlan, error) {
	return r.filter(func(p *models.PaymentPlan) bool {
		return p.UserID == userID && p.Status != models.PlanStatusDeleted
	})
}

func (r *plans) Create(ctx context.Context, plan *models.PaymentPlan) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	if plan.Status == models.PlanStatusActive {
		for _, p := range r.s.data.plans {
			if p.UserID == plan.UserID && p.Status == models.PlanStatusActive {
				return fmt.Errorf("активный план пользователя %d: %w", plan.UserID, models.ErrAlreadyExists)
			}
		}
	}
	plan.ID = r.s.data.nextID()
	r.s.data.plans[plan.ID] = copyPlan(plan)
	return nil
}

func (r *plans) Update(ctx context.Context, plan *models.PaymentPlan) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.plans[plan.ID]; !ok {
		return fmt.Errorf("план %d: %w", plan.ID, models.ErrNotFound)
	}
	r.s.data.plans[plan.ID] = copyPlan(plan)
	return nil
}

func (r *plans) SetPausedForActive(ctx context.Context, paused bool) (int, error) {
	if err := r.s.lock(); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.data.plans {
		if p.Status == models.PlanStatusActive {
			p.PausedIndividually = paused
			n++
		}
	}
	return n, nil
}

func (r *plans) MarkDeletedByUser(ctx context.Context, userID int64) (int, error) {
	if err := r.s.lock(); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()
	n := 0
	for _, p := range r.s.data.plans {
		if p.UserID == userID && p.Status != models.PlanStatusDeleted {
			p.Status = models.PlanStatusDeleted
			n++
		}
	}
	return n, nil
}

func (r *plans) Stats(ctx context.Context) (*models.PlanStats, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	stats := &models.PlanStats{}
	for _, p := range r.s.data.plans {
		switch p.Status {
		case models.PlanStatusActive:
			stats.Active++
			if p.PausedIndividually {
				stats.Paused++
			}
		case models.PlanStatusCompleted:
			stats.Completed++
		}
	}
	return stats, nil
}

func (r *plans) filter(keep func(*models.PaymentPlan) bool) ([]*models.PaymentPlan, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	var out []*models.PaymentPlan
	for _, p := range r.s.data.plans {
		if keep(p) {
			out = append(out, copyPlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type config struct{ s *Store }

func (r *config) Get(ctx context.Context) (*models.GlobalConfig, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	c := r.s.data.config
	return &c, nil
}

func (r *config) GetForUpdate(ctx context.Context) (*models.GlobalConfig, error) {
	return r.Get(ctx)
}

func (r *config) Update(ctx context.Context, cfg *models.GlobalConfig) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	r.s.data.config = *cfg
	return nil
}

type points struct{ s *Store }

func (r *points) GetAccount(ctx context.Context, userID int64) (*models.PointsAccount, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	a, ok := r.s.data.accounts[userID]
	if !ok {
		return nil, fmt.Errorf("счет %d: %w", userID, models.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (r *points) LockAccount(ctx context.Context, userID int64) (*models.PointsAccount, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	a, ok := r.s.data.accounts[userID]
	if !ok {
		a = &models.PointsAccount{UserID: userID, UpdatedAt: time.Now()}
		r.s.data.accounts[userID] = a
	}
	c := *a
	return &c, nil
}

func (r *points) UpdateAccount(ctx context.Context, account *models.PointsAccount) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.accounts[account.UserID]; !ok {
		return fmt.Errorf("счет %d: %w", account.UserID, models.ErrNotFound)
	}
	a := *account
	r.s.data.accounts[account.UserID] = &a
	return nil
}

func (r *points) AppendEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	entry.ID = r.s.data.nextID()
	e := *entry
	r.s.data.ledger = append(r.s.data.ledger, &e)
	return nil
}

func (r *points) ListEntries(ctx context.Context, userID int64, limit int) ([]*models.LedgerEntry, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	var out []*models.LedgerEntry
	for i := len(r.s.data.ledger) - 1; i >= 0; i-- {
		e := r.s.data.ledger[i]
		if e.UserID != userID {
			continue
		}
		c := *e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *points) Ranking(ctx context.Context, limit int) ([]*models.RankingEntry, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	var out []*models.RankingEntry
	for _, a := range r.s.data.accounts {
		if a.TotalPoints <= 0 {
			continue
		}
		e := &models.RankingEntry{UserID: a.UserID, TotalPoints: a.TotalPoints, AvailablePoints: a.AvailablePoints}
		if u, ok := r.s.data.users[a.UserID]; ok {
			e.Name = u.DisplayName()
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type referrals struct{ s *Store }

func (r *referrals) Create(ctx context.Context, referral *models.Referral) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	if referral.ReferredID != nil {
		for _, existing := range r.s.data.referrals {
			if existing.ReferredID != nil && *existing.ReferredID == *referral.ReferredID {
				return fmt.Errorf("реферал для %d: %w", *referral.ReferredID, models.ErrAlreadyExists)
			}
		}
	}
	referral.ID = r.s.data.nextID()
	r.s.data.referrals[referral.ID] = copyReferral(referral)
	return nil
}

func (r *referrals) GetByID(ctx context.Context, id int64) (*models.Referral, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	ref, ok := r.s.data.referrals[id]
	if !ok {
		return nil, fmt.Errorf("реферал %d: %w", id, models.ErrNotFound)
	}
	return copyReferral(ref), nil
}

func (r *referrals) GetForUpdate(ctx context.Context, id int64) (*models.Referral, error) {
	return r.GetByID(ctx, id)
}

func (r *referrals) GetByReferred(ctx context.Context, referredID int64) (*models.Referral, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	for _, ref := range r.s.data.referrals {
		if ref.ReferredID != nil && *ref.ReferredID == referredID {
			return copyReferral(ref), nil
		}
	}
	return nil, fmt.Errorf("реферал для %d: %w", referredID, models.ErrNotFound)
}

func (r *referrals) Update(ctx context.Context, referral *models.Referral) error {
	if err := r.s.lock(); err != nil {
		return err
	}
	defer r.s.mu.Unlock()
	ref, ok := r.s.data.referrals[referral.ID]
	if !ok {
		return fmt.Errorf("реферал %d: %w", referral.ID, models.ErrNotFound)
	}
	ref.Status = referral.Status
	ref.PointsGranted = referral.PointsGranted
	return nil
}

func (r *referrals) ListByReferrer(ctx context.Context, referrerID int64) ([]*models.Referral, error) {
	return r.filter(func(ref *models.Referral) bool { return ref.ReferrerID == referrerID })
}

func (r *referrals) ListPending(ctx context.Context) ([]*models.Referral, error) {
	return r.filter(func(ref *models.Referral) bool { return ref.Status == models.ReferralStatusPending })
}

func (r *referrals) filter(keep func(*models.Referral) bool) ([]*models.Referral, error) {
	if err := r.s.lock(); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()
	var out []*models.Referral
	for _, ref := range r.s.data.referrals {
		if keep(ref) {
			out = append(out, copyReferral(ref))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
