// Package keylock сериализует операции по целочисленному ключу,
// обычно по ID пользователя Telegram.
package keylock

import "sync"

// Mutex набор мьютексов по ключу. Неиспользуемые ключи удаляются.
type Mutex struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New создает пустой набор блокировок
func New() *Mutex {
	return &Mutex{locks: make(map[int64]*entry)}
}

// Lock блокирует ключ и возвращает функцию разблокировки
func (k *Mutex) Lock(key int64) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len возвращает число удерживаемых или ожидаемых ключей
func (k *Mutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
