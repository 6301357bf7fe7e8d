// Package lock выдает блокировку прохода счетчика: в процессе или через Redis,
// если несколько экземпляров бота работают с одной базой.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAlreadyLocked блокировка удерживается другим владельцем
var ErrAlreadyLocked = errors.New("already locked")

// Locker выдает блокировку по ключу с ограниченным временем жизни
type Locker interface {
	// TryLock не ждет освобождения: занятый ключ дает ErrAlreadyLocked
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// LocalLocker блокировка внутри одного процесса
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLocalLocker создает блокировку внутри процесса
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]time.Time),
		now:  time.Now,
	}
}

// TryLock захватывает ключ до вызова release или истечения ttl
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, ErrAlreadyLocked
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// Истекшую блокировку мог захватить другой владелец
			if l.held[key].Equal(expires) {
				delete(l.held, key)
			}
		})
	}, nil
}
