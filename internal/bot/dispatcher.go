package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Dispatcher раздает обновления по очередям пользователей.
// Разные пользователи обрабатываются параллельно, обновления одного
// пользователя выполняются в порядке поступления.
type Dispatcher struct {
	handler *Handler
	logger  *zap.Logger

	mu     sync.Mutex
	queues map[int64][]tgbotapi.Update
	wg     sync.WaitGroup
}

// NewDispatcher создает диспетчер обновлений
func NewDispatcher(handler *Handler, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handler: handler,
		logger:  logger,
		queues:  make(map[int64][]tgbotapi.Update),
	}
}

// Dispatch ставит обновление в очередь его автора и не блокируется
func (d *Dispatcher) Dispatch(ctx context.Context, update tgbotapi.Update) {
	userID := updateUserID(update)
	if userID == 0 {
		return
	}

	d.mu.Lock()
	queue, running := d.queues[userID]
	d.queues[userID] = append(queue, update)
	d.mu.Unlock()

	// Очередь уже разбирается своей горутиной
	if running {
		return
	}

	d.wg.Add(1)
	go d.drain(ctx, userID)
}

// Wait ждет, пока все очереди будут разобраны
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain(ctx context.Context, userID int64) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.queues[userID]
		if len(queue) == 0 {
			delete(d.queues, userID)
			d.mu.Unlock()
			return
		}
		update := queue[0]
		d.queues[userID] = queue[1:]
		d.mu.Unlock()

		if err := d.handler.HandleUpdate(ctx, update); err != nil {
			d.logger.Error("ошибка обработки обновления",
				zap.Int64("user_id", userID),
				zap.Int("update_id", update.UpdateID),
				zap.Error(err))
		}
	}
}
