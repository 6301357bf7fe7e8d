package session

import (
	"sync"
	"testing"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerSingleTag(t *testing.T) {
	tr := NewTracker()

	assert.Equal(t, TagNone, tr.Current(1))

	tr.Set(1, AwaitingPaymentDetails{})
	assert.Equal(t, TagAwaitingPaymentDetails, tr.Current(1))

	// Новый тег заменяет предыдущий
	tr.Set(1, EditingProductField{ProductID: 7, Field: models.ProductFieldPrice})
	state, ok := tr.Get(1)
	require.True(t, ok)
	edit, ok := state.(EditingProductField)
	require.True(t, ok)
	assert.Equal(t, int64(7), edit.ProductID)
	assert.Equal(t, models.ProductFieldPrice, edit.Field)

	// Состояния пользователей независимы
	assert.Equal(t, TagNone, tr.Current(2))
}

func TestTrackerClearIsIdempotent(t *testing.T) {
	tr := NewTracker()

	tr.Clear(1)
	tr.Set(1, ConfiguringWeeks{})
	tr.Clear(1)
	tr.Clear(1)

	_, ok := tr.Get(1)
	assert.False(t, ok)

	tr.Set(1, nil)
	assert.Equal(t, TagNone, tr.Current(1))
}

func TestDraftsIndependentOfState(t *testing.T) {
	tr := NewTracker()
	key := DraftKey{AdminID: 1, TargetID: 2}

	_, ok := tr.Draft(key)
	assert.False(t, ok)

	tr.PutDraft(key, models.Quantities{10: 2})
	tr.Set(1, AwaitingRejectionReason{PaymentID: 5})
	tr.Clear(1)

	q, ok := tr.Draft(key)
	require.True(t, ok)
	assert.Equal(t, models.Quantities{10: 2}, q)

	// Возвращается копия
	q[10] = 99
	again, _ := tr.Draft(key)
	assert.Equal(t, 2, again[10])
}

func TestEmptyDraftIsPresent(t *testing.T) {
	tr := NewTracker()
	key := DraftKey{AdminID: 1, TargetID: 2}

	tr.PutDraft(key, nil)
	q, ok := tr.Draft(key)
	assert.True(t, ok)
	assert.Empty(t, q)

	tr.DropDraft(key)
	_, ok = tr.Draft(key)
	assert.False(t, ok)
}

func TestUpdateDraft(t *testing.T) {
	tr := NewTracker()
	key := DraftKey{AdminID: 1, TargetID: 2}

	_, ok := tr.UpdateDraft(key, func(q models.Quantities) { q[1] = 1 })
	assert.False(t, ok)

	tr.PutDraft(key, models.Quantities{})
	q, ok := tr.UpdateDraft(key, func(q models.Quantities) { q[1]++ })
	require.True(t, ok)
	assert.Equal(t, models.Quantities{1: 1}, q)
}

func TestDropDrafts(t *testing.T) {
	tr := NewTracker()
	tr.PutDraft(DraftKey{AdminID: 1, TargetID: 2}, models.Quantities{1: 1})
	tr.PutDraft(DraftKey{AdminID: 1, TargetID: 3}, models.Quantities{1: 1})
	tr.PutDraft(DraftKey{AdminID: 9, TargetID: 2}, models.Quantities{1: 1})

	assert.Equal(t, 2, tr.DropDrafts(1))
	_, ok := tr.Draft(DraftKey{AdminID: 9, TargetID: 2})
	assert.True(t, ok)
}

func TestTrackerConcurrentAccess(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tr.Set(id, AwaitingPaymentDetails{})
			tr.PutDraft(DraftKey{AdminID: 1, TargetID: id}, models.Quantities{id: 1})
			tr.Current(id)
			tr.Clear(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, tr.DropDrafts(1))
}
