package auth

import (
	"testing"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/stretchr/testify/assert"
)

func TestPolicy(t *testing.T) {
	p := NewPolicy(5908252094)

	assert.True(t, p.IsAdmin(5908252094))
	assert.False(t, p.IsAdmin(1))
	assert.NoError(t, p.Require(5908252094))
	assert.ErrorIs(t, p.Require(1), models.ErrForbidden)
	assert.Equal(t, int64(5908252094), p.AdminID())
}
