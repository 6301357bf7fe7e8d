package catalog

import (
	"testing"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForm(t *testing.T) {
	np, err := ParseForm("Nombre: Camisa\nPrecio: 30\nDescripción: Algodón\nCategoría: Ropa")
	require.NoError(t, err)
	assert.Equal(t, "Camisa", np.Name)
	assert.Equal(t, "30.00", np.Price.StringFixed(2))
	assert.Equal(t, "Algodón", np.Description)
	assert.Equal(t, "Ropa", np.Category)

	np, err = ParseForm("nombre: Gorra\nPRECIO: 12.5")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultCategory, np.Category)
	assert.Empty(t, np.Description)

	_, err = ParseForm("Precio: 10")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = ParseForm("Nombre: Gorra\nPrecio: gratis")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
