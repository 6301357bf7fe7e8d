package catalog

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/angel0101P/Bot-SusuSemanal/pkg/models"
)

// formKeys сопоставляет ключи формы с полями товара, в том числе без ударений
var formKeys = map[string]models.ProductField{
	"nombre":      models.ProductFieldName,
	"precio":      models.ProductFieldPrice,
	"descripcion": models.ProductFieldDescription,
	"descripción": models.ProductFieldDescription,
	"categoria":   models.ProductFieldCategory,
	"categoría":   models.ProductFieldCategory,
}

// ParseForm разбирает форму добавления товара. Nombre и Precio обязательны.
func ParseForm(text string) (NewProduct, error) {
	values := make(map[models.ProductField]string)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		field, known := formKeys[strings.ToLower(strings.TrimSpace(key))]
		if !known {
			continue
		}
		values[field] = strings.TrimSpace(value)
	}

	np := NewProduct{
		Name:        values[models.ProductFieldName],
		Description: values[models.ProductFieldDescription],
		Category:    values[models.ProductFieldCategory],
	}
	if np.Name == "" {
		return NewProduct{}, fmt.Errorf("%w: требуется поле Nombre", models.ErrInvalidInput)
	}
	price, err := ParsePrice(values[models.ProductFieldPrice])
	if err != nil {
		return NewProduct{}, err
	}
	np.Price = price
	if np.Category == "" {
		np.Category = models.DefaultCategory
	}
	return np, nil
}
