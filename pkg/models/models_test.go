package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralCode(t *testing.T) {
	assert.Equal(t, "REF5908252094", ReferralCode(5908252094))

	tests := []struct {
		code    string
		want    int64
		wantErr bool
	}{
		{code: "REF42", want: 42},
		{code: " REF7 ", want: 7},
		{code: "ref42", wantErr: true},
		{code: "REF", wantErr: true},
		{code: "REF0", wantErr: true},
		{code: "REF-3", wantErr: true},
		{code: "42", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			id, err := ParseReferralCode(tt.code)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestQuantities(t *testing.T) {
	q := Quantities{3: 2, 1: 0, 2: 1}

	assert.Equal(t, []int64{1, 2, 3}, q.ProductIDs())
	assert.Equal(t, 3, q.Units())
	assert.Equal(t, Quantities{3: 2, 2: 1}, q.Positive())

	c := q.Clone()
	c[3] = 10
	assert.Equal(t, 2, q[3])
}

func TestRemainingWeeks(t *testing.T) {
	assert.Equal(t, 7, (&PaymentPlan{WeeksTotal: 10, WeeksCompleted: 3}).RemainingWeeks())
	assert.Zero(t, (&PaymentPlan{WeeksTotal: 10, WeeksCompleted: 10}).RemainingWeeks())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ana Perez", (&User{FirstName: "Ana", LastName: "Perez"}).DisplayName())
	assert.Equal(t, "@ana", (&User{Username: "ana"}).DisplayName())
}
