package valueobject

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	t.Run("creates money with valid amount and currency", func(t *testing.T) {
		m, err := NewMoney(decimal.NewFromFloat(100.50), USD)
		require.NoError(t, err)
		assert.Equal(t, USD, m.Currency())
		assert.True(t, m.Amount().Equal(decimal.NewFromFloat(100.50)))
	})

	t.Run("returns error for empty currency", func(t *testing.T) {
		_, err := NewMoney(decimal.NewFromInt(100), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "currency cannot be empty")
	})

	t.Run("rejects invalid amount strings", func(t *testing.T) {
		_, err := NewMoneyFromString("ten", USD)
		assert.Error(t, err)
	})
}

func TestCurrency_MinorUnits(t *testing.T) {
	tests := []struct {
		currency Currency
		want     int32
	}{
		{USD, 2},
		{EUR, 2},
		{CNY, 2},
		{JPY, 0},
		{KRW, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.currency), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.currency.MinorUnits())
		})
	}
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" jpy ")
	require.NoError(t, err)
	assert.Equal(t, JPY, c)

	c, err = ParseCurrency("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, c)

	_, err = ParseCurrency("DOLLAR")
	assert.Error(t, err)
}

func TestMoney_Arithmetic(t *testing.T) {
	price, err := NewMoneyFromString("3.335", USD)
	require.NoError(t, err)

	t.Run("multiply and round to cents", func(t *testing.T) {
		total := price.MultiplyByInt(3).RoundToMinorUnit()
		assert.Equal(t, "10.01", total.Amount().String())
	})

	t.Run("yen rounds to whole units", func(t *testing.T) {
		yen, err := NewMoneyFromString("99.5", JPY)
		require.NoError(t, err)
		assert.Equal(t, "100", yen.RoundToMinorUnit().Amount().String())
	})

	t.Run("add requires matching currency", func(t *testing.T) {
		_, err := price.Add(Zero(EUR))
		assert.Error(t, err)

		sum, err := price.Add(Zero(USD))
		require.NoError(t, err)
		assert.True(t, sum.Equals(price))
	})
}

func TestMoney_String(t *testing.T) {
	m, err := NewMoneyFromString("10", USD)
	require.NoError(t, err)
	assert.Equal(t, "10.00 USD", m.String())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"10.00","currency":"USD"}`, string(data))
}
