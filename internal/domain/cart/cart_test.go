package cart

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	t.Run("merging a cart with itself is identity", func(t *testing.T) {
		c := []Line{
			{ProductID: "p1", Quantity: 2, UnitPrice: price("5")},
			{ProductID: "p1", VariantID: "v1", Quantity: 1, MaxAvailable: IntPtr(4)},
			{ProductID: "p2", Quantity: 3},
		}
		assert.Equal(t, c, Merge(c, c))
	})

	t.Run("local wins on conflict", func(t *testing.T) {
		local := []Line{{ProductID: "k", Quantity: 3}}
		server := []Line{{ProductID: "k", Quantity: 5, MaxAvailable: IntPtr(10)}}

		merged := Merge(local, server)

		require.Len(t, merged, 1)
		assert.Equal(t, 3, merged[0].Quantity)
		assert.Nil(t, merged[0].MaxAvailable)
	})

	t.Run("keeps local order then appends server-only lines", func(t *testing.T) {
		local := []Line{{ProductID: "b", Quantity: 1}, {ProductID: "a", Quantity: 1}}
		server := []Line{{ProductID: "c", Quantity: 1}, {ProductID: "a", Quantity: 9}}

		merged := Merge(local, server)

		keys := make([]string, 0, len(merged))
		for _, l := range merged {
			keys = append(keys, l.Key().String())
		}
		assert.Equal(t, []string{"b", "a", "c"}, keys)
	})

	t.Run("does not alias inputs", func(t *testing.T) {
		local := []Line{{ProductID: "p1", Quantity: 1, MaxAvailable: IntPtr(2)}}
		merged := Merge(local, nil)
		*merged[0].MaxAvailable = 7
		merged[0].Quantity = 2
		assert.Equal(t, 2, *local[0].MaxAvailable)
		assert.Equal(t, 1, local[0].Quantity)
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Empty(t, Merge(nil, nil))
	})
}

func TestNormalize(t *testing.T) {
	lines := Normalize([]Line{
		{ProductID: "p1", Quantity: -4},
		{ProductID: "p2", Quantity: 5, MaxAvailable: IntPtr(-1)},
		{ProductID: "p1", Quantity: 8},
	})
	require.Len(t, lines, 2)
	assert.Equal(t, 0, lines[0].Quantity)
	assert.Equal(t, 0, lines[1].Quantity)
	assert.Equal(t, 0, *lines[1].MaxAvailable)
}

func TestKey(t *testing.T) {
	t.Run("matches on product and variant", func(t *testing.T) {
		assert.True(t, KeyOf("p1", "").Matches(KeyOf(" p1 ", "")))
		assert.False(t, KeyOf("p1", "").Matches(KeyOf("p1", "v1")))
		assert.False(t, KeyOf("p1", "v1").Matches(KeyOf("p2", "v1")))
	})

	t.Run("string round trip", func(t *testing.T) {
		for _, k := range []Key{KeyOf("p1", ""), KeyOf("p1", "red-m")} {
			parsed, err := ParseKey(k.String())
			require.NoError(t, err)
			assert.Equal(t, k, parsed)
		}
		_, err := ParseKey("/v1")
		assert.True(t, errors.Is(err, ErrInvalidKey))
	})

	t.Run("MustKey panics without a product", func(t *testing.T) {
		assert.Panics(t, func() { MustKey("", "v1") })
		assert.NotPanics(t, func() { MustKey("p1", "") })
	})
}

func TestScope(t *testing.T) {
	assert.True(t, GuestScope.IsGuest())
	assert.Equal(t, "cart-guest", GuestScope.StorageKey())
	assert.Equal(t, "cart-u1", UserScope("u1").StorageKey())
	assert.Equal(t, GuestScope, UserScope(""))
	assert.Equal(t, GuestScope, ParseScope("guest"))
	assert.Equal(t, UserScope("u1"), ParseScope(UserScope("u1").String()))
	assert.NotEqual(t, GuestScope.StorageKey(), UserScope("u2").StorageKey())

	t.Run("user named guest has its own partition", func(t *testing.T) {
		u := UserScope("guest")
		assert.True(t, u.IsUser())
		assert.NotEqual(t, GuestScope, u)
		assert.Equal(t, "cart-~guest", u.StorageKey())
		assert.NotEqual(t, GuestScope.StorageKey(), u.StorageKey())
		assert.Equal(t, u, ParseScope(u.String()))
		assert.Equal(t, GuestScope, ParseScope("guest"))
	})

	t.Run("round trip stays injective", func(t *testing.T) {
		ids := []string{"guest", "~guest", "~~guest", "~", "u1", "guests"}
		seen := map[string]string{GuestScope.StorageKey(): ""}
		for _, id := range ids {
			s := UserScope(id)
			assert.Equal(t, s, ParseScope(s.String()), id)
			prev, dup := seen[s.StorageKey()]
			assert.False(t, dup, "%q collides with %q", id, prev)
			seen[s.StorageKey()] = id
		}
	})
}

func TestStockResolver_Resolve(t *testing.T) {
	catalog := stubCatalog{
		"p1": {
			ID:         "p1",
			Variants:   []Variant{{ID: "v1", Quantity: IntPtr(2)}, {ID: "v2"}},
			TotalStock: IntPtr(7),
		},
		"p2": {ID: "p2"},
	}
	r := NewStockResolver(catalog)

	tests := []struct {
		name string
		in   LineInput
		want *int
	}{
		{"explicit ceiling", LineInput{ProductID: "p1", VariantID: "v1", MaxAvailable: IntPtr(9)}, IntPtr(9)},
		{"variant quantity", LineInput{ProductID: "p1", VariantID: "v1"}, IntPtr(2)},
		{"variant without quantity uses product total", LineInput{ProductID: "p1", VariantID: "v2"}, IntPtr(7)},
		{"product total", LineInput{ProductID: "p1"}, IntPtr(7)},
		{"no information", LineInput{ProductID: "p2"}, nil},
		{"unknown product", LineInput{ProductID: "p3"}, nil},
		{"negative explicit ceiling", LineInput{ProductID: "p3", MaxAvailable: IntPtr(-2)}, IntPtr(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.in))
		})
	}

	t.Run("result does not alias the catalog", func(t *testing.T) {
		got := r.Resolve(LineInput{ProductID: "p1", VariantID: "v1"})
		*got = 100
		assert.Equal(t, 2, *catalog["p1"].Variants[0].Quantity)
	})

	t.Run("nil catalog resolves explicit ceilings only", func(t *testing.T) {
		bare := NewStockResolver(nil)
		assert.Nil(t, bare.Resolve(LineInput{ProductID: "p1"}))
		assert.Equal(t, IntPtr(1), bare.Resolve(LineInput{ProductID: "p1", MaxAvailable: IntPtr(1)}))
	})
}

func TestLine_JSON(t *testing.T) {
	t.Run("empty variant encodes as null", func(t *testing.T) {
		data, err := json.Marshal(Line{ProductID: "p1", Quantity: 1, UnitPrice: price("10")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"productId":"p1","variantId":null,"quantity":1,"unitPrice":"10","listPrice":null,"maxAvailable":null}`, string(data))
	})

	t.Run("decodes numeric prices and variants", func(t *testing.T) {
		var l Line
		err := json.Unmarshal([]byte(`{"productId":"p1","variantId":"v1","quantity":2,"unitPrice":9.5,"listPrice":12,"maxAvailable":4,"name":"Tee"}`), &l)
		require.NoError(t, err)
		assert.Equal(t, KeyOf("p1", "v1"), l.Key())
		assert.True(t, l.UnitPrice.Equal(decimal.RequireFromString("9.5")))
		assert.True(t, l.ListPrice.Valid)
		assert.Equal(t, 4, *l.MaxAvailable)
		assert.Equal(t, "19", l.Subtotal().String())
	})
}

func TestDocument(t *testing.T) {
	lines := []Line{
		{ProductID: "p1", Quantity: 2, UnitPrice: price("10"), MaxAvailable: IntPtr(5)},
		{ProductID: "p2", VariantID: "v1", Quantity: 1, UnitPrice: price("3.5")},
	}

	data, err := EncodeDocument(lines)
	require.NoError(t, err)
	decoded, err := DecodeDocument(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, KeyOf("p2", "v1"), decoded[1].Key())
	assert.Equal(t, 5, *decoded[0].MaxAvailable)

	t.Run("empty cart encodes an empty list", func(t *testing.T) {
		data, err := EncodeDocument(nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":1,"cart":[]}`, string(data))
		decoded, err := DecodeDocument(data)
		require.NoError(t, err)
		assert.NotNil(t, decoded)
		assert.Empty(t, decoded)
	})

	t.Run("accepts a bare array", func(t *testing.T) {
		decoded, err := DecodeDocument([]byte(`[{"productId":"p1","variantId":null,"quantity":1}]`))
		require.NoError(t, err)
		assert.Len(t, decoded, 1)
	})

	t.Run("rejects malformed documents", func(t *testing.T) {
		for _, raw := range []string{"", "{", `{"version":99,"cart":[]}`} {
			_, err := DecodeDocument([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidDocument, raw)
		}
	})
}
