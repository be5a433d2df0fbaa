package cart

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/erp/storefront/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog map[string]*Product

func (c stubCatalog) Product(id string) (*Product, bool) {
	p, ok := c[id]
	return p, ok
}

type recordingDrainer struct {
	mu      sync.Mutex
	intents []Intent
}

func (d *recordingDrainer) Drain(_ context.Context, intents []Intent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.intents = append(d.intents, intents...)
}

func (d *recordingDrainer) all() []Intent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Intent(nil), d.intents...)
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestStore_Add(t *testing.T) {
	t.Run("adds a new line to an empty cart", func(t *testing.T) {
		s := NewStore(GuestScope)

		ok := s.Add(LineInput{ProductID: "p1", Quantity: 1, UnitPrice: price("10"), MaxAvailable: IntPtr(5)})

		require.True(t, ok)
		lines := s.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, 1, lines[0].Quantity)
		assert.Equal(t, 5, *lines[0].MaxAvailable)
		assert.Equal(t, "10", s.Total().Amount().String())
		assert.Equal(t, 1, s.ItemCount())
	})

	t.Run("increments an existing line and clamps to stock", func(t *testing.T) {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1", Quantity: 1, UnitPrice: price("10"), MaxAvailable: IntPtr(5)})

		s.Add(LineInput{ProductID: "p1", Quantity: 10})

		lines := s.Lines()
		require.Len(t, lines, 1)
		assert.Equal(t, 5, lines[0].Quantity)
	})

	t.Run("zero quantity defaults to one", func(t *testing.T) {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1"})
		s.Add(LineInput{ProductID: "p1"})
		assert.Equal(t, 2, s.ItemCount())
	})

	t.Run("rejects invalid input silently", func(t *testing.T) {
		s := NewStore(GuestScope)
		assert.False(t, s.Add(LineInput{ProductID: ""}))
		assert.False(t, s.Add(LineInput{ProductID: "  "}))
		assert.False(t, s.Add(LineInput{ProductID: "p1", Quantity: -2}))
		assert.True(t, s.IsEmpty())
		assert.Equal(t, 0, s.Outbox().Len())
	})

	t.Run("unknown stock never clamps", func(t *testing.T) {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1", Quantity: 500})
		assert.Equal(t, 500, s.ItemCount())
	})

	t.Run("increment saturates instead of wrapping", func(t *testing.T) {
		s := NewStore(GuestScope)
		require.True(t, s.Add(LineInput{ProductID: "p1", Quantity: math.MaxInt}))
		require.True(t, s.Add(LineInput{ProductID: "p1", Quantity: 1}))
		require.True(t, s.Add(LineInput{ProductID: "p2", Quantity: 3}))

		line, ok := s.Line(KeyOf("p1", ""))
		require.True(t, ok)
		assert.Equal(t, math.MaxInt, line.Quantity)
		assert.Equal(t, math.MaxInt, s.ItemCount())
	})

	t.Run("out of stock new line is not appended", func(t *testing.T) {
		s := NewStore(GuestScope)
		assert.False(t, s.Add(LineInput{ProductID: "p1", MaxAvailable: IntPtr(0)}))
		assert.False(t, s.Contains(KeyOf("p1", "")))
	})

	t.Run("variants distinguish lines", func(t *testing.T) {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1", VariantID: "red"})
		s.Add(LineInput{ProductID: "p1", VariantID: "blue"})
		s.Add(LineInput{ProductID: "p1"})
		assert.Equal(t, 3, s.Len())
		assert.True(t, s.Contains(KeyOf("p1", "red")))
		assert.True(t, s.Contains(KeyOf("p1", "")))
	})

	t.Run("existing price snapshot is kept", func(t *testing.T) {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1", UnitPrice: price("10")})
		s.Add(LineInput{ProductID: "p1", UnitPrice: price("12")})
		line, ok := s.Line(KeyOf("p1", ""))
		require.True(t, ok)
		assert.True(t, line.UnitPrice.Equal(price("10")))
	})
}

func TestStore_AddWithCatalog(t *testing.T) {
	catalog := stubCatalog{
		"shirt": {
			ID:    "shirt",
			Name:  "Oxford Shirt",
			Price: price("39.90"),
			Variants: []Variant{
				{ID: "shirt-m-blue", Color: "Blue", Size: "M", Quantity: IntPtr(2)},
				{ID: "shirt-l-blue", Color: "Blue", Size: "L"},
			},
			TotalStock: IntPtr(9),
		},
		"mug":    {ID: "mug", Name: "Mug", Price: price("8"), TotalStock: IntPtr(3)},
		"poster": {ID: "poster", Name: "Poster", HasVariants: true},
	}
	s := NewStore(GuestScope, WithCatalog(catalog))

	t.Run("requires a variant when the product declares them", func(t *testing.T) {
		assert.False(t, s.Add(LineInput{ProductID: "shirt"}))
		assert.False(t, s.Add(LineInput{ProductID: "shirt", VariantID: "shirt-xl-red"}))
		assert.False(t, s.Add(LineInput{ProductID: "poster"}))
		assert.True(t, s.Add(LineInput{ProductID: "poster", VariantID: "a2"}))
	})

	t.Run("variant stock takes precedence over product stock", func(t *testing.T) {
		s.Add(LineInput{ProductID: "shirt", VariantID: "shirt-m-blue", Quantity: 5})
		line, ok := s.Line(KeyOf("shirt", "shirt-m-blue"))
		require.True(t, ok)
		assert.Equal(t, 2, line.Quantity)
		assert.Equal(t, "Oxford Shirt", line.Name)
		assert.Equal(t, "M", line.Size)
		assert.True(t, line.UnitPrice.Equal(price("39.90")))
	})

	t.Run("falls back to product stock when variant quantity is unknown", func(t *testing.T) {
		s.Add(LineInput{ProductID: "shirt", VariantID: "shirt-l-blue", Quantity: 20})
		line, _ := s.Line(KeyOf("shirt", "shirt-l-blue"))
		assert.Equal(t, 9, line.Quantity)
	})

	t.Run("explicit ceiling wins", func(t *testing.T) {
		s.Add(LineInput{ProductID: "mug", Quantity: 6, MaxAvailable: IntPtr(4)})
		line, _ := s.Line(KeyOf("mug", ""))
		assert.Equal(t, 4, line.Quantity)
	})
}

func TestStore_Remove(t *testing.T) {
	s := NewStore(GuestScope)
	s.Add(LineInput{ProductID: "p1"})
	s.Add(LineInput{ProductID: "p2"})
	before := s.Lines()

	t.Run("removing an absent key is a no-op", func(t *testing.T) {
		assert.False(t, s.Remove(KeyOf("p3", "")))
		assert.Equal(t, before, s.Lines())
	})

	t.Run("removes the matching line only", func(t *testing.T) {
		assert.True(t, s.Remove(KeyOf("p1", "")))
		lines := s.Lines()
		assert.Len(t, lines, len(before)-1)
		assert.Equal(t, -1, IndexOf(lines, KeyOf("p1", "")))
		assert.Equal(t, "p2", lines[0].ProductID)
	})

	t.Run("malformed key panics", func(t *testing.T) {
		assert.PanicsWithValue(t, ErrInvalidKey, func() { s.Remove(Key{}) })
	})
}

func TestStore_SetQuantity(t *testing.T) {
	seed := func() *Store {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1", Quantity: 2, MaxAvailable: IntPtr(4)})
		s.Add(LineInput{ProductID: "p2", Quantity: 1})
		return s
	}

	t.Run("clamps to the stock ceiling", func(t *testing.T) {
		s := seed()
		assert.True(t, s.SetQuantity(KeyOf("p1", ""), 40))
		line, _ := s.Line(KeyOf("p1", ""))
		assert.Equal(t, 4, line.Quantity)
	})

	t.Run("absent key is a no-op", func(t *testing.T) {
		s := seed()
		assert.False(t, s.SetQuantity(KeyOf("p9", ""), 3))
	})

	t.Run("zero is equivalent to remove", func(t *testing.T) {
		a, b := seed(), seed()
		a.SetQuantity(KeyOf("p1", ""), 0)
		b.Remove(KeyOf("p1", ""))
		assert.Equal(t, b.Lines(), a.Lines())

		c := seed()
		c.SetQuantity(KeyOf("p1", ""), -3)
		assert.Equal(t, b.Lines(), c.Lines())
	})
}

func TestStore_UpdateStock(t *testing.T) {
	s := NewStore(GuestScope)
	s.Add(LineInput{ProductID: "p1", Quantity: 6})

	assert.True(t, s.UpdateStock(KeyOf("p1", ""), IntPtr(2)))
	line, _ := s.Line(KeyOf("p1", ""))
	assert.Equal(t, 2, line.Quantity)

	assert.True(t, s.UpdateStock(KeyOf("p1", ""), IntPtr(0)))
	line, ok := s.Line(KeyOf("p1", ""))
	require.True(t, ok)
	assert.Equal(t, 0, line.Quantity)

	assert.True(t, s.UpdateStock(KeyOf("p1", ""), nil))
	line, _ = s.Line(KeyOf("p1", ""))
	assert.Nil(t, line.MaxAvailable)

	assert.False(t, s.UpdateStock(KeyOf("p2", ""), IntPtr(1)))
}

func TestStore_Clear(t *testing.T) {
	d := &recordingDrainer{}
	s := NewStore(UserScope("u1"), WithDrainer(d))
	s.Add(LineInput{ProductID: "p1"})

	s.Clear()
	s.Clear()

	assert.True(t, s.IsEmpty())
	intents := d.all()
	require.Len(t, intents, 3)
	for _, in := range intents[1:] {
		assert.Empty(t, in.Lines)
		assert.Equal(t, UserScope("u1"), in.Scope)
	}
}

func TestStore_Outbox(t *testing.T) {
	t.Run("intents accumulate without a drainer", func(t *testing.T) {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1"})
		s.Add(LineInput{ProductID: "p1"})
		s.Remove(KeyOf("p1", ""))

		pending := s.Outbox().Pending()
		require.Len(t, pending, 3)
		assert.Equal(t, 1, pending[0].Lines[0].Quantity)
		assert.Equal(t, 2, pending[1].Lines[0].Quantity)
		assert.Empty(t, pending[2].Lines)
		for _, in := range pending {
			assert.Equal(t, IntentPersist, in.Kind)
			assert.Equal(t, GuestScope, in.Scope)
		}
	})

	t.Run("drain delivers queued intents in order", func(t *testing.T) {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1"})
		s.Add(LineInput{ProductID: "p2"})

		d := &recordingDrainer{}
		s.SetDrainer(d)
		s.Drain(context.Background())

		intents := d.all()
		require.Len(t, intents, 2)
		assert.Len(t, intents[0].Lines, 1)
		assert.Len(t, intents[1].Lines, 2)
		assert.Equal(t, 0, s.Outbox().Len())
	})

	t.Run("snapshots do not alias store state", func(t *testing.T) {
		s := NewStore(GuestScope)
		s.Add(LineInput{ProductID: "p1", MaxAvailable: IntPtr(3)})
		s.UpdateStock(KeyOf("p1", ""), IntPtr(1))

		pending := s.Outbox().Pending()
		assert.Equal(t, 3, *pending[0].Lines[0].MaxAvailable)
	})
}

func TestStore_Hold(t *testing.T) {
	t.Run("held scope stays queued until released", func(t *testing.T) {
		d := &recordingDrainer{}
		s := NewStore(UserScope("u1"), WithDrainer(d))
		s.Hold(UserScope("u1"))

		s.Add(LineInput{ProductID: "p1"})
		s.Add(LineInput{ProductID: "p2"})
		assert.Empty(t, d.all())
		assert.Equal(t, 2, s.Outbox().Len())
		assert.True(t, s.IsHeld(UserScope("u1")))

		s.Release(UserScope("u1"))
		s.Drain(context.Background())

		intents := d.all()
		require.Len(t, intents, 2)
		assert.Len(t, intents[1].Lines, 2)
		assert.False(t, s.IsHeld(UserScope("u1")))
	})

	t.Run("other scopes keep draining", func(t *testing.T) {
		d := &recordingDrainer{}
		s := NewStore(UserScope("u1"), WithDrainer(d))
		s.Hold(UserScope("u1"))
		s.Add(LineInput{ProductID: "p1"})

		s.Load(GuestScope, nil)
		s.Add(LineInput{ProductID: "g1"})

		intents := d.all()
		require.Len(t, intents, 1)
		assert.Equal(t, GuestScope, intents[0].Scope)
		assert.Equal(t, 1, s.Outbox().Len())
	})

	t.Run("discard drops queued intents", func(t *testing.T) {
		d := &recordingDrainer{}
		s := NewStore(UserScope("u1"), WithDrainer(d))
		s.Hold(UserScope("u1"))
		s.Add(LineInput{ProductID: "p1"})
		s.Clear()

		assert.Equal(t, 2, s.Discard(UserScope("u1")))
		s.Drain(context.Background())
		assert.Empty(t, d.all())
		assert.False(t, s.IsHeld(UserScope("u1")))
	})
}

func TestStore_FoldLeavesDrainToCaller(t *testing.T) {
	d := &recordingDrainer{}
	s := NewStore(UserScope("u1"), WithDrainer(d))

	merged, ok := s.Fold(UserScope("u1"), []Line{{ProductID: "p1", Quantity: 2}})
	require.True(t, ok)
	assert.Len(t, merged, 1)
	assert.Empty(t, d.all())
	assert.Equal(t, 1, s.Outbox().Len())

	s.Drain(context.Background())
	require.Len(t, d.all(), 1)
}

func TestStore_LoadAndReconcile(t *testing.T) {
	s := NewStore(GuestScope)
	s.Load(UserScope("u1"), []Line{
		{ProductID: "p1", Quantity: 9, MaxAvailable: IntPtr(3)},
		{ProductID: "p1", Quantity: 1},
		{ProductID: "", Quantity: 4},
	})

	assert.Equal(t, UserScope("u1"), s.Scope())
	assert.Equal(t, 3, s.ItemCount())
	assert.Equal(t, 0, s.Outbox().Len())

	merged, ok := s.Reconcile(UserScope("u1"), []Line{{ProductID: "p1", Quantity: 7}, {ProductID: "p2", Quantity: 1}})
	require.True(t, ok)
	require.Len(t, merged, 2)
	assert.Equal(t, 3, merged[0].Quantity)
	assert.Equal(t, 1, s.Outbox().Len())

	_, ok = s.Reconcile(GuestScope, []Line{{ProductID: "p3", Quantity: 1}})
	assert.False(t, ok)
	assert.False(t, s.Contains(KeyOf("p3", "")))
}

func TestStore_Total(t *testing.T) {
	s := NewStore(GuestScope)
	s.Add(LineInput{ProductID: "p1", Quantity: 3, UnitPrice: price("3.335")})
	s.Add(LineInput{ProductID: "p2", Quantity: 1, UnitPrice: price("0.10")})
	assert.Equal(t, "10.11", s.Total().Amount().String())
	assert.Equal(t, valueobject.USD, s.Total().Currency())

	yen := NewStore(GuestScope, WithCurrency(valueobject.JPY))
	yen.Add(LineInput{ProductID: "p1", Quantity: 3, UnitPrice: price("33.5")})
	assert.Equal(t, "101", yen.Total().Amount().String())
}

// TestStore_Invariants drives random mutation sequences and checks the
// no-duplicate and clamp invariants after every step.
func TestStore_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	products := []string{"p1", "p2", "p3"}
	variants := []string{"", "v1", "v2"}
	randomKey := func() Key {
		return KeyOf(products[rng.Intn(len(products))], variants[rng.Intn(len(variants))])
	}

	for run := 0; run < 50; run++ {
		s := NewStore(GuestScope)
		for step := 0; step < 100; step++ {
			k := randomKey()
			switch rng.Intn(4) {
			case 0:
				in := LineInput{ProductID: k.ProductID, VariantID: k.VariantID, Quantity: rng.Intn(8) - 1}
				if rng.Intn(2) == 0 {
					in.MaxAvailable = IntPtr(rng.Intn(6))
				}
				s.Add(in)
			case 1:
				s.Remove(k)
			case 2:
				s.SetQuantity(k, rng.Intn(12)-2)
			case 3:
				if rng.Intn(2) == 0 {
					s.UpdateStock(k, IntPtr(rng.Intn(5)))
				} else {
					s.UpdateStock(k, nil)
				}
			}

			seen := map[Key]bool{}
			for _, l := range s.Lines() {
				require.False(t, seen[l.Key()], "duplicate key %s", l.Key())
				seen[l.Key()] = true
				require.GreaterOrEqual(t, l.Quantity, 0)
				if l.MaxAvailable != nil {
					require.LessOrEqual(t, l.Quantity, *l.MaxAvailable)
				}
			}
		}
	}
}

func TestStore_ConcurrentMutations(t *testing.T) {
	d := &recordingDrainer{}
	s := NewStore(GuestScope, WithDrainer(d))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				s.Add(LineInput{ProductID: "p1"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, s.ItemCount())
	intents := d.all()
	require.Len(t, intents, 500)
	for i, in := range intents {
		assert.Equal(t, i+1, in.Lines[0].Quantity)
	}
}
