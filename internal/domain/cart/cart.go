package cart

import (
	"github.com/erp/storefront/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Merge returns the lines of local followed by those of server, keeping the
// first occurrence of each key. Local lines therefore win on conflict, for
// every field including MaxAvailable. The result shares no memory with the
// inputs.
func Merge(local, server []Line) []Line {
	merged := make([]Line, 0, len(local)+len(server))
	seen := make(map[Key]struct{}, len(local)+len(server))
	for _, src := range [][]Line{local, server} {
		for _, l := range src {
			k := l.Key()
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, l.Clone())
		}
	}
	return merged
}

// IndexOf returns the position of the line matching key, or -1
func IndexOf(lines []Line, key Key) int {
	for i := range lines {
		if lines[i].Key().Matches(key) {
			return i
		}
	}
	return -1
}

// ItemCount is the sum of quantities
func ItemCount(lines []Line) int {
	n := 0
	for _, l := range lines {
		n = addQuantity(n, l.Quantity)
	}
	return n
}

// Total is the sum of UnitPrice * Quantity rounded to the currency's minor unit
func Total(lines []Line, currency valueobject.Currency) valueobject.Money {
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	total, _ := valueobject.NewMoney(sum, currency)
	return total.RoundToMinorUnit()
}

// Normalize drops lines without a product, clamps quantities into
// [0, MaxAvailable] and collapses duplicate keys first-wins. It is applied to
// every cart that enters a Store from outside.
func Normalize(lines []Line) []Line {
	valid := make([]Line, 0, len(lines))
	for _, l := range lines {
		if l.ProductID == "" {
			continue
		}
		if l.MaxAvailable != nil && *l.MaxAvailable < 0 {
			l.MaxAvailable = IntPtr(0)
		}
		l.Quantity = clamp(l.Quantity, l.MaxAvailable)
		valid = append(valid, l)
	}
	return Merge(valid, nil)
}
