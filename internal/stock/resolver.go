package stock

import (
	"encoding/json"
	"strings"
)

// Quantity counts sellable units of a product at a store.
type Quantity = int64

// Record is a raw catalog product record. The catalog collaborator is not
// consistent about where it keeps stock figures, so records are handled as
// loose JSON objects and probed shape by shape.
type Record = map[string]any

// Strategy extracts an availability figure from a record for one store.
// The boolean reports whether the strategy could determine a value at all.
type Strategy func(rec Record, storeID string) (Quantity, bool)

// strategies are tried in order; the first determinable value wins.
var strategies = []Strategy{
	flatQuantity,
	storeArray,
	storeMap,
	inventoryArray,
}

// Resolve determines the remaining sellable quantity of a product at a store.
// ok is false when no known shape applies, which means "indeterminate", not
// zero; callers choose a policy for that case.
func Resolve(rec Record, storeID string) (Quantity, bool) {
	if rec == nil {
		return 0, false
	}
	for _, s := range strategies {
		if qty, ok := s(rec, storeID); ok {
			if qty < 0 {
				qty = 0
			}
			return qty, true
		}
	}
	return 0, false
}

// AllowOversell reports whether the record explicitly permits selling below
// zero stock.
func AllowOversell(rec Record) bool {
	v, ok := rec["allowOversell"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Parse decodes a raw catalog payload into a Record.
func Parse(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// flatQuantity handles records carrying a single global quantity field with
// no per-store breakdown.
func flatQuantity(rec Record, _ string) (Quantity, bool) {
	return asQuantity(rec["quantity"])
}

// storeArray handles `stocks: [{storeId, quantity}]`.
func storeArray(rec Record, storeID string) (Quantity, bool) {
	return scanEntries(rec["stocks"], storeID, "storeId", "quantity")
}

// storeMap handles `stockByStore: {<storeId>: <quantity>}`.
func storeMap(rec Record, storeID string) (Quantity, bool) {
	m, ok := rec["stockByStore"].(map[string]any)
	if !ok {
		return 0, false
	}
	for key, v := range m {
		if strings.EqualFold(key, storeID) {
			return asQuantity(v)
		}
	}
	return 0, false
}

// inventoryArray handles the older `inventory: [{store, qty}]` naming.
func inventoryArray(rec Record, storeID string) (Quantity, bool) {
	return scanEntries(rec["inventory"], storeID, "store", "qty")
}

func scanEntries(v any, storeID, idField, qtyField string) (Quantity, bool) {
	entries, ok := v.([]any)
	if !ok {
		return 0, false
	}
	for _, e := range entries {
		entry, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id, ok := entry[idField].(string)
		if !ok || !strings.EqualFold(id, storeID) {
			continue
		}
		return asQuantity(entry[qtyField])
	}
	return 0, false
}

func asQuantity(v any) (Quantity, bool) {
	switch n := v.(type) {
	case float64:
		return Quantity(n), true
	case int64:
		return n, true
	case int:
		return Quantity(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
