// Package numeric converts untrusted backend values into amounts.
package numeric

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ToNumber converts v into a finite float64.
//
// Finite numbers are returned unchanged and numeric strings are parsed.
// Everything else (nil, NaN, infinities, booleans, unparseable text, other
// types) yields 0. It never fails.
func ToNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case json.Number:
		return parseString(n.String())
	case string:
		return parseString(n)
	case *string:
		if n == nil {
			return 0
		}
		return parseString(*n)
	case decimal.Decimal:
		return finite(n.InexactFloat64())
	default:
		return 0
	}
}

func parseString(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return finite(d.InexactFloat64())
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
