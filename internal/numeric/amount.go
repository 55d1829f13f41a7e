package numeric

import (
	"bytes"
	"encoding/json"
	"math"
)

// Amount is a float64 that decodes from any JSON value through ToNumber, so
// a quoted or malformed figure reads as its coerced value instead of failing
// the whole document.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	*a = Amount(decodeLenient(data))
	return nil
}

// Float64 returns the amount as a plain float64.
func (a Amount) Float64() float64 { return float64(a) }

// Count is an integer counter decoded like Amount. Fractions are truncated.
type Count int

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	f := decodeLenient(data)
	if f > math.MaxInt32 || f < math.MinInt32 {
		f = 0
	}
	*c = Count(int(f))
	return nil
}

// Int returns the count as a plain int.
func (c Count) Int() int { return int(c) }

func decodeLenient(data []byte) float64 {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0
	}
	return ToNumber(v)
}
