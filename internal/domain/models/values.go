package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Num is an optional number from the provider. Nulls, empty strings and
// "N/A" decode to an invalid Num; numeric strings are accepted.
type Num struct {
	Value float64
	Valid bool
}

// NumOf returns a valid Num.
func NumOf(v float64) Num { return Num{Value: v, Valid: true} }

// Get returns the value and whether it is known.
func (n Num) Get() (float64, bool) { return n.Value, n.Valid }

// NonZero reports whether n is known and not zero.
func (n Num) NonZero() bool { return n.Valid && n.Value != 0 }

func (n Num) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = Num{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(strings.TrimSuffix(s, "%"), ",", ""))
		if s == "" || strings.EqualFold(s, "N/A") {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		*n = NumOf(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = NumOf(v)
	return nil
}

// Text is a display string the provider may send as a number.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(string(b))
	return nil
}
