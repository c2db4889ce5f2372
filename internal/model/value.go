package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the scalar interpretation of a Value.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
	KindMonth
	KindPercent
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindMonth:
		return "month"
	case KindPercent:
		return "percent"
	default:
		return "unknown"
	}
}

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// Value is one scalar produced by the extractor. The wire form is always a
// string; the interpretation is decided once, when the value enters the
// system, so consumers never re-parse. Marshaling emits the original raw
// string, which keeps documents round-trip stable.
type Value struct {
	raw  string
	kind Kind
	num  float64
	date time.Time
}

// ParseValue classifies a raw extractor string.
func ParseValue(s string) Value {
	v := Value{raw: s, kind: KindString}

	if t, err := time.Parse(dateLayout, s); err == nil {
		v.kind = KindDate
		v.date = t
		return v
	}
	if t, err := time.Parse(monthLayout, s); err == nil {
		v.kind = KindMonth
		v.date = t
		return v
	}
	if strings.HasSuffix(s, "%") {
		if n, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
			v.kind = KindPercent
			v.num = n / 100
			return v
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		v.kind = KindNumber
		v.num = n
		return v
	}
	return v
}

// String returns the raw extractor string.
func (v Value) String() string { return v.raw }

// Kind returns the parsed interpretation.
func (v Value) Kind() Kind { return v.kind }

// Number returns the numeric interpretation. Percentages are returned as a
// fraction (22% -> 0.22).
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber || v.kind == KindPercent
}

// Date returns the date interpretation (day granularity).
func (v Value) Date() (time.Time, bool) {
	return v.date, v.kind == KindDate
}

// Month returns the year-month interpretation.
func (v Value) Month() (time.Time, bool) {
	return v.date, v.kind == KindMonth
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = ParseValue(s)
	return nil
}
