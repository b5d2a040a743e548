package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueKind tags the outcome of parsing a scraped token.
type ValueKind int

const (
	// KindAbsent marks a missing value (empty cell or placeholder dash)
	KindAbsent ValueKind = iota
	// KindInt is a parsed integer
	KindInt
	// KindFloat is a parsed floating point number
	KindFloat
	// KindText is a token that could not be parsed and keeps its original text
	KindText
)

// String returns the kind name used in logs
func (k ValueKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	default:
		return "absent"
	}
}

// Value is a typed scraped value: Parsed (int or float), Unparsed (text) or Absent.
// The zero value is Absent.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Text  string
}

// Absent returns the absent value
func Absent() Value { return Value{} }

// Int returns a parsed integer value
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Float returns a parsed float value
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// Text returns an unparsed value that keeps the original text
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// IsAbsent reports whether the value carries nothing
func (v Value) IsAbsent() bool { return v.Kind == KindAbsent }

// IsNumber reports whether the value was parsed to a number
func (v Value) IsNumber() bool { return v.Kind == KindInt || v.Kind == KindFloat }

// Number returns the numeric value as float64
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	}
	return 0, false
}

// AsFloat promotes an integer value to float, leaving other kinds untouched
func (v Value) AsFloat() Value {
	if v.Kind == KindInt {
		return Float(float64(v.Int))
	}
	return v
}

// Interface returns the value as a plain Go value (nil, int64, float64 or string)
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindText:
		return v.Text
	}
	return nil
}

func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindText:
		return v.Text
	}
	return ""
}

// ValueOf converts a driver or JSON value into a Value
func ValueOf(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Absent()
	case Value:
		return t
	case int:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case []byte:
		return Text(string(t))
	case string:
		return Text(t)
	case bool:
		if t {
			return Int(1)
		}
		return Int(0)
	default:
		return Text(fmt.Sprintf("%v", t))
	}
}

// MarshalJSON encodes absent as null, numbers as numbers and text as a string.
// Floats always carry a fraction so they decode back as floats.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.Int, 10)), nil
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return []byte("null"), nil
		}
		s := strconv.FormatFloat(v.Float, 'f', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	case KindText:
		return json.Marshal(v.Text)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes null, numbers and strings. Numbers written without a
// fraction or exponent decode as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Absent()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = ValueOf(b)
		return nil
	}

	raw := string(data)
	if !strings.ContainsAny(raw, ".eE") {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			*v = Int(n)
			return nil
		}
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid value %s: %w", raw, err)
	}
	*v = Float(f)
	return nil
}
