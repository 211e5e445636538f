package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
)

// ValueKind identifies the shape of a JSON value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "unknown"
}

// Operand is the right-hand side of a predicate: a Value or a NullKind.
type Operand interface {
	isOperand()
}

// Value is a JSON value.
type Value interface {
	Operand
	Kind() ValueKind
}

// Null is the JSON literal null.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number is a JSON number kept as its decimal text.
type Number string

// String is a JSON string.
type String string

// Array is a JSON array.
type Array []Value

// Object is a JSON object. Member order is preserved.
type Object []Member

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value Value
}

func (Null) Kind() ValueKind   { return KindNull }
func (Bool) Kind() ValueKind   { return KindBool }
func (Number) Kind() ValueKind { return KindNumber }
func (String) Kind() ValueKind { return KindString }
func (Array) Kind() ValueKind  { return KindArray }
func (Object) Kind() ValueKind { return KindObject }

func (Null) isOperand()   {}
func (Bool) isOperand()   {}
func (Number) isOperand() {}
func (String) isOperand() {}
func (Array) isOperand()  {}
func (Object) isOperand() {}

// Get returns the value of the first member named key.
func (o Object) Get(key string) (Value, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

var numberPattern = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// Valid reports whether n is a well-formed JSON number.
func (n Number) Valid() bool {
	return numberPattern.MatchString(string(n))
}

// Float returns the number as a float64.
func (n Number) Float() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

func (v Null) MarshalJSON() ([]byte, error)   { return Encode(v) }
func (v Bool) MarshalJSON() ([]byte, error)   { return Encode(v) }
func (v Number) MarshalJSON() ([]byte, error) { return Encode(v) }
func (v String) MarshalJSON() ([]byte, error) { return Encode(v) }
func (v Array) MarshalJSON() ([]byte, error)  { return Encode(v) }
func (v Object) MarshalJSON() ([]byte, error) { return Encode(v) }

// Encode renders v as compact JSON, keeping object member order.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustEncode is like Encode but panics on error.
func MustEncode(v Value) string {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(t)))
	case Number:
		if !t.Valid() {
			return fmt.Errorf("invalid JSON number %q", string(t))
		}
		buf.WriteString(string(t))
	case String:
		return writeString(buf, string(t))
	case Array:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, m.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown JSON value %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Decode parses a single JSON document, keeping object member order and
// number text.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("decode JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("decode JSON: trailing data after document")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t), nil
	case string:
		return String(t), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Array{}
			for dec.More() {
				e, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, e)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		case '{':
			obj := Object{}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key is %T", kt)
				}
				e, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj = append(obj, Member{Key: key, Value: e})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// FromGo converts a Go value produced by encoding/json (or built by hand)
// into a Value. Map keys are sorted since Go maps carry no order.
func FromGo(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return Number(t), nil
	case int:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int8:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int16:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int32:
		return Number(strconv.FormatInt(int64(t), 10)), nil
	case int64:
		return Number(strconv.FormatInt(t, 10)), nil
	case uint:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint32:
		return Number(strconv.FormatUint(uint64(t), 10)), nil
	case uint64:
		return Number(strconv.FormatUint(t, 10)), nil
	case float32:
		return floatNumber(float64(t))
	case float64:
		return floatNumber(t)
	case []any:
		arr := make(Array, 0, len(t))
		for _, e := range t {
			ev, err := FromGo(e)
			if err != nil {
				return nil, err
			}
			arr = append(arr, ev)
		}
		return arr, nil
	case []string:
		arr := make(Array, 0, len(t))
		for _, e := range t {
			arr = append(arr, String(e))
		}
		return arr, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := make(Object, 0, len(t))
		for _, k := range keys {
			ev, err := FromGo(t[k])
			if err != nil {
				return nil, err
			}
			obj = append(obj, Member{Key: k, Value: ev})
		}
		return obj, nil
	}
	return nil, fmt.Errorf("cannot convert %T to a JSON value", v)
}

func floatNumber(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%v is not representable in JSON", f)
	}
	return Number(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// ToGo converts v into plain Go values (map[string]any, []any, json.Number, ...).
func ToGo(v Value) any {
	switch t := v.(type) {
	case Bool:
		return bool(t)
	case Number:
		return json.Number(t)
	case String:
		return string(t)
	case Array:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToGo(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(t))
		for _, m := range t {
			out[m.Key] = ToGo(m.Value)
		}
		return out
	}
	return nil
}
