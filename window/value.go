package window

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
)

type FieldType uint8

const (
	FieldNull FieldType = iota
	FieldInteger
	FieldFloat
	FieldString
	FieldBlob
)

func (t FieldType) String() string {
	switch t {
	case FieldNull:
		return "null"
	case FieldInteger:
		return "integer"
	case FieldFloat:
		return "float"
	case FieldString:
		return "string"
	case FieldBlob:
		return "blob"
	}
	return fmt.Sprintf("FieldType(%d)", uint8(t))
}

// Value is a typed cell. Bytes holds string and blob payloads.
type Value struct {
	Type  FieldType
	Int   int64
	Float float64
	Bytes []byte
}

func Null() Value {
	return Value{Type: FieldNull}
}

func Int(v int64) Value {
	return Value{Type: FieldInteger, Int: v}
}

func Float(v float64) Value {
	return Value{Type: FieldFloat, Float: v}
}

func String(v string) Value {
	return Value{Type: FieldString, Bytes: []byte(v)}
}

func Blob(v []byte) Value {
	return Value{Type: FieldBlob, Bytes: v}
}

func (v Value) IsNull() bool {
	return v.Type == FieldNull
}

// AsInt converts the cell the way a sqlite cursor does: strings are parsed,
// floats truncated and nulls read as 0.
func (v Value) AsInt() (int64, error) {
	switch v.Type {
	case FieldNull:
		return 0, nil
	case FieldInteger:
		return v.Int, nil
	case FieldFloat:
		return int64(v.Float), nil
	case FieldString:
		s := string(v.Bytes)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, nil
		}
		return int64(f), nil
	}
	return 0, fmt.Errorf("%w: %s as integer", ErrTypeMismatch, v.Type)
}

func (v Value) AsFloat() (float64, error) {
	switch v.Type {
	case FieldNull:
		return 0, nil
	case FieldInteger:
		return float64(v.Int), nil
	case FieldFloat:
		return v.Float, nil
	case FieldString:
		f, err := strconv.ParseFloat(string(v.Bytes), 64)
		if err != nil {
			return 0, nil
		}
		return f, nil
	}
	return 0, fmt.Errorf("%w: %s as float", ErrTypeMismatch, v.Type)
}

// AsString renders numbers in their shortest form and blobs base64 encoded.
func (v Value) AsString() string {
	switch v.Type {
	case FieldInteger:
		return strconv.FormatInt(v.Int, 10)
	case FieldFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case FieldString:
		return string(v.Bytes)
	case FieldBlob:
		return base64.StdEncoding.EncodeToString(v.Bytes)
	}
	return ""
}

// Interface returns the natural Go value of the cell (nil, int64, float64,
// string or []byte).
func (v Value) Interface() any {
	switch v.Type {
	case FieldInteger:
		return v.Int
	case FieldFloat:
		return v.Float
	case FieldString:
		return string(v.Bytes)
	case FieldBlob:
		return v.Bytes
	}
	return nil
}

// ValueOf maps common Go values onto a cell.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t)), nil
		}
		return Int(int64(t)), nil
	case float32:
		return Float(float64(t)), nil
	case float64:
		return Float(t), nil
	case bool:
		if t {
			return Int(1), nil
		}
		return Int(0), nil
	case string:
		return String(t), nil
	case []byte:
		return Blob(t), nil
	}
	return Value{}, fmt.Errorf("%w: unsupported value of type %T", ErrTypeMismatch, x)
}
