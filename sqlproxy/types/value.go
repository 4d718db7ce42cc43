package types

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueType tags the variant held by a Value.
type ValueType int

const (
	TypeNull ValueType = iota
	TypeInteger
	TypeReal
	TypeText
	TypeBlob
)

func (t ValueType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	case TypeText:
		return "text"
	case TypeBlob:
		return "blob"
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

func parseValueType(s string) (ValueType, error) {
	switch s {
	case "null":
		return TypeNull, nil
	case "integer":
		return TypeInteger, nil
	case "real":
		return TypeReal, nil
	case "text":
		return TypeText, nil
	case "blob":
		return TypeBlob, nil
	}
	return TypeNull, fmt.Errorf("unknown value type %q", s)
}

// Value is a language-neutral SQL value used both for bound parameters and
// for result cells. Only the field matching Type is meaningful.
type Value struct {
	Type    ValueType
	Integer int64
	Real    float64
	Text    string
	Blob    []byte
}

func NullValue() Value {
	return Value{Type: TypeNull}
}

func IntegerValue(i int64) Value {
	return Value{Type: TypeInteger, Integer: i}
}

func RealValue(f float64) Value {
	return Value{Type: TypeReal, Real: f}
}

func TextValue(s string) Value {
	return Value{Type: TypeText, Text: s}
}

func BlobValue(b []byte) Value {
	return Value{Type: TypeBlob, Blob: b}
}

func (v Value) IsNull() bool {
	return v.Type == TypeNull
}

// Any returns the value in the form database/sql drivers accept as an
// argument.
func (v Value) Any() any {
	switch v.Type {
	case TypeInteger:
		return v.Integer
	case TypeReal:
		return v.Real
	case TypeText:
		return v.Text
	case TypeBlob:
		if v.Blob == nil {
			// A nil slice binds as NULL in most drivers.
			return []byte{}
		}
		return v.Blob
	}
	return nil
}

// ValueOf converts a cell scanned from a database/sql row into a Value.
func ValueOf(x any) Value {
	switch v := x.(type) {
	case nil:
		return NullValue()
	case int64:
		return IntegerValue(v)
	case int:
		return IntegerValue(int64(v))
	case int32:
		return IntegerValue(int64(v))
	case uint32:
		return IntegerValue(int64(v))
	case bool:
		if v {
			return IntegerValue(1)
		}
		return IntegerValue(0)
	case float64:
		return RealValue(v)
	case float32:
		return RealValue(float64(v))
	case string:
		return TextValue(v)
	case []byte:
		b := make([]byte, len(v))
		copy(b, v)
		return BlobValue(b)
	case time.Time:
		return TextValue(v.Format(time.RFC3339Nano))
	}
	return TextValue(fmt.Sprint(x))
}

// Equal reports whether both values have the same type and payload. Real
// values compare bitwise so NaN equals itself.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case TypeInteger:
		return v.Integer == o.Integer
	case TypeReal:
		return math.Float64bits(v.Real) == math.Float64bits(o.Real)
	case TypeText:
		return v.Text == o.Text
	case TypeBlob:
		return bytes.Equal(v.Blob, o.Blob)
	}
	return true
}

func (v Value) String() string {
	switch v.Type {
	case TypeInteger:
		return fmt.Sprintf("Integer(%d)", v.Integer)
	case TypeReal:
		return fmt.Sprintf("Real(%g)", v.Real)
	case TypeText:
		return fmt.Sprintf("Text(%q)", v.Text)
	case TypeBlob:
		return fmt.Sprintf("Blob(%x)", v.Blob)
	}
	return "Null"
}

// wireValue is the JSON shape of a Value. Integers travel as decimal strings
// so 64-bit values survive JSON number handling on the other side, blobs as
// base64, and non-finite reals as strings.
type wireValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := wireValue{Type: v.Type.String()}
	var payload any
	switch v.Type {
	case TypeNull:
		return json.Marshal(w)
	case TypeInteger:
		payload = strconv.FormatInt(v.Integer, 10)
	case TypeReal:
		if math.IsInf(v.Real, 0) || math.IsNaN(v.Real) {
			payload = strconv.FormatFloat(v.Real, 'g', -1, 64)
		} else {
			payload = v.Real
		}
	case TypeText:
		payload = v.Text
	case TypeBlob:
		payload = base64.StdEncoding.EncodeToString(v.Blob)
	default:
		return nil, fmt.Errorf("cannot marshal %s", v.Type)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	w.Value = raw
	return json.Marshal(w)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t, err := parseValueType(w.Type)
	if err != nil {
		return err
	}
	*v = Value{Type: t}
	switch t {
	case TypeNull:
		return nil
	case TypeInteger:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("integer value: %w", err)
		}
		v.Integer, err = strconv.ParseInt(s, 10, 64)
		return err
	case TypeReal:
		var s string
		if err := json.Unmarshal(w.Value, &s); err == nil {
			v.Real, err = strconv.ParseFloat(s, 64)
			return err
		}
		return json.Unmarshal(w.Value, &v.Real)
	case TypeText:
		return json.Unmarshal(w.Value, &v.Text)
	case TypeBlob:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return fmt.Errorf("blob value: %w", err)
		}
		v.Blob, err = base64.StdEncoding.DecodeString(s)
		return err
	}
	return nil
}
