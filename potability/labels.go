package potability

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"aquamind/ml"
)

// LabelMapping says which raw model outputs mean "potable".
type LabelMapping = ml.LabelMapping

// DefaultLabelMapping is used when neither the caller nor the model
// artifact publishes a mapping: the numeric label 1 and the common
// spellings of "potable" and "true", with probability column 1.
func DefaultLabelMapping() LabelMapping {
	return LabelMapping{
		PositiveTokens:     []string{"1", "Potable", "potable", "True", "true"},
		PositiveClassIndex: 1,
	}
}

// IsPositive unwraps one level of sequence nesting and reports whether the
// value's token is in the mapping. Anything unrecognised is negative.
func IsPositive(raw any, mapping LabelMapping) bool {
	token, ok := Token(unwrap(raw))
	if !ok {
		return false
	}
	for _, t := range mapping.PositiveTokens {
		if t == token {
			return true
		}
	}
	return false
}

func unwrap(raw any) any {
	if raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case string, []byte, json.RawMessage:
		return raw
	case []any:
		if len(v) == 0 {
			return nil
		}
		return v[0]
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Len() == 0 {
			return nil
		}
		return rv.Index(0).Interface()
	}
	return raw
}

// Token renders a raw label the way it is compared against the positive
// token set. Integral numbers render without a fractional part so that a
// JSON 1 and an integer 1 agree. nil has no token.
func Token(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case []byte:
		return string(x), true
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(x, &decoded); err == nil {
			return Token(decoded)
		}
		return string(x), true
	case bool:
		if x {
			return "True", true
		}
		return "False", true
	case float64:
		return floatToken(x), true
	case float32:
		return floatToken(float64(x)), true
	case int:
		return strconv.Itoa(x), true
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(x).Int(), 10), true
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(x).Uint(), 10), true
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return floatToken(f), true
		}
		return x.String(), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(x), true
	}
}

func floatToken(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
