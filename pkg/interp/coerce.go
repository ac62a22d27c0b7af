package interp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tessworth/routinely/pkg/routine"
)

// Coerce converts a raw caller-supplied value to the declared parameter
// type for a structured substitution context. String contexts never call
// this; they render values with Stringify instead.
func Coerce(name string, raw any, typ routine.ParameterType) (any, error) {
	fail := func() (any, error) {
		return nil, &CoercionError{Name: name, Type: typ, Value: raw}
	}

	switch typ {
	case routine.TypeString, routine.TypeDate:
		// Identity: dates are carried as text, no calendar semantics.
		return Stringify(raw), nil

	case routine.TypeInteger:
		switch v := raw.(type) {
		case int:
			return int64(v), nil
		case int64:
			return v, nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return fail()
			}
			return n, nil
		}
		// Floats are rejected even when whole: "3.0" is not an integer.
		return fail()

	case routine.TypeNumber:
		switch v := raw.(type) {
		case int:
			return float64(v), nil
		case int64:
			return float64(v), nil
		case float64:
			return v, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return fail()
			}
			return f, nil
		}
		return fail()

	case routine.TypeBoolean:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return fail()
	}

	return fail()
}

// Stringify renders a raw value as text for string-context substitution.
func Stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
