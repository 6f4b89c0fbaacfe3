package compile

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"unitymcp/internal/errors"
)

// Params are the optional action parameters.
type Params struct {
	// TimeoutSeconds bounds wait_for_complete. Nil means the default.
	TimeoutSeconds *int
	// IncludeStackTrace attaches stack traces in get_errors.
	IncludeStackTrace bool
}

// WithTimeout returns a copy of p with TimeoutSeconds set.
func (p Params) WithTimeout(seconds int) Params {
	p.TimeoutSeconds = &seconds
	return p
}

// ParseParams reads action parameters from a generic argument map. Both
// snake_case and camelCase keys are accepted; numbers and booleans may also
// arrive as strings.
func ParseParams(args map[string]interface{}) (Params, error) {
	var p Params

	if v, ok := lookup(args, "timeout_seconds", "timeoutSeconds", "timeout"); ok && v != nil {
		n, err := toInt(v)
		if err != nil {
			return Params{}, errors.New(errors.InvalidParameter,
				fmt.Sprintf("Invalid timeoutSeconds: %v", v))
		}
		p.TimeoutSeconds = &n
	}

	if v, ok := lookup(args, "include_stack_trace", "includeStackTrace"); ok && v != nil {
		b, err := toBool(v)
		if err != nil {
			return Params{}, errors.New(errors.InvalidParameter,
				fmt.Sprintf("Invalid includeStackTrace: %v", v))
		}
		p.IncludeStackTrace = b
	}

	return p, nil
}

func lookup(args map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		if n > math.MaxInt || n < math.MinInt {
			return 0, fmt.Errorf("out of range: %d", n)
		}
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		// float64(math.MaxInt) rounds up to 2^63, which int cannot hold.
		if n >= float64(math.MaxInt) || n < float64(math.MinInt) {
			return 0, fmt.Errorf("out of range: %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, err
		}
		return toInt(i)
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	default:
		return false, fmt.Errorf("unsupported type %T", v)
	}
}
