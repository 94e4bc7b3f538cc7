package listing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Op string

const (
	OpEq  Op = "=="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

func (o Op) IsRange() bool {
	return o == OpGt || o == OpGte || o == OpLt || o == OpLte
}

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Filter {
	return Filter{Field: field, Op: OpEq, Value: v}
}

func AtLeast(field string, v any) Filter {
	return Filter{Field: field, Op: OpGte, Value: v}
}

func AtMost(field string, v any) Filter {
	return Filter{Field: field, Op: OpLte, Value: v}
}

func After(field string, v any) Filter {
	return Filter{Field: field, Op: OpGt, Value: v}
}

func Before(field string, v any) Filter {
	return Filter{Field: field, Op: OpLt, Value: v}
}

func (f Filter) String() string {
	return fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value)
}

// Validate checks the filter set against the ordered-index model: filters
// are AND-combined and at most one field other than SortField may carry a
// range operator.
func Validate(filters []Filter) error {
	var rangeField string
	for _, f := range filters {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%w: empty field", ErrUnsupportedFilter)
		}
		switch f.Op {
		case OpEq, OpGt, OpGte, OpLt, OpLte:
		default:
			return fmt.Errorf("%w: operator %q on %s", ErrUnsupportedFilter, f.Op, f.Field)
		}
		if !f.Op.IsRange() || f.Field == SortField {
			continue
		}
		if rangeField != "" && rangeField != f.Field {
			return fmt.Errorf("%w: range filters on both %s and %s", ErrUnsupportedFilter, rangeField, f.Field)
		}
		rangeField = f.Field
	}
	return nil
}

// Matches evaluates the filter against a field value.
func (f Filter) Matches(v any) (bool, error) {
	c, err := Compare(v, f.Value)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrUnsupportedFilter, f.Field, err)
	}
	switch f.Op {
	case OpEq:
		return c == 0, nil
	case OpGt:
		return c > 0, nil
	case OpGte:
		return c >= 0, nil
	case OpLt:
		return c < 0, nil
	case OpLte:
		return c <= 0, nil
	}
	return false, fmt.Errorf("%w: operator %q", ErrUnsupportedFilter, f.Op)
}

// Compare orders two values of compatible kinds. Numbers of any Go numeric
// type and decimal.Decimal compare numerically.
func Compare(a, b any) (int, error) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		return strings.Compare(av, bv), nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, fmt.Errorf("cannot compare bool with %T", b)
		}
		switch {
		case av == bv:
			return 0, nil
		case !av:
			return -1, nil
		}
		return 1, nil
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, fmt.Errorf("cannot compare time with %T", b)
		}
		return av.Compare(bv), nil
	}

	ad, ok := toDecimal(a)
	if !ok {
		return 0, fmt.Errorf("unsupported value type %T", a)
	}
	bd, ok := toDecimal(b)
	if !ok {
		return 0, fmt.Errorf("cannot compare number with %T", b)
	}
	return ad.Cmp(bd), nil
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	}
	return decimal.Decimal{}, false
}
