package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyStripper = strings.NewReplacer("€", "", "$", "", "£", "", ",", "")

// NormalizeAmount converts a raw cell value into a decimal amount.
//
// Currency symbols (€ $ £), thousands separators and surrounding whitespace
// are removed. Blank and nil input yields zero. Input that still cannot be
// parsed yields zero with coerced set, so callers can surface the loss.
func NormalizeAmount(raw any) (amount decimal.Decimal, coerced bool) {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, false
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero, false
		}
		return *v, false
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, !math.IsNaN(v)
		}
		return decimal.NewFromFloat(v), false
	case float32:
		return NormalizeAmount(float64(v))
	case int:
		return decimal.NewFromInt(int64(v)), false
	case int64:
		return decimal.NewFromInt(v), false
	case int32:
		return decimal.NewFromInt(int64(v)), false
	case string:
		return normalizeString(v)
	case []byte:
		return normalizeString(string(v))
	case fmt.Stringer:
		return normalizeString(v.String())
	default:
		return normalizeString(fmt.Sprint(v))
	}
}

func normalizeString(s string) (decimal.Decimal, bool) {
	cleaned := strings.TrimSpace(currencyStripper.Replace(s))
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, true
	}
	return d, false
}
