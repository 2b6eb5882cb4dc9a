package filtering

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/dependable-access-control/internal/domain/values"
)

// RestrictedPlaceholder replaces restricted values that are shared at all
const RestrictedPlaceholder = "[RESTRICTED]"

// monetaryRoundingUnit is the granularity confidential amounts are blurred to
const monetaryRoundingUnit = 100

var (
	financialFieldRegex = regexp.MustCompile(`price|cost|revenue|profit|margin|budget|salary|payment|invoice|amount|total|credit|bank|discount`)
	monetaryFieldRegex  = regexp.MustCompile(`price|cost|revenue|profit|budget|salary|payment|amount|total|value|spend`)
	personalFieldRegex  = regexp.MustCompile(`email|phone|mobile|address|birth|ssn|personal|contact|passport`)
	countLikeFieldRegex = regexp.MustCompile(`count|total|quantity|qty|amount|volume|number_of|^num_`)
)

func isFinancialField(name string) bool {
	return financialFieldRegex.MatchString(strings.ToLower(name))
}

func isMonetaryField(name string) bool {
	return monetaryFieldRegex.MatchString(strings.ToLower(name))
}

func isPersonalField(name string) bool {
	return personalFieldRegex.MatchString(strings.ToLower(name))
}

func isCountLikeField(name string) bool {
	return countLikeFieldRegex.MatchString(strings.ToLower(name))
}

// transformConfidential blurs a confidential value that may be shared.
// Every branch maps its own output to itself.
func transformConfidential(name string, value any) any {
	switch v := value.(type) {
	case string:
		switch {
		case values.IsEmailAddress(v) || strings.Contains(v, "***@"):
			return values.MaskEmailAddress(v)
		case values.LooksLikePhoneNumber(v):
			return values.MaskPhoneNumber(v)
		}
		if m, ok := values.ParseCurrencyAmount(v); ok {
			return m.RoundToNearest(monetaryRoundingUnit).String()
		}
		return v
	}
	if isMonetaryField(name) {
		if rounded, ok := roundNumber(value, monetaryRoundingUnit); ok {
			return rounded
		}
	}
	return value
}

// transformRestricted replaces a restricted value that may be shared.
// Phone numbers keep their last four digits.
func transformRestricted(value any) any {
	if s, ok := value.(string); ok && (values.LooksLikePhoneNumber(s) || values.IsMaskedPhoneNumber(s)) {
		return values.MaskPhoneNumber(s)
	}
	return RestrictedPlaceholder
}

// roundNumber rounds numeric values to unit, keeping the Go type
func roundNumber(value any, unit int64) (any, bool) {
	d, ok := toDecimal(value)
	if !ok {
		return nil, false
	}
	r := values.RoundDecimalToNearest(d, unit)

	switch value.(type) {
	case int:
		return int(r.IntPart()), true
	case int32:
		return int32(r.IntPart()), true
	case int64:
		return r.IntPart(), true
	case uint:
		return uint(r.IntPart()), true
	case uint32:
		return uint32(r.IntPart()), true
	case uint64:
		return uint64(r.IntPart()), true
	case float32:
		f, _ := r.Float64()
		return float32(f), true
	case float64:
		f, _ := r.Float64()
		return f, true
	case decimal.Decimal:
		return r, true
	case json.Number:
		return json.Number(r.String()), true
	}
	return nil, false
}

// toDecimal converts numeric Go values. Strings are not numbers here.
func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint:
		return decimal.NewFromUint64(uint64(v)), true
	case uint32:
		return decimal.NewFromUint64(uint64(v)), true
	case uint64:
		return decimal.NewFromUint64(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case decimal.Decimal:
		return v, true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

// Aggregation buckets
const (
	BucketUnder100    = "<100"
	Bucket100To1000   = "100-1000"
	Bucket1000To10000 = "1000-10000"
	BucketOver10000   = ">10000"
)

var (
	hundred     = decimal.NewFromInt(100)
	thousand    = decimal.NewFromInt(1000)
	tenThousand = decimal.NewFromInt(10000)
)

// bucket maps an exact amount to a coarse range label
func bucket(d decimal.Decimal) string {
	switch {
	case d.LessThan(hundred):
		return BucketUnder100
	case d.LessThan(thousand):
		return Bucket100To1000
	case d.LessThan(tenThousand):
		return Bucket1000To10000
	}
	return BucketOver10000
}

func isBucketLabel(s string) bool {
	switch s {
	case BucketUnder100, Bucket100To1000, Bucket1000To10000, BucketOver10000:
		return true
	}
	return false
}
