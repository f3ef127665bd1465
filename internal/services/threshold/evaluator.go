package threshold

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/devicepulse/backend/internal/model"
)

// Evaluate compares a single sample against a resolved threshold using
// exact decimal arithmetic (limits carry up to 10 fractional digits, binary
// floats would lose them). A nil threshold never violates. At most one
// branch fires per call.
func Evaluate(value decimal.Decimal, unit, metric string, t *model.MeasurementThreshold) (bool, string) {
	if t == nil {
		return false, ""
	}
	if value.LessThan(t.MinLimit) {
		return true, fmt.Sprintf("%s below minimum: %s%s < %s%s",
			metric, value.String(), unit, t.MinLimit.String(), unit)
	}
	if value.GreaterThan(t.MaxLimit) {
		return true, fmt.Sprintf("%s above maximum: %s%s > %s%s",
			metric, value.String(), unit, t.MaxLimit.String(), unit)
	}
	return false, ""
}
