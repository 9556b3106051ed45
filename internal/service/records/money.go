package records

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fleetkeeper/fleetkeeper/internal/apperr"
)

// ParseAmountCents parses a positive decimal money string ("45", "45.5",
// "45.00") into integer cents. String arithmetic keeps the sum exact.
func ParseAmountCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, apperr.Validationf("amount is required")
	}

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units < 0 {
		return 0, apperr.Validationf("amount %q is not a number", s)
	}

	var cents int64
	if hasFrac {
		if len(frac) == 0 || len(frac) > 2 {
			return 0, apperr.Validationf("amount %q is not a number", s)
		}
		if len(frac) == 1 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || cents < 0 {
			return 0, apperr.Validationf("amount %q is not a number", s)
		}
	}

	total := units*100 + cents
	if total <= 0 {
		return 0, apperr.Validationf("amount must be positive")
	}
	return total, nil
}

// FormatCents renders integer cents as a plain decimal string ("45.00").
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
