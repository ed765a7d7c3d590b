package config

import (
	"fmt"
	"strings"
)

// ParseAmount converts a decimal coin string ("1.5", "0.00000001") into
// base units. At most Decimals fractional digits are allowed; there is no
// rounding.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount %q", s)
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, Decimals)
	}
	// Right-pad the fraction to base-unit precision.
	frac += strings.Repeat("0", Decimals-len(frac))

	var units uint64
	for _, digits := range []string{whole, frac} {
		for _, c := range digits {
			if c < '0' || c > '9' {
				return 0, fmt.Errorf("invalid amount %q", s)
			}
			d := uint64(c - '0')
			if units > (^uint64(0)-d)/10 {
				return 0, fmt.Errorf("amount %q overflows", s)
			}
			units = units*10 + d
		}
	}
	return units, nil
}

// FormatAmount renders base units as a decimal coin string with trailing
// zeros trimmed ("1.5", not "1.50000000").
func FormatAmount(units uint64) string {
	whole := units / Coin
	frac := units % Coin
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	s := fmt.Sprintf("%d.%0*d", whole, Decimals, frac)
	return strings.TrimRight(s, "0")
}
