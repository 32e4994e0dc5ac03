package utils

import (
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
)

// ToInt converts a query or flag value to int. Unparsable input yields
// fallback.
func ToInt(val string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}
	return i
}

// ToBool converts "1", "true" or "yes" (any case) to true.
func ToBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

// ParseDate parses a YYYY-MM-DD date. Empty input yields the zero date and
// no error.
func ParseDate(val string) (civil.Date, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return civil.Date{}, nil
	}
	d, err := civil.ParseDate(val)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", val)
	}
	return d, nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
