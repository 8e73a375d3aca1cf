// Package durations formats durations for people rather than parsers.
package durations

import (
	"strconv"
	"strings"
	"time"
)

var units = []struct {
	name string
	size time.Duration
}{
	{"day", 24 * time.Hour},
	{"hour", time.Hour},
	{"minute", time.Minute},
	{"second", time.Second},
}

// Humanize renders d using at most maxUnits of the largest non-zero units, e.g. "14 minutes 30 seconds". Anything
// below one second is "0 seconds". A maxUnits of zero or less means no limit.
func Humanize(d time.Duration, maxUnits int) string {
	var parts []string

	for _, u := range units {
		if maxUnits > 0 && len(parts) == maxUnits {
			break
		}

		if d < u.size {
			continue
		}

		amount := int64(d / u.size)
		d %= u.size

		part := strconv.FormatInt(amount, 10) + " " + u.name
		if amount != 1 {
			part += "s"
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return "0 seconds"
	}

	return strings.Join(parts, " ")
}

func HumanizeSeconds(seconds int64) string {
	return Humanize(time.Duration(seconds)*time.Second, 0)
}
