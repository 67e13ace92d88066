package dataset

import (
	"fmt"
	"math"
	"strings"
	"time"
)

var referenceLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.DateOnly,
}

// unitDuration maps a CF unit name to a duration.
func unitDuration(unit string) (time.Duration, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "days", "day", "d":
		return 24 * time.Hour, true
	case "hours", "hour", "hrs", "hr", "h":
		return time.Hour, true
	case "minutes", "minute", "mins", "min":
		return time.Minute, true
	case "seconds", "second", "secs", "sec", "s":
		return time.Second, true
	case "milliseconds", "millisecond", "ms":
		return time.Millisecond, true
	case "microseconds", "microsecond", "us":
		return time.Microsecond, true
	case "nanoseconds", "nanosecond", "ns":
		return time.Nanosecond, true
	}
	return 0, false
}

// parseTimeUnits parses CF units of the form "<unit> since <reference>".
// Empty units mean seconds since the Unix epoch.
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	units = strings.TrimSpace(units)
	if units == "" {
		return time.Second, time.Unix(0, 0).UTC(), nil
	}
	unit, ref, found := strings.Cut(units, " since ")
	if !found {
		return 0, time.Time{}, fmt.Errorf("time units %q lack a reference date", units)
	}
	step, ok := unitDuration(unit)
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unknown time unit %q", unit)
	}

	ref = strings.TrimSpace(ref)
	ref = strings.TrimSuffix(ref, " UTC")
	ref = strings.TrimSuffix(ref, " +00:00")
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return step, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("unparseable reference date %q", ref)
}

// decodeTimes converts raw time-axis values into instants.
func decodeTimes(raw []float64, units string) ([]time.Time, error) {
	step, ref, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, len(raw))
	for i, v := range raw {
		out[i] = ref.Add(toSeconds(v, step))
	}
	return out, nil
}

// decodeLeads converts a lead-time axis into durations. Empty units mean hours.
func decodeLeads(raw []float64, units string) ([]time.Duration, error) {
	step := time.Hour
	if strings.TrimSpace(units) != "" {
		var ok bool
		if step, ok = unitDuration(units); !ok {
			return nil, fmt.Errorf("unknown lead time unit %q", units)
		}
	}
	out := make([]time.Duration, len(raw))
	for i, v := range raw {
		out[i] = toSeconds(v, step)
	}
	return out, nil
}

// toSeconds converts v steps into a duration rounded to whole seconds, which
// absorbs float error on large epoch offsets.
func toSeconds(v float64, step time.Duration) time.Duration {
	return time.Duration(math.Round(v*step.Seconds())) * time.Second
}
