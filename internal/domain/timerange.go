package domain

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// LabelLayout formats time options for the UI, e.g. "Thu 05 May 2022 12 UTC".
const LabelLayout = "Mon 02 Jan 2006 15 UTC"

// TimeRange is a forecast base time plus the valid times requested for it.
type TimeRange struct {
	BaseTime  int64   `json:"baseTime"`
	ValidTime []int64 `json:"validTime"`
}

// Validate checks the range. An empty ValidTime is valid.
func (r TimeRange) Validate() error {
	if r.BaseTime < 0 {
		return NewError(CodeInvalidArgument, "baseTime must be a non-negative epoch timestamp")
	}
	for _, v := range r.ValidTime {
		if v < r.BaseTime {
			return NewError(CodeInvalidArgument, "validTime %d precedes baseTime %d", v, r.BaseTime)
		}
	}
	return nil
}

// Base returns the base time in UTC.
func (r TimeRange) Base() time.Time {
	return time.Unix(r.BaseTime, 0).UTC()
}

// CacheKey identifies one rendered image.
type CacheKey struct {
	Model       ModelID
	Plot        PlotType
	Base        int64
	Valid       int64
	GroundTruth bool
}

// Stamp returns the "{base}_{valid}" identifier used in responses and file names.
func (k CacheKey) Stamp() string {
	return fmt.Sprintf("%d_%d", k.Base, k.Valid)
}

// FileName returns the image file name for the key.
func (k CacheKey) FileName() string {
	name := k.Stamp() + "_image.webp"
	if k.GroundTruth {
		return "gt_" + name
	}
	return name
}

// RelPath returns the slash-separated path of the image relative to the output root.
func (k CacheKey) RelPath() string {
	return path.Join(string(k.Model), k.Plot.Dir(), k.FileName())
}

// Lead returns valid minus base.
func (k CacheKey) Lead() time.Duration {
	return time.Duration(k.Valid-k.Base) * time.Second
}

// ParseImageName splits "[gt_]{base}_{valid}_image.webp" into its parts.
func ParseImageName(name string) (base, valid int64, groundTruth bool, ok bool) {
	if strings.HasPrefix(name, "gt_") {
		groundTruth = true
		name = strings.TrimPrefix(name, "gt_")
	}
	stem, found := strings.CutSuffix(name, "_image.webp")
	if !found {
		return 0, 0, false, false
	}
	b, v, found := strings.Cut(stem, "_")
	if !found {
		return 0, 0, false, false
	}
	var err error
	if base, err = strconv.ParseInt(b, 10, 64); err != nil {
		return 0, 0, false, false
	}
	if valid, err = strconv.ParseInt(v, 10, 64); err != nil {
		return 0, 0, false, false
	}
	return base, valid, groundTruth, true
}

// Image is one entry of a fetch response.
type Image struct {
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
}

// TimeOption is a selectable time for the UI.
type TimeOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// NewTimeOption formats t as a TimeOption.
func NewTimeOption(t time.Time) TimeOption {
	t = t.UTC()
	return TimeOption{
		Label: t.Format(LabelLayout),
		Value: strconv.FormatInt(t.Unix(), 10),
	}
}

// ParseQueryTime accepts epoch seconds, RFC3339 or a YYYY-MM-DD date.
func ParseQueryTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, NewError(CodeInvalidArgument, "invalid queryTime %q (expected epoch seconds, RFC3339 or YYYY-MM-DD)", s)
}
