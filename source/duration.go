package source

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// MinDuration is the length an upload must exceed to be kept; shorter
	// uploads are treated as shorts.
	MinDuration = 180 * time.Second
	// DefaultRetention is how far back uploads are fetched and kept.
	DefaultRetention = 7 * 24 * time.Hour
)

var isoDurationRegex = regexp.MustCompile(`^P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseISODuration parses an ISO 8601 duration such as "PT1H2M3S" or "P1DT4M",
// the format YouTube uses for contentDetails.duration. Years and months are
// not supported since they have no fixed length.
func ParseISODuration(s string) (time.Duration, error) {
	m := isoDurationRegex.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, fmt.Errorf("source: invalid ISO 8601 duration %q", s)
	}

	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute}
	var total time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("source: invalid ISO 8601 duration %q: %w", s, err)
		}
		total += time.Duration(n) * unit
	}
	if m[5] != "" {
		secs, err := strconv.ParseFloat(m[5], 64)
		if err != nil {
			return 0, fmt.Errorf("source: invalid ISO 8601 duration %q: %w", s, err)
		}
		total += time.Duration(secs * float64(time.Second))
	}
	return total, nil
}

// FilterRecent keeps uploads published after now-retention whose duration
// exceeds minDuration. Order is preserved.
func FilterRecent(videos []Video, now time.Time, retention, minDuration time.Duration) []Video {
	cutoff := now.Add(-retention)
	kept := make([]Video, 0, len(videos))
	for _, v := range videos {
		if !v.PublishedAt.After(cutoff) {
			continue
		}
		if v.Duration <= minDuration {
			continue
		}
		kept = append(kept, v)
	}
	return kept
}
