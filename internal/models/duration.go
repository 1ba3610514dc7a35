package models

import (
	"fmt"
	"time"
)

// ParseHMS parses an elapsed duration in "HH:MM:SS" form.
// "MM:SS" is accepted for sessions under an hour.
func ParseHMS(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &h, &m, &sec); err != nil {
		if _, err := fmt.Sscanf(s, "%d:%d", &m, &sec); err != nil {
			return 0, fmt.Errorf("parsing duration %q: %w", s, err)
		}
		h = 0
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

// FormatHMS renders an elapsed duration as "HH:MM:SS".
func FormatHMS(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
