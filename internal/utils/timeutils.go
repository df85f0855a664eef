package utils

import (
	"fmt"
	"time"
)

// LoadLocation resolves a timezone name; empty means the process local zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// HourIn returns the hour of day of t in loc.
func HourIn(t time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Hour()
}

// FromUnixMillis converts a millisecond epoch to UTC time; zero yields zero time.
func FromUnixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
