package models

import (
	"math"
	"time"
)

// Record is the untyped shape of a stored node.
type Record = map[string]any

func asRecord(v any) Record {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return Record{}
}

func str(r Record, key string) string {
	s, _ := r[key].(string)
	return s
}

func strPtr(r Record, key string) (string, bool) {
	s, ok := r[key].(string)
	return s, ok
}

// integer accepts Go integers and integral floats. JSON decoding yields
// float64 for every number, so 5.0 is a valid integer while 5.5 is not.
func integer(r Record, key string) (int, bool) {
	switch n := r[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	}
	return 0, false
}

func float(r Record, key string) (float64, bool) {
	switch n := r[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// FromSeconds converts the stored seconds-since-epoch value to a UTC time.
func FromSeconds(secs float64) time.Time {
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

// Seconds is the inverse of FromSeconds.
func Seconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

func timestamp(r Record, key string) time.Time {
	secs, _ := float(r, key)
	return FromSeconds(secs)
}
