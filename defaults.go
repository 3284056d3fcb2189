package swrcache

import "time"

const (
	defaultStaleTime   = 5 * time.Second
	defaultSnapshotTTL = 10 * time.Minute
	defaultGenSweep    = time.Hour
	defaultGenRetain   = 24 * time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
