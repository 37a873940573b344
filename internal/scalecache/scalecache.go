// Package scalecache holds the single site-scale value shared by every
// report submission.
package scalecache

import (
	"context"
	"time"
)

// Snapshot is replaced wholesale, never patched.
type Snapshot struct {
	Scale          float64   `json:"scale"`
	ObservedPerDay float64   `json:"observed_per_day"`
	ComputedAt     time.Time `json:"computed_at"`
}

// Fresh reports whether the snapshot is younger than ttl at now.
func (s Snapshot) Fresh(now time.Time, ttl time.Duration) bool {
	return !s.ComputedAt.IsZero() && now.Sub(s.ComputedAt) < ttl
}

type Store interface {
	// Load returns ok=false when nothing has been stored yet.
	Load(ctx context.Context) (snap Snapshot, ok bool, err error)
	Store(ctx context.Context, snap Snapshot) error
	Invalidate(ctx context.Context) error
}
