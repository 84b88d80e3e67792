package api

import (
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ayusman/kinesmooth/internal/store"
)

// RunCache keeps the latest run of each trajectory in memory.
type RunCache struct {
	c *cache.Cache
}

// NewRunCache creates a RunCache whose entries expire after ttl.
func NewRunCache(ttl time.Duration) *RunCache {
	return &RunCache{c: cache.New(ttl, 2*ttl)}
}

// Get returns the cached latest run of a trajectory.
func (rc *RunCache) Get(trajectoryID string) (*store.Run, bool) {
	v, ok := rc.c.Get(trajectoryID)
	if !ok {
		return nil, false
	}
	return v.(*store.Run), true
}

// Set records run as the latest run of its trajectory.
func (rc *RunCache) Set(run *store.Run) {
	rc.c.Set(run.TrajectoryID, run, cache.DefaultExpiration)
}

// Invalidate drops the cached run of a trajectory.
func (rc *RunCache) Invalidate(trajectoryID string) {
	rc.c.Delete(trajectoryID)
}
