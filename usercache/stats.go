package usercache

import "sync/atomic"

// CounterID selects one of the cache counters.
type CounterID uint8

const (
	// CounterHit counts lookups answered from a cache tier.
	CounterHit CounterID = iota
	// CounterMiss counts lookups that fell through to the origin repository.
	CounterMiss
	// CounterInvalidation counts Invalidate calls.
	CounterInvalidation
	// CounterOriginRead counts origin-repository queries issued by the cache.
	CounterOriginRead
	// CounterFallbackServe counts reads answered by the in-process tier
	// while the remote tier was unavailable.
	CounterFallbackServe
	counterIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Stats is the injected counter block for one cache instance. It is
// explicitly constructed and passed to [New] rather than kept as package
// state, so independent instances never share counters. All methods are
// safe for concurrent use and nil-safe.
type Stats struct {
	counters [counterIDCount]paddedCounter
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	Hits           uint64 `json:"hits"`
	Misses         uint64 `json:"misses"`
	Invalidations  uint64 `json:"invalidations"`
	OriginReads    uint64 `json:"origin_reads"`
	FallbackServes uint64 `json:"fallback_serves"`
}

// NewStats returns a zeroed counter block. Counters only reset with the
// process.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) inc(id CounterID) {
	if s == nil || id >= counterIDCount {
		return
	}
	atomic.AddUint64(&s.counters[id].value, 1)
}

// Value returns the current value of one counter.
func (s *Stats) Value(id CounterID) uint64 {
	if s == nil || id >= counterIDCount {
		return 0
	}
	return atomic.LoadUint64(&s.counters[id].value)
}

// Snapshot copies all counters at once.
func (s *Stats) Snapshot() StatsSnapshot {
	if s == nil {
		return StatsSnapshot{}
	}
	return StatsSnapshot{
		Hits:           s.Value(CounterHit),
		Misses:         s.Value(CounterMiss),
		Invalidations:  s.Value(CounterInvalidation),
		OriginReads:    s.Value(CounterOriginRead),
		FallbackServes: s.Value(CounterFallbackServe),
	}
}
