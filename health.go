package identity

import (
	"context"
	"time"

	"github.com/cliffcho242/identity/usercache"
)

// Health is the operational snapshot exposed for health-check endpoints:
// remote-tier reachability, current circuit-breaker state, and the cache
// counters.
type Health struct {
	RedisHealthy bool                    `json:"redis_healthy"`
	RedisLatency time.Duration           `json:"redis_latency_ns"`
	BreakerState string                  `json:"breaker_state"`
	Cache        usercache.StatsSnapshot `json:"cache"`
}

// Health pings the remote cache tier and reports the snapshot. With the
// circuit open the ping short-circuits, so this stays cheap during an
// outage. It never returns an error: an unreachable cache is a reportable
// state, not a failure of the health check itself.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{
		BreakerState: s.remote.State(),
		Cache:        s.stats.Snapshot(),
	}

	start := time.Now()
	if err := s.remote.Ping(ctx); err == nil {
		h.RedisHealthy = true
		h.RedisLatency = time.Since(start)
	}
	return h
}
