package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/cliffcho242/identity"
	"github.com/cliffcho242/identity/usercache"
)

func main() {
	var (
		users       = flag.Int("users", 100000, "number of user records to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (verify + lookup)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := identity.DefaultConfig()
	cfg.Token.Secret = []byte("loadtest-secret-loadtest-secret-00")
	cfg.Token.AccessTTL = time.Hour

	repo := seedRepo(*users)
	svc, err := identity.New().
		WithConfig(cfg).
		WithRedis(client).
		WithRepository(repo).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("issuing %d tokens...\n", *users)
	startSeed := time.Now()
	tokens := make([]string, *users)
	for i := range tokens {
		tok, err := svc.IssueToken(int64(i+1), string(usercache.AccountSeeker))
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue failed: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = tok
	}
	fmt.Printf("issued in %s\n", time.Since(startSeed).Round(time.Millisecond))

	verifyStats := runVerifyPhase(svc, tokens, *ops, *concurrency)
	lookupStats := runLookupPhase(ctx, svc, *users, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("verify", verifyStats)
	printStats("lookup", lookupStats)

	h := svc.Health(ctx)
	fmt.Printf("cache: hits=%d misses=%d origin_reads=%d fallback_serves=%d breaker=%s\n",
		h.Cache.Hits, h.Cache.Misses, h.Cache.OriginReads, h.Cache.FallbackServes, h.BreakerState)
}

// runVerifyPhase hammers the zero-I/O token check.
func runVerifyPhase(svc *identity.Service, tokens []string, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(tokens))
				t0 := time.Now()
				_, err := svc.Authenticate(tokens[idx])
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runLookupPhase hammers the cached user-record read path. A skewed index
// distribution keeps a hot set resident so both hit and miss paths are
// exercised.
func runLookupPhase(ctx context.Context, svc *identity.Service, users, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				id := int64(r.Intn(users)) + 1
				if r.Intn(4) != 0 {
					// 3 of 4 reads land in the hot 10%.
					id = int64(r.Intn(users/10+1)) + 1
				}
				t0 := time.Now()
				_, err := svc.UserByID(ctx, id)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

// memRepo is a fixed in-memory origin used only for load generation.
type memRepo struct {
	rows map[int64]*usercache.Record
}

func seedRepo(n int) *memRepo {
	rows := make(map[int64]*usercache.Record, n)
	now := time.Now()
	for i := 1; i <= n; i++ {
		id := int64(i)
		rows[id] = &usercache.Record{
			ID:          id,
			Email:       "user" + strconv.Itoa(i) + "@example.com",
			Username:    "user" + strconv.Itoa(i),
			AccountType: usercache.AccountSeeker,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return &memRepo{rows: rows}
}

func (m *memRepo) FindByID(_ context.Context, id int64) (*usercache.Record, error) {
	if rec, ok := m.rows[id]; ok {
		clone := *rec
		return &clone, nil
	}
	return nil, usercache.ErrNotFound
}

func (m *memRepo) FindByEmail(_ context.Context, email string) (*usercache.Record, error) {
	for _, rec := range m.rows {
		if usercache.NormalizeEmail(rec.Email) == email {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, usercache.ErrNotFound
}

func (m *memRepo) FindByUsername(_ context.Context, username string) (*usercache.Record, error) {
	for _, rec := range m.rows {
		if rec.Username == username {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, usercache.ErrNotFound
}

func (m *memRepo) FindByPhone(_ context.Context, phone string) (*usercache.Record, error) {
	for _, rec := range m.rows {
		if rec.Phone == phone {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, usercache.ErrNotFound
}
