// Command refreshbench runs a synthetic read-through workload against the
// cache with a slow simulated loader, and exposes optional pprof/Prometheus
// endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IvanBrykalov/refreshcache/cache"
	pmet "github.com/IvanBrykalov/refreshcache/metrics/prom"
	"github.com/IvanBrykalov/refreshcache/runner"
)

var log = logging.Logger("refreshbench")

var errSource = errors.New("simulated source failure")

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int("cap", 100_000, "store sizing hint (entries)")
		shards   = flag.Int("shards", 0, "number of shards (0=auto)")
		store    = flag.String("store", "sharded", "store: sharded | syncmap")
		ttl      = flag.Duration("ttl", 0, "entry TTL (0=disabled)")
		coalesce = flag.Bool("coalesce", false, "coalesce overlapping refreshes of a key")

		refreshers = flag.Int("refreshers", runtime.GOMAXPROCS(0), "runner pool workers")
		workers    = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of caller goroutines")
		duration   = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct    = flag.Int("reads", 90, "read percentage [0..100]")
		bypassPct  = flag.Int("bypass", 0, "percentage of reads that bypass the cache [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = cap/2)")

		latency = flag.Duration("latency", 2*time.Millisecond, "simulated loader latency")
		errPct  = flag.Int("errors", 0, "percentage of loads that fail [0..100]")
		nilPct  = flag.Int("nil", 0, "percentage of loads that find no value [0..100]")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
		logLevel    = flag.String("loglevel", "info", "log level: debug | info | warn | error")
	)
	flag.Parse()

	if err := logging.SetLogLevelRegex("refresh.*", *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Infow("pprof serving", "addr", *pprofAddr)
			log.Warn(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "refreshcache", "bench", nil)
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Infow("metrics serving", "addr", *metricsAddr)
			log.Warn(http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	// ---- Simulated slow source ----
	var loads, loadErrs, refreshes atomic.Uint64
	var srcMu sync.Mutex
	src := rand.New(rand.NewSource(*seed))
	roll := func() int {
		srcMu.Lock()
		defer srcMu.Unlock()
		return src.Intn(100)
	}
	errPctVal, nilPctVal, lat := *errPct, *nilPct, *latency
	load := func(ctx context.Context, k string) (string, bool, error) {
		loads.Add(1)
		select {
		case <-time.After(lat):
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
		n := roll()
		switch {
		case n < errPctVal:
			return "", false, errSource
		case n < errPctVal+nilPctVal:
			return "", false, nil
		}
		return "v:" + k + ":" + strconv.FormatInt(time.Now().UnixNano(), 10), true, nil
	}

	// ---- Build cache ----
	pool := runner.New(runner.Options{Workers: *refreshers, Name: "refresh"})
	opt := cache.Options[string, string]{
		Capacity:        *capacity,
		Shards:          *shards,
		Runner:          pool,
		Loader:          load,
		TTL:             *ttl,
		CoalesceRefresh: *coalesce,
		Metrics:         metrics,
		OnLoadError:     func(string, error) { loadErrs.Add(1) },
		AfterRefresh:    func(string, string) { refreshes.Add(1) },
	}
	switch *store {
	case "sharded":
		// nil => sharded store by default
	case "syncmap":
		opt.Store = cache.NewMapStore[string, string]()
	default:
		log.Fatalf("unknown store: %q (use sharded or syncmap)", *store)
	}
	c, err := cache.New(opt)
	if err != nil {
		log.Fatalw("cannot build cache", "err", err)
	}
	metrics.SizeFrom(c.Size)

	// ---- Preload half capacity to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = *capacity / 2
	}
	const preloadBatch = 1024
	batch := make(map[string]string, preloadBatch)
	for i := 0; i < pl; i++ {
		batch["k:"+strconv.Itoa(i)] = "v" + strconv.Itoa(i)
		if len(batch) == preloadBatch || i == pl-1 {
			if err := c.PutAll(batch); err != nil {
				log.Fatalw("preload failed", "err", err)
			}
			clear(batch)
		}
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	bypassPctVal := *bypassPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, found, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					k := keyByZipf()
					if present, _ := c.ContainsKey(k); present {
						atomic.AddUint64(&hits, 1)
					}
					bypass := int(localR.Int31n(100)) < bypassPctVal
					if _, ok, _ := c.GetBypass(context.Background(), k, bypass); ok {
						atomic.AddUint64(&found, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					_ = c.Put(keyByZipf(), "v"+strconv.Itoa(localR.Int()))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)
	backlog := pool.Pending()

	_ = c.Close()
	_ = pool.Close()

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	foundN := atomic.LoadUint64(&found)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("store=%s cap=%d shards=%d workers=%d refreshers=%d keys=%d ttl=%v dur=%v seed=%d\n",
		*store, *capacity, *shards, workersN, *refreshers, *keys, *ttl, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  hit-rate=%.2f%%  reads-with-value=%d\n", hitsN, hitRate, foundN)
	fmt.Printf("loads=%d  load-errors=%d  refreshes=%d  refresh-backlog=%d\n",
		loads.Load(), loadErrs.Load(), refreshes.Load(), backlog)
}
