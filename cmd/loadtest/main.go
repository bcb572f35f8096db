// Command loadtest drives the search service with concurrent hotel queries
// and reports throughput, latency percentiles, cache hit rate, and status
// codes.
//
// Usage:
//
//	go run ./cmd/loadtest [-url http://localhost:8080] [-concurrency 10] [-duration 30s] [-queries file]
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hotel-search/internal/searcher/handler"
	"golang.org/x/sync/errgroup"
)

var defaultQueries = []string{
	"lake view resort",
	"mountain lodge",
	"pokhara lakeside hotel",
	"kathmandu thamel",
	"free wifi breakfast",
	"swimming pool spa",
	"himalaya view",
	"budget guest house",
	"airport shuttle",
	"chitwan jungle safari",
	"rooftop restaurant",
	"family room",
	"",
}

type options struct {
	baseURL     string
	concurrency int
	duration    time.Duration
	limit       int
	post        bool
	queries     []string
}

type stats struct {
	total     atomic.Int64
	success   atomic.Int64
	failures  atomic.Int64
	cacheHits atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newStats() *stats {
	return &stats{
		latencies: make([]time.Duration, 0, 100000),
		codes:     make(map[int]int64),
	}
}

func (s *stats) record(latency time.Duration, code int, cacheHit bool, err error) {
	s.total.Add(1)
	if err != nil {
		s.failures.Add(1)
		return
	}
	if code >= 200 && code < 300 {
		s.success.Add(1)
	} else {
		s.failures.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}
	s.mu.Lock()
	s.latencies = append(s.latencies, latency)
	s.codes[code]++
	s.mu.Unlock()
}

func main() {
	opts := options{}
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "base URL of the search service")
	flag.IntVar(&opts.concurrency, "concurrency", 10, "number of concurrent workers")
	flag.DurationVar(&opts.duration, "duration", 30*time.Second, "test duration")
	flag.IntVar(&opts.limit, "limit", 5, "results per query")
	flag.BoolVar(&opts.post, "post", false, "send queries as POST form bodies")
	queriesFile := flag.String("queries", "", "file with one query per line (default: built-in hotel queries)")
	flag.Parse()

	opts.queries = defaultQueries
	if *queriesFile != "" {
		q, err := readQueries(*queriesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		opts.queries = q
	}

	fmt.Println("=== Hotel Search Load Test ===")
	fmt.Printf("Target:      %s\n", opts.baseURL)
	fmt.Printf("Concurrency: %d\n", opts.concurrency)
	fmt.Printf("Duration:    %s\n", opts.duration)
	fmt.Printf("Queries:     %d unique\n\n", len(opts.queries))

	s := run(context.Background(), opts, &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency * 2,
			MaxIdleConnsPerHost: opts.concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	})
	report(os.Stdout, s, opts.duration)
	if s.total.Load() == 0 {
		fmt.Println("\nWARNING: no requests completed. Is the service running?")
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		queries = append(queries, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return queries, nil
}

func run(ctx context.Context, opts options, client *http.Client) *stats {
	s := newStats()
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				query := opts.queries[i%len(opts.queries)]
				start := time.Now()
				code, hit, err := send(ctx, client, opts, query)
				if ctx.Err() != nil {
					return nil
				}
				s.record(time.Since(start), code, hit, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return s
}

func send(ctx context.Context, client *http.Client, opts options, query string) (int, bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/search?limit=%d", opts.baseURL, opts.limit)
	var req *http.Request
	var err error
	if opts.post {
		body := url.Values{"query": {query}}.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"&q="+url.QueryEscape(query), nil)
	}
	if err != nil {
		return 0, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, resp.Header.Get(handler.CacheHeader) == "HIT", nil
}

func report(w io.Writer, s *stats, duration time.Duration) {
	total := s.total.Load()
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", s.success.Load())
	fmt.Fprintf(w, "Errors:          %d\n", s.failures.Load())
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.failures.Load())/float64(total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	s.mu.Lock()
	latencies := append([]time.Duration(nil), s.latencies...)
	codes := make([]int, 0, len(s.codes))
	for code := range s.codes {
		codes = append(codes, code)
	}
	counts := make(map[int]int64, len(s.codes))
	for code, n := range s.codes {
		counts[code] = n
	}
	s.mu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))
		var sq float64
		for _, l := range latencies {
			d := float64(l - avg)
			sq += d * d
		}

		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])
		fmt.Fprintf(w, "StdDev: %s\n", time.Duration(math.Sqrt(sq/float64(len(latencies)))))
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, counts[code])
	}
}

// percentile uses the nearest-rank method on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
