package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"cosmossdk.io/math"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/openalpha/fracshare/sdk"
	settlementtypes "github.com/openalpha/fracshare/x/settlement/types"
)

// BenchmarkResults holds all test results
type BenchmarkResults struct {
	BidOrders   int64
	AskOrders   int64
	BidFailed   int64
	AskFailed   int64
	Settled     int64
	Conflicts   int64
	SubmitFails int64

	BidLatencies    []time.Duration
	AskLatencies    []time.Duration
	SettleLatencies []time.Duration
	mu              sync.Mutex
}

func (r *BenchmarkResults) addOrder(side settlementtypes.Side, latency time.Duration, err error) {
	orders, failed, latencies := &r.BidOrders, &r.BidFailed, &r.BidLatencies
	if side == settlementtypes.SideAsk {
		orders, failed, latencies = &r.AskOrders, &r.AskFailed, &r.AskLatencies
	}
	atomic.AddInt64(orders, 1)
	if err != nil {
		atomic.AddInt64(failed, 1)
	}
	r.mu.Lock()
	*latencies = append(*latencies, latency)
	r.mu.Unlock()
}

func (r *BenchmarkResults) addSubmit(latency time.Duration, err error) {
	var apiErr *sdk.APIError
	switch {
	case err == nil:
		atomic.AddInt64(&r.Settled, 1)
		r.mu.Lock()
		r.SettleLatencies = append(r.SettleLatencies, latency)
		r.mu.Unlock()
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
		// the node's background matcher got there first
		atomic.AddInt64(&r.Conflicts, 1)
	default:
		atomic.AddInt64(&r.SubmitFails, 1)
	}
}

func percentile(latencies []time.Duration, p float64) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func avg(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	return total / time.Duration(len(latencies))
}

func printLatency(title string, latencies []time.Duration) {
	fmt.Printf("── %s ──\n", title)
	fmt.Printf("  Samples:            %d\n", len(latencies))
	fmt.Printf("  Average:            %v\n", avg(latencies))
	fmt.Printf("  P50:                %v\n", percentile(latencies, 0.50))
	fmt.Printf("  P90:                %v\n", percentile(latencies, 0.90))
	fmt.Printf("  P99:                %v\n", percentile(latencies, 0.99))
	fmt.Println()
}

func latencyReport(latencies []time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"avg_us": avg(latencies).Microseconds(),
		"p50_us": percentile(latencies, 0.50).Microseconds(),
		"p90_us": percentile(latencies, 0.90).Microseconds(),
		"p99_us": percentile(latencies, 0.99).Microseconds(),
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Printf("FAILED: "+format+"\n", args...)
	os.Exit(1)
}

type buyer struct {
	key  *secp256k1.PrivateKey
	addr string
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	orderCount := flag.Int("n", 1000, "Number of orders per side")
	concurrency := flag.Int("c", 50, "Concurrency level")
	price := flag.Int64("price", 5, "Price per share")
	quantity := flag.Int64("qty", 10, "Shares per order")
	submit := flag.Bool("submit", true, "Propose and submit matches after every bid")
	outputFile := flag.String("o", "", "Output JSON report file")
	flag.Parse()

	ctx := context.Background()
	client := sdk.NewClient(*baseURL, nil)

	fmt.Println("fracshare settlement benchmark")
	fmt.Printf("  API URL:      %s\n", *baseURL)
	fmt.Printf("  Orders/Side:  %d\n", *orderCount)
	fmt.Printf("  Concurrency:  %d\n", *concurrency)
	fmt.Printf("  Price x Qty:  %d x %d\n", *price, *quantity)
	fmt.Println()

	fmt.Print("Checking API health... ")
	health, err := client.Health(ctx)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Printf("OK (chain %s, height %d)\n", health.ChainID, health.Height)

	// Setup: one seller holding every share, one funded buyer per bid.
	fmt.Print("Preparing pool and accounts... ")
	sellerKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		fatal("%v", err)
	}
	seller := settlementtypes.OwnerAddress(sellerKey.PubKey())
	totalShares := math.NewInt(*quantity).MulRaw(int64(*orderCount))
	pool, err := client.CreatePool(ctx, sellerKey, fmt.Sprintf("bench-%d", time.Now().UnixNano()), totalShares)
	if err != nil {
		fatal("create pool: %v", err)
	}

	buyers := make([]buyer, *orderCount)
	cost := math.NewInt(*price * *quantity)
	for i := range buyers {
		key, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			fatal("%v", err)
		}
		buyers[i] = buyer{key: key, addr: settlementtypes.OwnerAddress(key.PubKey())}
		if _, err := client.Fund(ctx, buyers[i].addr, cost); err != nil {
			fatal("fund buyer %d: %v", i, err)
		}
	}
	fmt.Printf("OK (pool %s)\n\n", pool.PoolID)

	results := &BenchmarkResults{}
	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	var processed int64
	total := int64(*orderCount * 2)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := atomic.LoadInt64(&processed)
				fmt.Printf("\r  Progress: %d/%d (%.1f%%) | Settled: %d    ",
					p, total, float64(p)/float64(total)*100, atomic.LoadInt64(&results.Settled))
			}
		}
	}()

	fmt.Println("Starting benchmark...")
	startTime := time.Now()

	for i := 0; i < *orderCount; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			ask := settlementtypes.Order{
				Side:         settlementtypes.SideAsk,
				PoolID:       pool.PoolID,
				Amount:       math.NewInt(*quantity),
				PricePerUnit: math.NewInt(*price),
				Owner:        seller,
				Nonce:        uint64(idx),
			}
			start := time.Now()
			_, err := client.PlaceOrder(ctx, sellerKey, ask)
			results.addOrder(settlementtypes.SideAsk, time.Since(start), err)
			atomic.AddInt64(&processed, 1)
		}(i)

		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			b := buyers[idx]
			bid := settlementtypes.Order{
				Side:         settlementtypes.SideBid,
				PoolID:       pool.PoolID,
				Amount:       math.NewInt(*quantity),
				PricePerUnit: math.NewInt(*price),
				Owner:        b.addr,
			}
			start := time.Now()
			placed, err := client.PlaceOrder(ctx, b.key, bid)
			results.addOrder(settlementtypes.SideBid, time.Since(start), err)
			atomic.AddInt64(&processed, 1)
			if err != nil || !*submit {
				return
			}

			matches, err := client.ProposeMatches(ctx, placed.Entry.OrderID)
			if err != nil {
				results.addSubmit(0, err)
				return
			}
			for _, m := range matches {
				start := time.Now()
				_, err := client.SubmitMatch(ctx, m.MatchID)
				results.addSubmit(time.Since(start), err)
			}
		}(i)
	}

	wg.Wait()
	close(done)
	elapsed := time.Since(startTime)
	fmt.Printf("\r%80s\r\n", "")

	holding, err := client.Holding(ctx, pool.PoolID, seller)
	if err != nil {
		fatal("seller holding: %v", err)
	}
	sharesSold := totalShares.Sub(holding.Balance)

	totalOrders := results.BidOrders + results.AskOrders
	totalFailed := results.BidFailed + results.AskFailed
	throughput := float64(totalOrders) / elapsed.Seconds()

	fmt.Println("── Results ──")
	fmt.Printf("  Duration:           %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Throughput:         %.2f orders/sec\n", throughput)
	fmt.Printf("  Orders:             %d (failed: %d)\n", totalOrders, totalFailed)
	fmt.Printf("  Settled here:       %d (conflicts: %d, failed: %d)\n", results.Settled, results.Conflicts, results.SubmitFails)
	fmt.Printf("  Shares sold:        %s / %s\n", sharesSold, totalShares)
	fmt.Println()

	printLatency("Bid placement", results.BidLatencies)
	printLatency("Ask placement", results.AskLatencies)
	if len(results.SettleLatencies) > 0 {
		printLatency("Match submission", results.SettleLatencies)
	}

	stats := client.Stats()
	fmt.Printf("Client: %d requests, %d failed, %v avg\n", stats.TotalRequests, stats.FailedRequests, stats.AvgLatency)

	if *outputFile == "" {
		return
	}
	report := map[string]interface{}{
		"config": map[string]interface{}{
			"api_url":         *baseURL,
			"orders_per_side": *orderCount,
			"concurrency":     *concurrency,
			"price":           *price,
			"quantity":        *quantity,
		},
		"summary": map[string]interface{}{
			"pool_id":            pool.PoolID,
			"duration_ms":        elapsed.Milliseconds(),
			"throughput_per_sec": throughput,
			"total_orders":       totalOrders,
			"failed_orders":      totalFailed,
			"settled":            results.Settled,
			"conflicts":          results.Conflicts,
			"shares_sold":        sharesSold.String(),
		},
		"latency_bid":    latencyReport(results.BidLatencies),
		"latency_ask":    latencyReport(results.AskLatencies),
		"latency_settle": latencyReport(results.SettleLatencies),
		"timestamp":      time.Now().Format(time.RFC3339),
	}

	file, err := os.Create(*outputFile)
	if err != nil {
		fatal("create report file: %v", err)
	}
	defer file.Close()
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		fatal("write report: %v", err)
	}
	fmt.Printf("\nReport saved to: %s\n", *outputFile)
}
