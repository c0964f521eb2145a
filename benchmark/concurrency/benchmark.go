package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/benchmark/ledgerclient"
)

type WorkflowResult struct {
	Success  bool
	Latency  time.Duration
	ErrorMsg string
}

func main() {
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	duration := flag.Int("duration", 30, "Test duration in seconds")
	port := flag.String("port", "5000", "Ledger HTTP port")
	address := flag.String("address", "0x1234567890abcdef1234567890abcdef12345678", "Wallet address to connect")
	insurer := flag.String("insurer", "demo_insurer", "Participant ID issuing the policy")
	flag.Parse()

	recordsDir := "./records"
	os.MkdirAll(recordsDir, 0755)

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(recordsDir, fmt.Sprintf(
		"concurrency_%s_w%d_d%ds.csv",
		timestamp, *workers, *duration,
	))

	baseURL := fmt.Sprintf("http://127.0.0.1:%s/api", *port)

	fmt.Println("========================================")
	fmt.Println("   CONCURRENCY BENCHMARK")
	fmt.Println("========================================")
	fmt.Printf("Workers:    %d\n", *workers)
	fmt.Printf("Duration:   %ds\n", *duration)
	fmt.Printf("Ledger URL: %s\n", baseURL)
	fmt.Printf("Output:     %s\n", filename)
	fmt.Println("========================================")
	fmt.Println("")

	vehicleID, err := setup(ledgerclient.New(baseURL, 30*time.Second), *address, *insurer)
	if err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		return
	}
	fmt.Printf("Insured vehicle: %s\n", vehicleID)

	// Channels for communication
	stopChan := make(chan struct{})
	resultsChan := make(chan WorkflowResult, *workers*10)

	// Counters
	var totalReqs int64
	var successReqs int64
	var failedReqs int64
	var totalLatency int64
	var minLatency int64 = 1<<63 - 1
	var maxLatency int64 = 0

	var wg sync.WaitGroup

	startTime := time.Now()

	fmt.Println("Starting workers...")
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go worker(baseURL, vehicleID, stopChan, resultsChan, &wg)
	}

	// Start result collector
	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for result := range resultsChan {
			total := atomic.AddInt64(&totalReqs, 1)

			if result.Success {
				atomic.AddInt64(&successReqs, 1)
				latencyNs := result.Latency.Nanoseconds()
				atomic.AddInt64(&totalLatency, latencyNs)

				for {
					old := atomic.LoadInt64(&minLatency)
					if latencyNs >= old || atomic.CompareAndSwapInt64(&minLatency, old, latencyNs) {
						break
					}
				}

				for {
					old := atomic.LoadInt64(&maxLatency)
					if latencyNs <= old || atomic.CompareAndSwapInt64(&maxLatency, old, latencyNs) {
						break
					}
				}
			} else {
				atomic.AddInt64(&failedReqs, 1)
			}

			// Progress indicator
			if total%10 == 0 {
				fmt.Printf("\rRequests: %d | Success: %d | Failed: %d | TPS: %.2f",
					total, atomic.LoadInt64(&successReqs), atomic.LoadInt64(&failedReqs),
					float64(total)/time.Since(startTime).Seconds())
			}
		}
	}()

	fmt.Printf("Running benchmark for %d seconds...\n", *duration)
	time.Sleep(time.Duration(*duration) * time.Second)

	// Stop workers
	close(stopChan)
	wg.Wait()
	close(resultsChan)
	collectorWg.Wait()

	elapsed := time.Since(startTime)

	tps := float64(totalReqs) / elapsed.Seconds()
	avgLatency := time.Duration(0)
	if successReqs > 0 {
		avgLatency = time.Duration(totalLatency / successReqs)
	}
	if successReqs == 0 {
		minLatency = 0
	}

	fmt.Println("\n\n========================================")
	fmt.Println("   BENCHMARK RESULTS")
	fmt.Println("========================================")
	fmt.Printf("Total Requests:    %d\n", totalReqs)
	if totalReqs > 0 {
		fmt.Printf("Successful:        %d (%.2f%%)\n", successReqs, float64(successReqs)/float64(totalReqs)*100)
		fmt.Printf("Failed:            %d (%.2f%%)\n", failedReqs, float64(failedReqs)/float64(totalReqs)*100)
	}
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Printf("Throughput (TPS):  %.2f\n", tps)
	fmt.Printf("Avg Latency:       %v\n", avgLatency)
	fmt.Printf("Min Latency:       %v\n", time.Duration(minLatency))
	fmt.Printf("Max Latency:       %v\n", time.Duration(maxLatency))
	fmt.Println("========================================")

	file, err := os.Create(filename)
	if err != nil {
		fmt.Printf("Error creating file: %v\n", err)
		return
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{
		"Workers", "Duration_s",
		"Total_Requests", "Successful", "Failed",
		"TPS", "Avg_Latency_ms", "Min_Latency_ms", "Max_Latency_ms",
	})

	writer.Write([]string{
		fmt.Sprintf("%d", *workers),
		fmt.Sprintf("%d", *duration),
		fmt.Sprintf("%d", totalReqs),
		fmt.Sprintf("%d", successReqs),
		fmt.Sprintf("%d", failedReqs),
		fmt.Sprintf("%.2f", tps),
		fmt.Sprintf("%.2f", float64(avgLatency.Microseconds())/1000),
		fmt.Sprintf("%.2f", float64(time.Duration(minLatency).Microseconds())/1000),
		fmt.Sprintf("%.2f", float64(time.Duration(maxLatency).Microseconds())/1000),
	})

	fmt.Printf("\nResults saved to: %s\n", filename)
}

// setup registers one insured vehicle and leaves the insurer logged in
func setup(client *ledgerclient.Client, address, insurer string) (string, error) {
	if err := client.LoginWallet(address); err != nil {
		return "", err
	}

	var vehicle ledgerclient.Write
	err := client.Post("/vehicles", map[string]interface{}{
		"vin":                 fmt.Sprintf("CONC%d", time.Now().UnixNano()),
		"make":                "Daihatsu",
		"model":               "Xenia",
		"year":                2023,
		"registration_number": "B 9999 CC",
	}, &vehicle)
	if err != nil {
		return "", fmt.Errorf("register vehicle: %w", err)
	}

	if err := client.LoginAs(insurer); err != nil {
		return "", err
	}
	err = client.Post("/policies", map[string]interface{}{
		"vehicle_id":      vehicle.Record.ID,
		"coverage_amount": 75000,
		"premium":         1500,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("create policy: %w", err)
	}
	return vehicle.Record.ID, nil
}

func worker(baseURL, vehicleID string, stopChan chan struct{}, resultsChan chan WorkflowResult, wg *sync.WaitGroup) {
	defer wg.Done()

	// short timeout so a stalled request shows up as a failure
	client := ledgerclient.New(baseURL, 5*time.Second)

	for {
		select {
		case <-stopChan:
			return
		default:
			start := time.Now()
			err := runWorkflow(client, vehicleID)
			latency := time.Since(start)

			result := WorkflowResult{
				Success: err == nil,
				Latency: latency,
			}
			if err != nil {
				result.ErrorMsg = err.Error()
			}

			resultsChan <- result
		}
	}
}

// runWorkflow performs the read side of a claim check
func runWorkflow(client *ledgerclient.Client, vehicleID string) error {
	// 1. Validate Insurance
	var validation ledgerclient.Validation
	if err := client.Get(fmt.Sprintf("/vehicles/%s/validation", vehicleID), &validation); err != nil {
		return fmt.Errorf("validate insurance: %w", err)
	}
	if !validation.Result.Valid {
		return fmt.Errorf("validate insurance: %s", validation.Result.Error)
	}

	// 2. Policy Lookup
	if err := client.Get(fmt.Sprintf("/vehicles/%s/policy", vehicleID), nil); err != nil {
		return fmt.Errorf("policy lookup: %w", err)
	}

	// 3. Gas Estimate
	if err := client.Post("/policies/estimate", map[string]interface{}{"coverage_amount": 75000}, nil); err != nil {
		return fmt.Errorf("estimate: %w", err)
	}

	return nil
}
