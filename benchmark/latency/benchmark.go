package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ahmadzakiakmal/insurance-ledger/benchmark/ledgerclient"
)

type Result struct {
	Step        string
	Latency     time.Duration
	BlockHeight int64
}

func main() {
	iterations := flag.Int("n", 100, "Number of iterations")
	port := flag.String("port", "5000", "Ledger HTTP port")
	address := flag.String("address", "0x1234567890abcdef1234567890abcdef12345678", "Wallet address to connect")
	insurer := flag.String("insurer", "demo_insurer", "Participant ID issuing policies")
	wait := flag.Bool("wait", true, "Wait for the accident report to confirm")
	flag.Parse()

	recordsDir := "./records"
	os.MkdirAll(recordsDir, 0755)

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(recordsDir, fmt.Sprintf("latency_%s_n%d.csv", timestamp, *iterations))

	file, err := os.Create(filename)
	if err != nil {
		fmt.Printf("Error creating file: %v\n", err)
		return
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"Iteration", "Step", "Latency_ms", "BlockHeight"})

	baseURL := fmt.Sprintf("http://127.0.0.1:%s/api", *port)
	client := ledgerclient.New(baseURL, 30*time.Second)

	fmt.Println("========================================")
	fmt.Println("   LATENCY BENCHMARK")
	fmt.Println("========================================")
	fmt.Printf("Iterations: %d\n", *iterations)
	fmt.Printf("Ledger URL: %s\n", baseURL)
	fmt.Printf("Wallet:     %s\n", *address)
	fmt.Printf("Insurer:    %s\n", *insurer)
	fmt.Printf("Output:     %s\n", filename)
	fmt.Println("========================================")
	fmt.Println("")

	successCount := 0
	failCount := 0

	for i := 0; i < *iterations; i++ {
		fmt.Printf("\r[%d/%d] ", i+1, *iterations)

		results, errMsg := runWorkflow(client, *address, *insurer, i, *wait)
		for _, r := range results {
			writer.Write([]string{
				strconv.Itoa(i + 1),
				r.Step,
				strconv.FormatInt(r.Latency.Milliseconds(), 10),
				strconv.FormatInt(r.BlockHeight, 10),
			})
		}
		if errMsg == "" {
			successCount++
			fmt.Print("✓")
		} else {
			failCount++
			fmt.Printf("✗ %s\n", errMsg)
		}

		time.Sleep(50 * time.Millisecond)
	}

	fmt.Printf("\n\n========================================\n")
	fmt.Printf("Success: %d/%d\n", successCount, *iterations)
	if failCount > 0 {
		fmt.Printf("Failed:  %d\n", failCount)
	}
	fmt.Printf("Results: %s\n", filename)
	fmt.Println("========================================")
}

func runWorkflow(client *ledgerclient.Client, address, insurer string, iteration int, wait bool) ([]Result, string) {
	var results []Result
	totalStart := time.Now()

	// 1. Connect wallet and log in as its owner
	start := time.Now()
	if err := client.LoginWallet(address); err != nil {
		return results, fmt.Sprintf("Login Owner: %v", err)
	}
	results = append(results, Result{"Login Owner", time.Since(start), 0})

	// 2. Register Vehicle
	start = time.Now()
	var vehicle ledgerclient.Write
	err := client.Post("/vehicles", map[string]interface{}{
		"vin":                 fmt.Sprintf("BENCH%012d", iteration),
		"make":                "Toyota",
		"model":               "Avanza",
		"year":                2022,
		"registration_number": fmt.Sprintf("B %04d BM", iteration%10000),
	}, &vehicle)
	if err != nil {
		return results, fmt.Sprintf("Register Vehicle: %v", err)
	}
	results = append(results, Result{"Register Vehicle", time.Since(start), vehicle.Transaction.BlockNumber})

	// 3. Create Policy as the insurer
	start = time.Now()
	if err := client.LoginAs(insurer); err != nil {
		return results, fmt.Sprintf("Create Policy: %v", err)
	}
	var policy ledgerclient.Write
	err = client.Post("/policies", map[string]interface{}{
		"vehicle_id":      vehicle.Record.ID,
		"coverage_amount": 50000,
		"premium":         1200,
		"coverage_type":   []string{"Liability", "Collision"},
	}, &policy)
	if err != nil {
		return results, fmt.Sprintf("Create Policy: %v", err)
	}
	results = append(results, Result{"Create Policy", time.Since(start), policy.Transaction.BlockNumber})

	// 4. Validate Insurance
	start = time.Now()
	var validation ledgerclient.Validation
	if err := client.Get(fmt.Sprintf("/vehicles/%s/validation", vehicle.Record.ID), &validation); err != nil {
		return results, fmt.Sprintf("Validate Insurance: %v", err)
	}
	if !validation.Result.Valid {
		return results, fmt.Sprintf("Validate Insurance: %s", validation.Result.Error)
	}
	results = append(results, Result{"Validate Insurance", time.Since(start), 0})

	// 5. Report Accident as the owner
	start = time.Now()
	if err := client.Post("/session/login/wallet", nil, nil); err != nil {
		return results, fmt.Sprintf("Report Accident: %v", err)
	}
	var accident ledgerclient.Write
	err = client.Post("/accidents", map[string]interface{}{
		"vehicle_id":  vehicle.Record.ID,
		"location":    "Jl. Benchmark",
		"description": "Latency benchmark collision",
		"severity":    "Moderate",
		"documents": []map[string]string{
			{"file_name": "photo.jpg", "content": fmt.Sprintf("evidence-%d", iteration)},
		},
	}, &accident)
	if err != nil {
		return results, fmt.Sprintf("Report Accident: %v", err)
	}
	results = append(results, Result{"Report Accident", time.Since(start), accident.Transaction.BlockNumber})

	// 6. Wait for confirmation
	if wait {
		start = time.Now()
		tx, err := client.WaitForConfirmation(accident.Transaction.ID, 10*time.Second, 100*time.Millisecond)
		if err != nil {
			return results, fmt.Sprintf("Confirm Transaction: %v", err)
		}
		results = append(results, Result{"Confirm " + tx.Status, time.Since(start), tx.BlockNumber})
	}

	// Total
	results = append(results, Result{"Complete Workflow", time.Since(totalStart), 0})

	return results, ""
}
