package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	numAccounts int
	jwtSecret   string
	seedAmount  string
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Created
	fail422       uint64 // Insufficient funds / validation rejections
	failOther     uint64
)

// benchAccount is one participant created through the deposit endpoint.
type benchAccount struct {
	id    string
	token string
}

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&numAccounts, "accounts", 100, "Number of benchmark accounts")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "HS256 secret the target API is configured with")
	flag.StringVar(&seedAmount, "seed-amount", "10000.0000", "Initial deposit per benchmark account")
}

func main() {
	flag.Parse()
	if jwtSecret == "" {
		log.Fatal("-jwt-secret is required")
	}
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	accounts, err := setupAccounts()
	if err != nil {
		log.Fatalf("Account setup failed: %v", err)
	}
	log.Printf("Created %d benchmark accounts", len(accounts))

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start, accounts)
	}

	wg.Wait()
	printResults(time.Since(start))
}

// setupAccounts bootstraps participants through the deposit endpoint, which
// creates unknown emails on the fly, then signs one sender token per account.
func setupAccounts() ([]benchAccount, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	runID := time.Now().UnixNano()
	bootstrapToken, err := signToken(uuid.NewString())
	if err != nil {
		return nil, err
	}

	accounts := make([]benchAccount, 0, numAccounts)
	for i := 0; i < numAccounts; i++ {
		payload := map[string]string{
			"email":     fmt.Sprintf("bench-%d-%04d@load.local", runID, i),
			"full_name": fmt.Sprintf("Bench Account %04d", i),
			"amount":    seedAmount,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/deposits", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+bootstrapToken)

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		var result struct {
			AccountID string `json:"account_id"`
		}
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("deposit bootstrap returned %d", resp.StatusCode)
		}

		token, err := signToken(result.AccountID)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, benchAccount{id: result.AccountID, token: token})
	}
	return accounts, nil
}

func signToken(sub string) (string, error) {
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(2 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
}

func worker(wg *sync.WaitGroup, start time.Time, accounts []benchAccount) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		from, to := pickPair(accounts)

		payload := map[string]interface{}{
			"receiver_id": to.id,
			"amount":      "1.0000",
			"description": "benchmark transfer",
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+"/api/v1/transfers", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+from.token)

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 422:
			atomic.AddUint64(&fail422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func pickPair(accounts []benchAccount) (benchAccount, benchAccount) {
	n := len(accounts)

	if workload == "hotspot" && n >= 2 {
		// Hotspot: 90% of traffic bounces between the first two accounts
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return accounts[0], accounts[1]
			}
			return accounts[1], accounts[0]
		}
	}

	// Uniform Random
	a := rand.Intn(n)
	b := rand.Intn(n)
	for a == b {
		b = rand.Intn(n)
	}
	return accounts[a], accounts[b]
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f422 := atomic.LoadUint64(&fail422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	rejectRate := float64(f422) / float64(total) * 100

	results := map[string]interface{}{
		"workload":        workload,
		"duration_sec":    d.Seconds(),
		"total_requests":  total,
		"throughput_tps":  tps,
		"success_created": s201,
		"rejected_422":    f422,
		"reject_rate_pct": rejectRate,
		"errors":          fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
