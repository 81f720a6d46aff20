package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/suretyops/internal/domain"
)

// Config holds the simulation settings
var (
	targetURL   string
	oracleCount int
	duration    time.Duration
	interval    time.Duration
	fee         int64
)

// Metrics
var (
	submitted uint64
	accepted  uint64
	ignored   uint64
	failed    uint64
)

var statusCodes = []domain.StatusCode{
	domain.StatusUnknown,
	domain.StatusOnTime,
	domain.StatusLateAirline,
	domain.StatusLateWeather,
	domain.StatusLateTechnical,
	domain.StatusLateOther,
}

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&oracleCount, "oracles", 10, "Number of simulated oracles")
	flag.DurationVar(&duration, "duration", 60*time.Second, "Simulation duration")
	flag.DurationVar(&interval, "interval", 2*time.Second, "Poll interval for open requests")
	flag.Int64Var(&fee, "fee", domain.Unit, "Registration fee paid per oracle, in base units")
}

type oracle struct {
	account domain.Account
	indexes [3]int
}

func main() {
	flag.Parse()
	log.Printf("Starting Oracle Simulation: %d oracles | Duration: %s", oracleCount, duration)

	client := &http.Client{Timeout: 5 * time.Second}
	oracles := registerOracles(client)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(len(oracles))
	for _, o := range oracles {
		go worker(&wg, client, o, start)
	}
	wg.Wait()
	printResults(time.Since(start))
}

func registerOracles(client *http.Client) []oracle {
	oracles := make([]oracle, 0, oracleCount)
	for i := 0; i < oracleCount; i++ {
		account := domain.Account(fmt.Sprintf("oracle-%s", uuid.NewString()[:8]))
		payload := map[string]any{"account": account, "fee": fee}
		var reg struct {
			Indexes [3]int `json:"indexes"`
		}
		if err := postJSON(client, targetURL+"/api/v1/oracles", payload, &reg); err != nil {
			log.Fatalf("Oracle registration failed: %v", err)
		}
		log.Printf("Oracle registered %s : %v", account, reg.Indexes)
		oracles = append(oracles, oracle{account: account, indexes: reg.Indexes})
	}
	return oracles
}

// worker polls for open requests and answers every one whose index the oracle
// holds, with a uniformly random status code, until the duration elapses.
func worker(wg *sync.WaitGroup, client *http.Client, o oracle, start time.Time) {
	defer wg.Done()

	for time.Since(start) < duration {
		requests, err := fetchOpenRequests(client)
		if err != nil {
			atomic.AddUint64(&failed, 1)
			time.Sleep(interval)
			continue
		}
		for _, req := range requests {
			if !holdsIndex(o, req.Index) {
				continue
			}
			status := statusCodes[rand.Intn(len(statusCodes))]
			payload := map[string]any{
				"index":     req.Index,
				"airline":   req.Key.Airline,
				"flight":    req.Key.Flight,
				"timestamp": req.Key.Timestamp,
				"status":    status,
				"oracle":    o.account,
			}
			var res struct {
				Resolved bool `json:"resolved"`
			}
			atomic.AddUint64(&submitted, 1)
			if err := postJSON(client, targetURL+"/api/v1/oracles/responses", payload, &res); err != nil {
				atomic.AddUint64(&ignored, 1)
				continue
			}
			atomic.AddUint64(&accepted, 1)
			if res.Resolved {
				log.Printf("Request resolved by %s: %s status=%d", o.account, req.Key.Flight, status)
			}
		}
		time.Sleep(interval)
	}
}

func holdsIndex(o oracle, index int) bool {
	return o.indexes[0] == index || o.indexes[1] == index || o.indexes[2] == index
}

func fetchOpenRequests(client *http.Client) ([]domain.StatusRequestView, error) {
	resp, err := client.Get(targetURL + "/api/v1/oracles/requests")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var requests []domain.StatusRequestView
	if err := json.NewDecoder(resp.Body).Decode(&requests); err != nil {
		return nil, err
	}
	return requests, nil
}

func postJSON(client *http.Client, url string, payload, out any) error {
	body, _ := json.Marshal(payload)
	resp, err := client.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e map[string]string
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s: %s", resp.Status, e["error"])
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func printResults(elapsed time.Duration) {
	fmt.Println("\n--- Simulation Results ---")
	fmt.Printf("Elapsed:   %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Submitted: %d\n", atomic.LoadUint64(&submitted))
	fmt.Printf("Accepted:  %d\n", atomic.LoadUint64(&accepted))
	fmt.Printf("Rejected:  %d\n", atomic.LoadUint64(&ignored))
	fmt.Printf("Poll errs: %d\n", atomic.LoadUint64(&failed))
}
