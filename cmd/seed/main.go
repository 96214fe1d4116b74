// Seed tool for populating a running Kestrel instance with demo traffic.
//
// Usage:
//   go run cmd/seed/main.go -url http://localhost:8080 -count 2000
//
// Generates a realistic mix of clean transactions plus a slice of
// fraud patterns (high value, suspicious keywords, rapid bursts,
// location hops, circular transfers) and posts them to the API.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SubmitRequest mirrors the POST /transactions payload.
type SubmitRequest struct {
	AccountID          string  `json:"accountId"`
	Amount             float64 `json:"amount"`
	Description        string  `json:"description,omitempty"`
	Category           string  `json:"category,omitempty"`
	Location           string  `json:"location,omitempty"`
	IPAddress          string  `json:"ipAddress,omitempty"`
	RecipientAccountID string  `json:"recipientAccountId,omitempty"`
	Timestamp          string  `json:"timestamp,omitempty"`
}

var locations = []string{
	"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia",
	"San Antonio", "San Diego", "Dallas", "San Jose", "Austin", "Jacksonville",
	"Fort Worth", "Columbus", "San Francisco", "Charlotte", "Indianapolis", "Seattle",
	"Denver", "Boston", "Las Vegas", "Portland", "Oklahoma City", "Detroit", "Memphis",
}

var merchants = []string{
	"Walmart", "Target", "Amazon", "Best Buy", "Costco", "Home Depot", "Kroger",
	"CVS Pharmacy", "Walgreens", "Apple Store", "McDonald's", "Starbucks", "Shell",
	"ExxonMobil", "7-Eleven", "Subway", "Nike", "Adidas", "Microsoft Store", "GameStop",
}

var categories = []string{"purchase", "transfer", "withdrawal", "deposit"}

var descriptions = map[string][]string{
	"purchase": {
		"Grocery shopping at", "Electronics from", "Clothing purchase at",
		"Household items from", "Food delivery from", "Gas station purchase at",
		"Online shopping at", "Restaurant bill at", "Pharmacy purchase at",
		"Subscription payment to",
	},
	"transfer": {
		"Bank transfer to", "Money sent to", "Payment to", "Transfer for rent to",
		"Utility payment to", "Insurance payment to", "Investment transfer to",
		"Loan payment to", "Salary transfer from", "Service payment to",
	},
	"withdrawal": {
		"ATM withdrawal at", "Cash withdrawal from", "Bank withdrawal at",
	},
	"deposit": {
		"Salary deposit from", "Check deposit at", "Direct deposit from",
		"Investment return from", "Refund from", "Interest credit from",
	},
}

var suspiciousDescriptions = []string{
	"Urgent crypto investment opportunity",
	"Emergency BTC transfer required",
	"Quick cash advance needed",
	"Urgent wire transfer request",
}

var highValueDescriptions = []string{
	"Large electronics purchase",
	"Luxury item purchase",
	"High-value transfer",
	"Premium service payment",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	count := flag.Int("count", 2000, "Number of transactions to generate")
	accounts := flag.Int("accounts", 200, "Number of unique accounts")
	workers := flag.Int("workers", 10, "Number of concurrent senders")
	fraudRatio := flag.Float64("fraud", 0.2, "Fraction of fraud-pattern transactions (0.0-1.0)")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	txns := generate(rng, *count, *accounts, *fraudRatio)
	fmt.Printf("✓ Generated %d transactions\n", len(txns))

	start := time.Now()
	sent, failed := send(txns, *baseURL, *workers)
	elapsed := time.Since(start)

	fmt.Printf("\nSeeding complete in %s\n", elapsed.Round(time.Millisecond))
	fmt.Printf("  Sent:   %d\n", sent)
	fmt.Printf("  Failed: %d\n", failed)
	if elapsed > 0 {
		fmt.Printf("  Rate:   %.0f tx/s\n", float64(sent)/elapsed.Seconds())
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func generate(rng *rand.Rand, count, numAccounts int, fraudRatio float64) []SubmitRequest {
	accountIDs := make([]string, numAccounts)
	for i := range accountIDs {
		accountIDs[i] = fmt.Sprintf("ACC%06d", i+1)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, -6, 0)

	fraudCount := int(float64(count) * fraudRatio)
	normalCount := count - fraudCount

	var txns []SubmitRequest

	for i := 0; i < normalCount; i++ {
		category := pick(rng, categories)
		txns = append(txns, SubmitRequest{
			AccountID:   pick(rng, accountIDs),
			Amount:      randAmount(rng, 10, 2000),
			Description: pick(rng, descriptions[category]) + " " + pick(rng, merchants),
			Category:    category,
			Location:    pick(rng, locations),
			IPAddress:   randIP(rng),
			Timestamp:   randTime(rng, start, end).Format(time.RFC3339),
		})
	}

	for i := 0; i < fraudCount; i++ {
		account := pick(rng, accountIDs)
		switch rng.Intn(5) {
		case 0: // high value
			txns = append(txns, SubmitRequest{
				AccountID:   account,
				Amount:      randAmount(rng, 10000, 50000),
				Description: pick(rng, highValueDescriptions),
				Category:    "purchase",
				Location:    pick(rng, locations),
				IPAddress:   randIP(rng),
				Timestamp:   randTime(rng, start, end).Format(time.RFC3339),
			})
		case 1: // suspicious keywords
			txns = append(txns, SubmitRequest{
				AccountID:   account,
				Amount:      randAmount(rng, 1000, 8000),
				Description: pick(rng, suspiciousDescriptions),
				Category:    "transfer",
				Location:    pick(rng, locations),
				IPAddress:   randIP(rng),
				Timestamp:   randTime(rng, start, end).Format(time.RFC3339),
			})
		case 2: // rapid burst
			base := randTime(rng, start, end)
			for j := 0; j < 3; j++ {
				txns = append(txns, SubmitRequest{
					AccountID:   account,
					Amount:      randAmount(rng, 1000, 5000),
					Description: fmt.Sprintf("Quick Transfer %d", j+1),
					Category:    "transfer",
					Location:    pick(rng, locations),
					IPAddress:   randIP(rng),
					Timestamp:   base.Add(time.Duration(j) * 2 * time.Minute).Format(time.RFC3339),
				})
			}
		case 3: // location hop
			base := randTime(rng, start, end)
			first := pick(rng, locations)
			second := first
			for second == first {
				second = pick(rng, locations)
			}
			txns = append(txns,
				SubmitRequest{
					AccountID:   account,
					Amount:      randAmount(rng, 100, 1000),
					Description: "Purchase at local store",
					Category:    "purchase",
					Location:    first,
					IPAddress:   randIP(rng),
					Timestamp:   base.Format(time.RFC3339),
				},
				SubmitRequest{
					AccountID:   account,
					Amount:      randAmount(rng, 100, 1000),
					Description: "Online purchase",
					Category:    "purchase",
					Location:    second,
					IPAddress:   randIP(rng),
					Timestamp:   base.Add(30 * time.Minute).Format(time.RFC3339),
				},
			)
		case 4: // circular transfers
			base := randTime(rng, start, end)
			amount := randAmount(rng, 3000, 7000)
			ring := []string{account}
			for len(ring) < 3 {
				next := pick(rng, accountIDs)
				if next != ring[0] && (len(ring) < 2 || next != ring[1]) {
					ring = append(ring, next)
				}
			}
			for j := 0; j < 3; j++ {
				recipient := ring[(j+1)%3]
				txns = append(txns, SubmitRequest{
					AccountID:          ring[j],
					Amount:             amount,
					Description:        "Transfer to " + recipient,
					Category:           "transfer",
					Location:           pick(rng, locations),
					IPAddress:          randIP(rng),
					RecipientAccountID: recipient,
					Timestamp:          base.Add(time.Duration(j) * 5 * time.Minute).Format(time.RFC3339),
				})
			}
		}
	}

	sort.Slice(txns, func(i, j int) bool {
		return txns[i].Timestamp < txns[j].Timestamp
	})
	return txns
}

func send(txns []SubmitRequest, baseURL string, numWorkers int) (sent, failed int64) {
	work := make(chan SubmitRequest, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}
			for req := range work {
				if err := post(client, baseURL, req); err != nil {
					atomic.AddInt64(&failed, 1)
					continue
				}
				atomic.AddInt64(&sent, 1)
			}
		}()
	}

	for _, tx := range txns {
		work <- tx
	}
	close(work)
	wg.Wait()
	return sent, failed
}

func post(client *http.Client, baseURL string, req SubmitRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resp, err := client.Post(baseURL+"/transactions", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func randAmount(rng *rand.Rand, min, max float64) float64 {
	return float64(int((rng.Float64()*(max-min)+min)*100)) / 100
}

func randIP(rng *rand.Rand) string {
	return fmt.Sprintf("%d.%d.%d.%d", rng.Intn(256), rng.Intn(256), rng.Intn(256), rng.Intn(256))
}

func randTime(rng *rand.Rand, start, end time.Time) time.Time {
	span := end.Sub(start)
	return start.Add(time.Duration(rng.Int63n(int64(span))))
}
