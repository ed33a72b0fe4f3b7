package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTarget = "http://localhost:8080"
	seedCount     = 20
	totalRequests = 500
	concurrency   = 50
)

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
}

func main() {
	ctx := context.Background()
	target := getEnv("STRESS_TARGET", defaultTarget)
	client := &http.Client{Timeout: 10 * time.Second}

	// Login as operator
	token, err := login(ctx, client, target, getEnv("OPERATOR_USERNAME", "admin"), os.Getenv("OPERATOR_PASSWORD"))
	if err != nil {
		log.Fatalf("failed to login: %v", err)
	}

	// Seed mirror records under a random identifier range
	base := uint64(uuid.New().ID()) << 16
	g, gctx := errgroup.WithContext(ctx)
	for i := uint64(0); i < seedCount; i++ {
		id := base + i
		g.Go(func() error {
			return seed(gctx, client, target, token, id)
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("failed to seed records: %v", err)
	}

	// Counters
	var found, notFound, failed atomic.Int32

	// Spawn concurrent lookups; every other request asks for an unknown identifier
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(n int) {
			defer wg.Done()
			defer func() { <-sem }()

			id := base + uint64(n%seedCount)
			if n%2 == 1 {
				id = base + seedCount + uint64(n)
			}
			status, err := lookup(ctx, client, target, id)
			switch {
			case err != nil:
				failed.Add(1)
			case status == http.StatusOK:
				found.Add(1)
			case status == http.StatusNotFound:
				notFound.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Seeded Records:   %d\n", seedCount)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Found:            %d\n", found.Load())
	fmt.Printf("Not Found:        %d\n", notFound.Load())
	fmt.Printf("Failed:           %d\n", failed.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Throughput:       %.0f req/s\n", float64(totalRequests)/elapsed.Seconds())
	fmt.Println("==========================================")

	// Assertions
	want := int32(totalRequests / 2)
	if found.Load() == want && notFound.Load() == want && failed.Load() == 0 {
		fmt.Printf("PASS: %d found, %d not found\n", want, want)
	} else {
		fmt.Printf("FAIL: expected %d/%d/0 found/not found/failed, got %d/%d/%d\n",
			want, want, found.Load(), notFound.Load(), failed.Load())
	}
}

func login(ctx context.Context, client *http.Client, target, username, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target+"/api/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("login rejected: status %d", resp.StatusCode)
	}
	return out.Token, nil
}

func seed(ctx context.Context, client *http.Client, target, token string, id uint64) error {
	body, _ := json.Marshal(map[string]interface{}{
		"productId":      id,
		"name":           fmt.Sprintf("stress-%d", id),
		"productionDate": "2024-01-01",
		"expiryDate":     "2026-01-01",
		"medicalInfo":    "load test",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target+"/api/add-product", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("seed %d: status %d", id, resp.StatusCode)
	}
	return nil
}

func lookup(ctx context.Context, client *http.Client, target string, id uint64) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api/get-product?productId=%d", target, id), nil)
	if err != nil {
		return 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
