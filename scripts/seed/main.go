// Package main implements a standalone seed script that populates a running
// shoppingcart service with demo data. It writes variant ids directly into
// the Redis read model (which is otherwise only fed by product-variant.created
// events) and then fills demo user carts through the HTTP API so the real
// validation and merge paths are exercised.
//
// Run: go run ./scripts/seed
//   (with the service and Redis reachable; see the SEED_* variables below)
package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// --------------------------------------------------------------------------
// Configuration helpers
// --------------------------------------------------------------------------

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("%s must be an integer, got %q", key, v)
	}
	return n
}

// --------------------------------------------------------------------------
// Deterministic UUID generation from an index
// --------------------------------------------------------------------------

// deterministicUUID produces a stable UUID v4-layout string from a namespace
// and an integer index so that re-runs always produce the same ids.
func deterministicUUID(namespace string, index int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", namespace, index)))
	hex := fmt.Sprintf("%x", h[:16]) // 32 hex chars from first 16 bytes
	// Inject version nibble (4) and variant bits (10xx).
	return fmt.Sprintf("%s-%s-4%s-%x%s-%s",
		hex[0:8],
		hex[8:12],
		hex[13:16],
		0x8|(h[8]&0x3),
		hex[17:20],
		hex[20:32],
	)
}

// --------------------------------------------------------------------------
// HTTP helpers
// --------------------------------------------------------------------------

func httpPost(url, userID string, body any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Seed steps
// --------------------------------------------------------------------------

const sadBatchSize = 500

// seedVariants records variantCount deterministic variant ids in the read
// model set so the service resolves them without a catalog round trip.
func seedVariants(ctx context.Context, rdb *redis.Client, key string, variantCount int) []string {
	variants := make([]string, variantCount)
	for i := range variants {
		variants[i] = deterministicUUID("demo-variant", i)
	}

	for start := 0; start < len(variants); start += sadBatchSize {
		end := start + sadBatchSize
		if end > len(variants) {
			end = len(variants)
		}
		batch := make([]any, 0, end-start)
		for _, id := range variants[start:end] {
			batch = append(batch, id)
		}
		if err := rdb.SAdd(ctx, key, batch...).Err(); err != nil {
			log.Fatalf("seed variants (batch %d-%d): %v", start, end, err)
		}
		log.Printf("seeded variants %d-%d of %d", start, end, len(variants))
	}

	return variants
}

// seedCarts fills cartCount demo user carts through the HTTP API; each cart
// gets 1-4 random variants with quantities 1-3. Returns how many item adds
// failed.
func seedCarts(serviceURL string, variants []string, cartCount int, rng *rand.Rand) int {
	itemsURL := serviceURL + "/api/v1/cart/items"
	failures := 0

	for i := 0; i < cartCount; i++ {
		userID := deterministicUUID("demo-user", i)
		itemCount := 1 + rng.Intn(4)

		for j := 0; j < itemCount; j++ {
			body := map[string]any{
				"variant_id": variants[rng.Intn(len(variants))],
				"quantity":   1 + rng.Intn(3),
			}
			if _, err := httpPost(itemsURL, userID, body); err != nil {
				log.Printf("warning: add item for user %s: %v", userID, err)
				failures++
			}
		}

		if (i+1)%10 == 0 {
			log.Printf("seeded carts %d of %d", i+1, cartCount)
		}
	}

	return failures
}

// --------------------------------------------------------------------------
// Main
// --------------------------------------------------------------------------

func main() {
	serviceURL := getEnv("SHOPPINGCART_URL", "http://localhost:8080")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	redisPass := getEnv("REDIS_PASSWORD", "")
	redisDB := getEnvInt("REDIS_DB", 0)
	variantCount := getEnvInt("SEED_VARIANTS", 200)
	cartCount := getEnvInt("SEED_CARTS", 50)

	// The read model set name must match the service's catalog package.
	const knownVariantsKey = "variants:known"

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPass,
		DB:       redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("connect to redis at %s: %v", redisAddr, err)
	}
	defer rdb.Close()

	log.Printf("seeding %d variants and %d demo carts against %s", variantCount, cartCount, serviceURL)

	// Step 1: variant read model, written directly (no public endpoint).
	variants := seedVariants(ctx, rdb, knownVariantsKey, variantCount)

	// Step 2: demo carts, through the API so validation and merging run.
	rng := rand.New(rand.NewSource(42))
	failures := seedCarts(serviceURL, variants, cartCount, rng)

	if failures > 0 {
		log.Printf("done with %d failed item adds (is the service running at %s?)", failures, serviceURL)
		os.Exit(1)
	}
	log.Printf("done: %d variants known, %d demo carts filled", variantCount, cartCount)
}
