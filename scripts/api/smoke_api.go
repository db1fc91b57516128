// End-to-end smoke test against a running catchfleet instance.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	baseURL  = getenv("API_URL", "http://localhost:5000/api")
	redisURL = getenv("REDIS_URL", "")
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	ctx := context.Background()
	started := time.Now()

	id := createAccount()
	checkAccount(id)
	renameAccount(id)

	// a made-up token never gets past login
	doJSON("POST", fmt.Sprintf("/accounts/%d/start", id), nil, nil, http.StatusInternalServerError)
	checkLoginLogged(id)
	doJSON("POST", fmt.Sprintf("/accounts/%d/command", id), map[string]any{
		"type":    "say",
		"payload": "hello",
	}, nil, http.StatusBadRequest)

	if redisURL != "" {
		rdb := mustRedis()
		defer rdb.Close()
		checkEventStream(ctx, rdb, id, started)
	}

	doJSON("DELETE", fmt.Sprintf("/accounts/%d", id), nil, nil, http.StatusNoContent)
	doJSON("GET", fmt.Sprintf("/accounts/%d", id), nil, nil, http.StatusNotFound)

	fmt.Println("✓ all endpoints passed")
}

// ----------------------------- accounts

func createAccount() uint {
	var resp struct {
		ID     uint
		Status string
	}
	doJSON("POST", "/accounts", map[string]any{
		"name":           "smoke-" + uuid.NewString()[:8],
		"token":          "smoke-" + uuid.NewString(),
		"catchChannelId": "100000000000000001",
		"spamChannelId":  "100000000000000002",
	}, &resp, http.StatusCreated)
	if resp.ID == 0 || resp.Status != "stopped" {
		log.Fatalf("create: unexpected account %+v", resp)
	}
	return resp.ID
}

func checkAccount(id uint) {
	var resp struct{ SpamSpeed, CatchSpeed int }
	doJSON("GET", fmt.Sprintf("/accounts/%d", id), nil, &resp, http.StatusOK)
	if resp.SpamSpeed != 3000 || resp.CatchSpeed != 2000 {
		log.Fatalf("get: defaults not applied: %+v", resp)
	}
}

func renameAccount(id uint) {
	var resp struct{ Name string }
	doJSON("PUT", fmt.Sprintf("/accounts/%d", id), map[string]any{"name": "smoke-renamed"}, &resp, http.StatusOK)
	if resp.Name != "smoke-renamed" {
		log.Fatalf("update: name is %q", resp.Name)
	}
}

// ----------------------------- logs

func checkLoginLogged(id uint) {
	var entries []struct{ Type, Content string }
	doJSON("GET", fmt.Sprintf("/logs?accountId=%d&limit=10", id), nil, &entries, http.StatusOK)
	for _, e := range entries {
		if e.Type == "error" && strings.HasPrefix(e.Content, "Login failed") {
			return
		}
	}
	log.Fatal("logs: login failure not recorded")
}

func checkEventStream(ctx context.Context, rdb *redis.Client, id uint, since time.Time) {
	start := fmt.Sprintf("%d-0", since.UnixMilli())
	msgs, err := rdb.XRange(ctx, "catchfleet.events", start, "+").Result()
	if err != nil {
		log.Fatalf("redis xrange: %v", err)
	}
	want := fmt.Sprint(id)
	for _, m := range msgs {
		if m.Values["account_id"] == want && m.Values["kind"] == "log" {
			return
		}
	}
	log.Fatal("events: no log event published for account")
}

// ----------------------------- helpers

func mustRedis() *redis.Client {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("redis url: %v", err)
	}
	return redis.NewClient(opt)
}

func doJSON(method, path string, body, out any, want int) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			log.Fatalf("%s %s encode: %v", method, path, err)
		}
	}
	req, _ := http.NewRequest(method, baseURL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		log.Fatalf("%s %s: want %d got %d", method, path, want, res.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			log.Fatalf("%s %s decode: %v", method, path, err)
		}
	}
}
