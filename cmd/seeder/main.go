package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/suretyops/internal/domain"
)

// The seeder is the bootstrap step: it provisions the journal schema, funds the
// first airline past the threshold so it can sponsor admissions, and authorizes
// the governance account as a privileged caller.

const journalSchema = `
CREATE TABLE IF NOT EXISTS journal (
    id         UUID PRIMARY KEY,
    op         TEXT NOT NULL,
    actor      TEXT NOT NULL,
    entity_key TEXT NOT NULL,
    amount     BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS journal_actor_idx ON journal (actor, created_at DESC);
`

func main() {
	apiURL := envOr("API_URL", "http://localhost:8080")
	owner := envOr("OWNER_ACCOUNT", "owner")
	firstAirline := envOr("FIRST_AIRLINE_ACCOUNT", "airline-1")
	governance := envOr("GOVERNANCE_ACCOUNT", owner)

	if dbURL := os.Getenv("DB_SOURCE"); dbURL != "" {
		ctx := context.Background()
		conn, err := pgx.Connect(ctx, dbURL)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v\n", err)
		}
		defer conn.Close(ctx)

		if _, err := conn.Exec(ctx, journalSchema); err != nil {
			log.Fatalf("Schema creation failed: %v", err)
		}
		log.Println("Journal schema ready.")
	}

	// Fund the first airline with 10 native units so it becomes operational.
	fundBody := map[string]int64{"amount": 10 * domain.Unit}
	post(apiURL+"/api/v1/airlines/"+firstAirline+"/fund", fundBody)
	log.Printf("First airline %s funded.", firstAirline)

	// Authorize the governance account to credit insurees directly.
	authBody := map[string]string{"caller": owner, "account": governance}
	post(apiURL+"/api/v1/callers/authorize", authBody)
	log.Printf("Caller %s authorized.", governance)
}

func post(url string, payload any) {
	body, _ := json.Marshal(payload)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e map[string]string
		json.NewDecoder(resp.Body).Decode(&e)
		log.Fatalf("POST %s returned %d: %s", url, resp.StatusCode, e["error"])
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
