// Command smoke posts a few booking requests to a running API server and
// checks the status codes. Point it at a server started with DRY_RUN=true so
// no real calls are booked.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 ADMIN_JWT_SECRET=... go run ./scripts/smoke [scenario]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

type scenario struct {
	name       string
	body       string
	wantStatus int
	// wantError is the "error" code expected in a non-200 body.
	wantError string
}

var scenarios = []scenario{
	{
		name:       "schema-violation",
		body:       `{"targetCompany":"Acme","numCalls":"two"}`,
		wantStatus: http.StatusBadRequest,
		wantError:  "validation_failed",
	},
	{
		name:       "unknown-timezone",
		body:       `{"targetCompany":"Acme","targetRole":"designer","numCalls":1,"maxPrice":0,"availability":[{"days":["Mon"],"start":"09:00","end":"17:00","timezone":"Mars/Olympus"}]}`,
		wantStatus: http.StatusBadRequest,
		wantError:  "validation_failed",
	},
	{
		name:       "free-designer-dry-run",
		body:       `{"targetCompany":"Acme","targetRole":"designer","numCalls":1,"maxPrice":0,"availability":[{"days":["Mon","Tue","Wed","Thu","Fri"],"start":"09:00","end":"17:00","timezone":"America/New_York"}]}`,
		wantStatus: http.StatusOK,
	},
}

func main() {
	_ = godotenv.Load()

	apiBase := strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}
	token, err := operatorToken(os.Getenv("ADMIN_JWT_SECRET"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}

	only := ""
	if len(os.Args) > 1 {
		only = os.Args[1]
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	failed := 0
	for _, sc := range scenarios {
		if only != "" && sc.name != only {
			continue
		}
		if err := runScenario(client, apiBase, token, sc); err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", sc.name, err)
			continue
		}
		fmt.Printf("ok   %s\n", sc.name)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// operatorToken returns "" when no secret is set; the API is then open.
func operatorToken(secret string) (string, error) {
	if secret == "" {
		return "", nil
	}
	claims := jwt.RegisteredClaims{
		Subject:   "smoke",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func runScenario(client *http.Client, apiBase, token string, sc scenario) error {
	req, err := http.NewRequest(http.MethodPost, apiBase+"/api/v1/bookings", bytes.NewBufferString(sc.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != sc.wantStatus {
		return fmt.Errorf("status %d, want %d: %s", resp.StatusCode, sc.wantStatus, raw)
	}
	if sc.wantError == "" {
		var out struct {
			RunID       string `json:"runId"`
			BookedCount int    `json:"bookedCount"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Printf("     run %s booked %d\n", out.RunID, out.BookedCount)
		return nil
	}
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode error body: %w", err)
	}
	if out.Error != sc.wantError {
		return fmt.Errorf("error %q, want %q", out.Error, sc.wantError)
	}
	return nil
}
