// Package marketplace is a REST client for the expert marketplace's public
// profile API.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/expert-call-booker/internal/experts"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 200
	// maxResponseBody caps how much of a profile response is read.
	maxResponseBody = 1 << 20
)

// ErrProfileNotFound is returned when the marketplace has no such username.
var ErrProfileNotFound = errors.New("marketplace: profile not found")

// Client fetches expert profiles.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. "https://api.marketplace.example/v1").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// profileResponse is the API's wire shape; service types arrive as free-form
// strings and prices as bare numbers.
type profileResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Headline string `json:"headline"`
	Bio      string `json:"bio"`
	Timezone string `json:"timezone"`
	Services []struct {
		ID          string  `json:"id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		Price       float64 `json:"price"`
		Currency    string  `json:"currency"`
		Type        string  `json:"type"`
		Duration    int     `json:"duration"`
	} `json:"services"`
}

// FetchProfile loads the profile and service list for username.
func (c *Client) FetchProfile(ctx context.Context, username string) (*experts.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("marketplace: username is required")
	}

	endpoint := c.baseURL + "/profile/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("marketplace: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marketplace: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("marketplace: read response: %w", err)
	}
	if len(body) > maxResponseBody {
		return nil, fmt.Errorf("marketplace: response for %s exceeds %d bytes", username, maxResponseBody)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, username)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("marketplace: API returned %d: %s", resp.StatusCode, string(body[:min(maxErrorBody, len(body))]))
	}

	var wire profileResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("marketplace: decode profile: %w", err)
	}

	profile := &experts.Profile{
		ID:       wire.ID,
		Username: wire.Username,
		FullName: wire.Name,
		Headline: wire.Headline,
		Bio:      wire.Bio,
		Timezone: wire.Timezone,
		Services: make([]experts.ServiceOffering, 0, len(wire.Services)),
	}
	if profile.Username == "" {
		profile.Username = username
	}
	for _, s := range wire.Services {
		profile.Services = append(profile.Services, experts.ServiceOffering{
			ID:              s.ID,
			Title:           s.Title,
			Description:     s.Description,
			Price:           experts.Money{Amount: s.Price, Currency: strings.ToUpper(s.Currency)},
			Type:            experts.ParseServiceType(s.Type),
			DurationMinutes: s.Duration,
		})
	}

	c.logger.Debug("marketplace: profile fetched", "username", username, "services", len(profile.Services))
	return profile, nil
}
