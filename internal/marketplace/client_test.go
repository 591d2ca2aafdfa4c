package marketplace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/expert-call-booker/internal/experts"
	"github.com/wolfman30/expert-call-booker/pkg/logging"
)

func TestFetchProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/profile/jane.doe", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "p-1",
			"username": "jane.doe",
			"name": "Jane Doe",
			"headline": "Product Designer at Acme",
			"bio": "Ten years in design systems.",
			"timezone": "America/New_York",
			"services": [
				{"id": "s-1", "title": "Quick chat", "price": 0, "currency": "usd", "type": "1:1", "duration": 15},
				{"id": "s-2", "title": "Resume review", "price": 25, "currency": "USD", "type": "digital_product"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/v1/", WithLogger(logging.Discard()))
	profile, err := client.FetchProfile(context.Background(), "jane.doe")
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", profile.FullName)
	assert.Equal(t, "America/New_York", profile.Timezone)
	require.Len(t, profile.Services, 2)
	assert.Equal(t, experts.ServiceOffering{
		ID:              "s-1",
		Title:           "Quick chat",
		Price:           experts.Money{Amount: 0, Currency: "USD"},
		Type:            experts.ServiceVideoMeeting,
		DurationMinutes: 15,
	}, profile.Services[0])
	assert.False(t, profile.Services[1].Type.IsLive())
}

func TestFetchProfileNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewClient(srv.URL, WithLogger(logging.Discard())).FetchProfile(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrProfileNotFound)
}

func TestFetchProfileServerErrorTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithLogger(logging.Discard())).FetchProfile(context.Background(), "jane")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Less(t, len(err.Error()), 300)
}

func TestFetchProfileRejectsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"services": "nope"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithLogger(logging.Discard())).FetchProfile(context.Background(), "jane")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode profile")
}

func TestFetchProfileRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"username":"jane","bio":"`))
		_, _ = w.Write([]byte(strings.Repeat("x", 2<<20)))
		_, _ = w.Write([]byte(`"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithLogger(logging.Discard())).FetchProfile(context.Background(), "jane")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetchProfileRequiresUsername(t *testing.T) {
	_, err := NewClient("http://unused").FetchProfile(context.Background(), "  ")
	require.Error(t, err)
}
