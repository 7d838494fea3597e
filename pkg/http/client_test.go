package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_SendAndParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stock/TCS/price-chart", r.URL.Path)
		assert.Equal(t, "3y", r.URL.Query().Get("time_range"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "stockpulse", r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(map[string]int{"n": 3})
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/api/"), WithHeader("User-Agent", "stockpulse"))
	var out struct{ N int }
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         "/stock/TCS/price-chart",
		QueryParams: map[string][]string{"time_range": {"3y"}},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, out.N)
}

func TestClient_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such stock", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: "/stock/X"}, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "no such stock", se.Body)
}

func TestClient_PostsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_, _ = w.Write([]byte(in["section"]))
	}))
	defer srv.Close()

	c := NewClient()
	var raw []byte
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method: MethodPost, URL: srv.URL, Body: map[string]string{"section": "peers"},
	}, &raw)
	require.NoError(t, err)
	assert.Equal(t, "peers", string(raw))
}
